package dsl

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses the scenario duration grammar: a non-negative
// integer followed by an optional run of whitespace and a unit suffix
// of ms, s, or m. Leading and trailing whitespace is tolerated.
func ParseDuration(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)

	unit := ""
	numeric := trimmed
	for _, suffix := range []string{"ms", "s", "m"} {
		if strings.HasSuffix(trimmed, suffix) {
			unit = suffix
			numeric = strings.TrimSuffix(trimmed, suffix)
			break
		}
	}
	if unit == "" {
		return 0, fmt.Errorf("%w: %q has no ms/s/m unit suffix", ErrInvalidInput, s)
	}

	numeric = strings.TrimSpace(numeric)
	value, err := strconv.ParseUint(numeric, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a valid duration: %v", ErrInvalidInput, s, err)
	}

	switch unit {
	case "ms":
		return time.Duration(value) * time.Millisecond, nil
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	default:
		return 0, fmt.Errorf("%w: unreachable unit %q", ErrInvalidInput, unit)
	}
}
