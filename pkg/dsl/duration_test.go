package dsl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"500ms", 500 * time.Millisecond},
		{"1s", time.Second},
		{" 1s ", time.Second},
		{"500 ms", 500 * time.Millisecond},
		{"2m", 2 * time.Minute},
		{"0s", 0},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		require.NoErrorf(t, err, "input %q", tc.in)
		require.Equalf(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseDurationInvalid(t *testing.T) {
	for _, in := range []string{"5", "5h", "abc", ""} {
		_, err := ParseDuration(in)
		require.Errorf(t, err, "input %q", in)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
}
