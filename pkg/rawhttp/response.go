package rawhttp

import (
	"bytes"
	"strconv"
	"strings"
)

// Response is a parsed HTTP/1.1 response.
type Response struct {
	StatusCode int
	StatusText string
	Headers    map[string]string
	Body       []byte
}

// ParseResponse parses a full HTTP/1.1 response from data.
func ParseResponse(data []byte) (*Response, error) {
	headerEnd := bytes.Index(data, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, newErr(InvalidInput, "incomplete HTTP response", nil)
	}

	headerBytes := data[:headerEnd]
	body := append([]byte(nil), data[headerEnd+4:]...)

	lines := strings.Split(string(headerBytes), "\r\n")
	if len(lines) == 0 {
		return nil, newErr(InvalidInput, "missing status line", nil)
	}

	statusLine := lines[0]
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return nil, newErr(InvalidInput, "invalid status line", nil)
	}

	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, newErr(InvalidInput, "invalid status code", err)
	}
	statusText := ""
	if len(parts) > 2 {
		statusText = parts[2]
	}

	headers := make(map[string]string)
	for _, line := range lines[1:] {
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			key := strings.ToLower(strings.TrimSpace(line[:idx]))
			value := strings.TrimSpace(line[idx+1:])
			headers[key] = value
		}
	}

	return &Response{
		StatusCode: code,
		StatusText: statusText,
		Headers:    headers,
		Body:       body,
	}, nil
}

// IsSuccess reports whether the response's status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// BodyString returns the response body decoded as UTF-8.
func (r *Response) BodyString() string {
	return string(r.Body)
}
