package rawhttp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	req := NewRequest("GET", "http://example.com/path")
	parsed, err := req.ParseURL()
	require.NoError(t, err)
	require.Equal(t, "example.com", parsed.Host)
	require.Equal(t, uint16(80), parsed.Port)
	require.Equal(t, "/path", parsed.Path)
	require.False(t, parsed.IsHTTPS)

	req = NewRequest("GET", "https://example.com:8443/api")
	parsed, err = req.ParseURL()
	require.NoError(t, err)
	require.Equal(t, "example.com", parsed.Host)
	require.Equal(t, uint16(8443), parsed.Port)
	require.Equal(t, "/api", parsed.Path)
	require.True(t, parsed.IsHTTPS)
}

func TestParseURLRejectsMissingScheme(t *testing.T) {
	req := NewRequest("GET", "example.com/path")
	_, err := req.ParseURL()
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, InvalidInput, rerr.Kind)
}

func TestBuildRequestBytes(t *testing.T) {
	req := NewRequest("GET", "http://example.com/test").Header("User-Agent", "TestClient")
	bytes, err := req.BuildRequestBytes()
	require.NoError(t, err)

	requestStr := string(bytes)
	require.Contains(t, requestStr, "GET /test HTTP/1.1")
	require.Contains(t, requestStr, "Host: example.com")
	require.Contains(t, requestStr, "User-Agent: TestClient")
}

func TestBuildRequestBytesPreservesHeaderOrder(t *testing.T) {
	req := NewRequest("GET", "http://example.com/test").
		Header("X-First", "1").
		Header("X-Second", "2").
		Header("X-Third", "3")
	bytes, err := req.BuildRequestBytes()
	require.NoError(t, err)

	requestStr := string(bytes)
	firstIdx := strings.Index(requestStr, "X-First: 1")
	secondIdx := strings.Index(requestStr, "X-Second: 2")
	thirdIdx := strings.Index(requestStr, "X-Third: 3")
	require.True(t, firstIdx >= 0 && secondIdx >= 0 && thirdIdx >= 0)
	require.True(t, firstIdx < secondIdx, "X-First must precede X-Second")
	require.True(t, secondIdx < thirdIdx, "X-Second must precede X-Third")
}

func TestBuildRequestBytesWithBody(t *testing.T) {
	req := NewRequest("POST", "http://example.com/submit").WithBody([]byte("payload"))
	bytes, err := req.BuildRequestBytes()
	require.NoError(t, err)

	requestStr := string(bytes)
	require.Contains(t, requestStr, "Content-Length: 7")
	require.Contains(t, requestStr, "payload")
}

func TestParseResponse(t *testing.T) {
	data := []byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nHello")

	resp, err := ParseResponse(data)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "OK", resp.StatusText)
	require.Equal(t, "text/plain", resp.Headers["content-type"])
	require.Equal(t, []byte("Hello"), resp.Body)
	require.True(t, resp.IsSuccess())
	require.Equal(t, "Hello", resp.BodyString())
}

func TestParseResponseIncomplete(t *testing.T) {
	_, err := ParseResponse([]byte("HTTP/1.1 200 OK\r\n"))
	require.Error(t, err)
}

func TestHeadersCompleteHonorsContentLength(t *testing.T) {
	partial := []byte("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nabc")
	require.False(t, headersComplete(partial))

	full := []byte("HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\nabc")
	require.True(t, headersComplete(full))
}
