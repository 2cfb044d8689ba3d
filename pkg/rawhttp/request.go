// Package rawhttp builds and sends HTTP/1.1 requests over a raw TCP
// socket instead of a pooled transport, so a load-test action can
// bind the outgoing connection to a specific source IP drawn from an
// allocated pool.
package rawhttp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/loadforge/pkg/orderedmap"
)

// Request is a minimal HTTP/1.1 request builder.
type Request struct {
	Method  string
	URL     string
	Headers *orderedmap.Map[string]
	Body    []byte
}

// NewRequest builds a Request with an empty header set.
func NewRequest(method, url string) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		URL:     url,
		Headers: orderedmap.New[string](),
	}
}

// Header sets a request header, returning the request for chaining.
// Insertion order is preserved and reflected in BuildRequestBytes.
func (r *Request) Header(key, value string) *Request {
	r.Headers.Set(key, value)
	return r
}

// WithBody sets the request body, returning the request for chaining.
func (r *Request) WithBody(body []byte) *Request {
	r.Body = body
	return r
}

// ParsedURL is the decomposed form of a request URL.
type ParsedURL struct {
	Host    string
	Port    uint16
	Path    string
	IsHTTPS bool
}

// ParseURL splits url into host, port, path, and scheme.
func ParseURL(url string) (ParsedURL, error) {
	var isHTTPS bool
	var rest string

	switch {
	case strings.HasPrefix(url, "https://"):
		isHTTPS = true
		rest = url[len("https://"):]
	case strings.HasPrefix(url, "http://"):
		isHTTPS = false
		rest = url[len("http://"):]
	default:
		return ParsedURL{}, newErr(InvalidInput, "url must start with http:// or https://", nil)
	}

	hostPort, path := rest, "/"
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		hostPort, path = rest[:idx], rest[idx:]
	}

	host := hostPort
	port := uint16(80)
	if isHTTPS {
		port = 443
	}
	if idx := strings.LastIndexByte(hostPort, ':'); idx >= 0 {
		host = hostPort[:idx]
		parsed, err := strconv.ParseUint(hostPort[idx+1:], 10, 16)
		if err != nil {
			return ParsedURL{}, newErr(InvalidInput, "invalid port number", err)
		}
		port = uint16(parsed)
	}

	return ParsedURL{Host: host, Port: port, Path: path, IsHTTPS: isHTTPS}, nil
}

// ParseURL parses r's URL into its components.
func (r *Request) ParseURL() (ParsedURL, error) {
	return ParseURL(r.URL)
}

// BuildRequestBytes serializes r as an HTTP/1.1 request-and-headers
// wire payload, followed by its body if any.
func (r *Request) BuildRequestBytes() ([]byte, error) {
	parsed, err := r.ParseURL()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", r.Method, parsed.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", parsed.Host)
	r.Headers.Range(func(key, value string) bool {
		fmt.Fprintf(&b, "%s: %s\r\n", key, value)
		return true
	})
	if r.Body != nil {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(r.Body))
	}
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")

	out := []byte(b.String())
	if r.Body != nil {
		out = append(out, r.Body...)
	}
	return out, nil
}
