package rawhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cuemby/loadforge/pkg/reactor"
)

// ClientOptions configures one Send call.
type ClientOptions struct {
	// BindIP, if valid, is used as the outgoing connection's source
	// address, letting one load-test user claim a distinct IP from an
	// allocated pool.
	BindIP netip.Addr

	ConnectTimeout   time.Duration
	ReadSliceTimeout time.Duration
	MaxReadAttempts  int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.ReadSliceTimeout <= 0 {
		o.ReadSliceTimeout = 200 * time.Millisecond
	}
	if o.MaxReadAttempts <= 0 {
		o.MaxReadAttempts = 50
	}
	return o
}

// Send dials req's host, writes the serialized request, and reads a
// full HTTP/1.1 response. HTTPS URLs are rejected with a structured
// Other-kind error since this client speaks plaintext HTTP only.
func Send(ctx context.Context, req *Request, opts ClientOptions) (*Response, error) {
	opts = opts.withDefaults()

	parsed, err := req.ParseURL()
	if err != nil {
		return nil, err
	}
	if parsed.IsHTTPS {
		return nil, newErr(Other, "https not supported", nil)
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	if opts.BindIP.IsValid() {
		dialer.LocalAddr = &net.TCPAddr{IP: net.IP(opts.BindIP.AsSlice())}
	}

	address := net.JoinHostPort(parsed.Host, strconv.Itoa(int(parsed.Port)))
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, classifyDialErr(err)
	}
	defer conn.Close()

	payload, err := req.BuildRequestBytes()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, classifyDialErr(err)
	}

	data, err := readResponse(ctx, conn, opts)
	if err != nil {
		return nil, err
	}
	return ParseResponse(data)
}

// readResponse reads from conn until a full response has been
// buffered, retrying short read-deadline timeouts (a non-blocking
// socket's WouldBlock, in this model) up to opts.MaxReadAttempts
// times before giving up with a Timeout error.
func readResponse(ctx context.Context, conn net.Conn, opts ClientOptions) ([]byte, error) {
	rct := reactor.New(opts.ReadSliceTimeout / 4)
	buf := make([]byte, 4096)
	var out []byte

	for attempt := 0; attempt < opts.MaxReadAttempts; attempt++ {
		if err := conn.SetReadDeadline(time.Now().Add(opts.ReadSliceTimeout)); err != nil {
			return nil, newErr(Other, "set read deadline", err)
		}

		n, err := conn.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			if headersComplete(out) {
				return out, nil
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(out) > 0 {
				return out, nil
			}
			return nil, newErr(ConnectionReset, "connection closed before any data", err)
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			if attempt+1 >= opts.MaxReadAttempts {
				return nil, newErr(Timeout, "read timed out after retries", err)
			}
			if werr := rct.Sleep(ctx); werr != nil {
				return nil, newErr(Timeout, "canceled while waiting to retry read", werr)
			}
			continue
		}
		return nil, classifyDialErr(err)
	}
	return nil, newErr(Timeout, "exhausted read attempts", nil)
}

// headersComplete reports whether data contains a terminated header
// block and, when Content-Length is present, a complete body.
func headersComplete(data []byte) bool {
	idx := bytes.Index(data, []byte("\r\n\r\n"))
	if idx < 0 {
		return false
	}
	header := string(data[:idx])
	for _, line := range strings.Split(header, "\r\n") {
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "content-length:") {
			n, err := strconv.Atoi(strings.TrimSpace(line[len("content-length:"):]))
			if err != nil {
				return true
			}
			return len(data)-(idx+4) >= n
		}
	}
	return true
}

func classifyDialErr(err error) error {
	switch {
	case isErrno(err, syscall.ECONNREFUSED):
		return newErr(ConnectionRefused, "connection refused", err)
	case isErrno(err, syscall.ECONNRESET):
		return newErr(ConnectionReset, "connection reset", err)
	case isErrno(err, syscall.ECONNABORTED):
		return newErr(ConnectionAborted, "connection aborted", err)
	case isErrno(err, syscall.ENETUNREACH):
		return newErr(NetworkUnreachable, "network unreachable", err)
	case isErrno(err, syscall.EADDRINUSE):
		return newErr(AddressInUse, "address in use", err)
	case isErrno(err, syscall.EADDRNOTAVAIL):
		return newErr(AddressNotAvailable, "address not available", err)
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return newErr(Timeout, "dial timed out", err)
	}
	return newErr(Other, fmt.Sprintf("transport error: %v", err), err)
}

func isErrno(err error, target syscall.Errno) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == target
}
