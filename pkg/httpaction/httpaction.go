// Package httpaction implements the "http" action kind: it issues a
// plaintext HTTP/1.1 request built from an action's rendered `with`
// parameters over pkg/rawhttp, optionally bound to an allocated
// source IP.
package httpaction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"

	"github.com/cuemby/loadforge/pkg/action"
	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/orderedmap"
	"github.com/cuemby/loadforge/pkg/rawhttp"
)

// Component implements action.Component for HTTP requests.
type Component struct {
	opts rawhttp.ClientOptions
}

// New builds an HTTP action component with the given client options.
func New(opts rawhttp.ClientOptions) *Component {
	return &Component{opts: opts}
}

// Init is a no-op; the component holds no per-run state.
func (c *Component) Init() error { return nil }

// Release is a no-op; each DoAction call owns its own connection.
func (c *Component) Release() error { return nil }

// DoAction extracts url/headers/body/bind_ip from the action's `with`
// parameters, sends the request, and reports the outcome.
func (c *Component) DoAction(ctx context.Context, def dsl.ActionDef, actx *action.Context) (action.Outcome, error) {
	url, err := extractURL(def)
	if err != nil {
		return action.Failure(err.Error()), nil
	}

	if strings.Contains(url, "{{") {
		return action.Success(fmt.Sprintf("skip unresolved template url=%s", url)), nil
	}

	method := def.Call
	if method == "" {
		method = "get"
	}
	req := rawhttp.NewRequest(method, url)
	extractHeaders(def).Range(func(key, value string) bool {
		req.Header(key, value)
		return true
	})

	body, err := extractBody(def)
	if err != nil {
		return action.Failure(err.Error()), nil
	}
	if body != "" {
		req.WithBody([]byte(body))
	}

	opts := c.opts
	if bindIP, ok := extractBindIP(def); ok {
		opts.BindIP = bindIP
	}

	resp, err := rawhttp.Send(ctx, req, opts)
	if err != nil {
		return action.Failure(err.Error()), nil
	}

	detail := fmt.Sprintf("HTTP %s %s -> %d", strings.ToUpper(method), url, resp.StatusCode)
	if !resp.IsSuccess() {
		return action.Failure(detail), nil
	}
	return action.Success(detail), nil
}

func extractURL(def dsl.ActionDef) (string, error) {
	val, ok := def.WithValue("url")
	if !ok || val.Kind != dsl.KindString {
		return "", fmt.Errorf("action %q missing with.url", def.ID)
	}
	return val.Str, nil
}

func extractHeaders(def dsl.ActionDef) *orderedmap.Map[string] {
	out := orderedmap.New[string]()
	val, ok := def.WithValue("headers")
	if !ok || val.Kind != dsl.KindMapping {
		return out
	}
	val.Map.Range(func(key string, v *dsl.Value) bool {
		if v.Kind == dsl.KindString {
			out.Set(key, v.Str)
		}
		return true
	})
	return out
}

func extractBody(def dsl.ActionDef) (string, error) {
	val, ok := def.WithValue("body")
	if !ok {
		return "", nil
	}
	if val.Kind == dsl.KindString {
		return val.Str, nil
	}
	encoded, err := json.Marshal(val.Native())
	if err != nil {
		return "", fmt.Errorf("body to json: %w", err)
	}
	return string(encoded), nil
}

func extractBindIP(def dsl.ActionDef) (netip.Addr, bool) {
	val, ok := def.WithValue("bind_ip")
	if !ok || val.Kind != dsl.KindString {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(val.Str)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}
