// Package template implements {{key}} substitution across action
// parameters, the rendering layer between the workbook's resource
// properties and a scheduled action's concrete parameters.
package template

import (
	"strings"

	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/orderedmap"
)

// Context holds an ordered key -> string binding set.
type Context struct {
	vars *orderedmap.Map[string]
}

// New creates an empty context.
func New() *Context {
	return &Context{vars: orderedmap.New[string]()}
}

// Insert binds key to value, preserving first-insertion order.
func (c *Context) Insert(key, value string) {
	c.vars.Set(key, value)
}

// Extend binds every key/value pair from other into this context.
func (c *Context) Extend(other map[string]string) {
	for k, v := range other {
		c.vars.Set(k, v)
	}
}

// Vars returns the bound keys in insertion order.
func (c *Context) Vars() []string {
	return c.vars.Keys()
}

// Merged returns a new context that is this context's bindings
// overridden by extra, without mutating the receiver.
func (c *Context) Merged(extra map[string]string) *Context {
	out := &Context{vars: c.vars.Clone()}
	out.Extend(extra)
	return out
}

// RenderStr performs literal "{{key}}" substitution across s using
// every binding currently in the context.
func (c *Context) RenderStr(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	out := s
	c.vars.Range(func(key, value string) bool {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
		return true
	})
	return out
}

// RenderValue recursively renders string-scalar leaves of v, leaving
// non-string scalars untouched and preserving sequence/mapping
// structure and key order.
func (c *Context) RenderValue(v *dsl.Value) *dsl.Value {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case dsl.KindString:
		return dsl.NewString(c.RenderStr(v.Str))
	case dsl.KindSequence:
		rendered := make([]*dsl.Value, len(v.Seq))
		for i, e := range v.Seq {
			rendered[i] = c.RenderValue(e)
		}
		return &dsl.Value{Kind: dsl.KindSequence, Seq: rendered}
	case dsl.KindMapping:
		rendered := orderedmap.New[*dsl.Value]()
		v.Map.Range(func(key string, val *dsl.Value) bool {
			rendered.Set(key, c.RenderValue(val))
			return true
		})
		return &dsl.Value{Kind: dsl.KindMapping, Map: rendered}
	default:
		return v
	}
}

// RenderAction renders every value in an action's `with` parameters,
// returning a new map keyed by parameter name.
func (c *Context) RenderAction(action dsl.ActionDef) map[string]*dsl.Value {
	out := make(map[string]*dsl.Value)
	for _, key := range action.WithKeys() {
		val, _ := action.WithValue(key)
		out[key] = c.RenderValue(val)
	}
	return out
}

// FromWorkbook builds a context by flattening every resource's
// properties as "resourceID.propertyName" -> stringified value.
func FromWorkbook(scenario *dsl.Scenario) *Context {
	ctx := New()
	if scenario == nil || scenario.Workbook == nil {
		return ctx
	}
	for _, res := range scenario.Workbook.Resources {
		for _, prop := range res.PropertyKeys() {
			val, ok := res.PropertyValue(prop)
			if !ok {
				continue
			}
			ctx.Insert(res.ID+"."+prop, val.ToTemplateString())
		}
	}
	return ctx
}
