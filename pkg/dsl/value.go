package dsl

import (
	"strconv"
	"strings"

	"github.com/cuemby/loadforge/pkg/orderedmap"
	"gopkg.in/yaml.v3"
)

// ValueKind tags the variant carried by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

// Value is a structured scalar/sequence/mapping value decoded from the
// scenario's YAML tree, used for action `with` parameters and resource
// properties. Mapping order is preserved via orderedmap.Map.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Str    string
	Seq    []*Value
	Map    *orderedmap.Map[*Value]
}

// NewString builds a string-scalar Value.
func NewString(s string) *Value { return &Value{Kind: KindString, Str: s} }

// NewMapping builds an empty mapping Value.
func NewMapping() *Value {
	return &Value{Kind: KindMapping, Map: orderedmap.New[*Value]()}
}

// UnmarshalYAML decodes an arbitrary YAML node into a Value, preserving
// mapping insertion order.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := valueFromNode(node)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

// MarshalYAML re-encodes a Value back into a YAML-compatible structure
// so a Value can be round-tripped through yaml.Marshal.
func (v *Value) MarshalYAML() (interface{}, error) {
	return v.toNative(), nil
}

func valueFromNode(node *yaml.Node) (*Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return scalarFromNode(node), nil
	case yaml.SequenceNode:
		seq := make([]*Value, 0, len(node.Content))
		for _, child := range node.Content {
			cv, err := valueFromNode(child)
			if err != nil {
				return nil, err
			}
			seq = append(seq, cv)
		}
		return &Value{Kind: KindSequence, Seq: seq}, nil
	case yaml.MappingNode:
		m := orderedmap.New[*Value]()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			cv, err := valueFromNode(valNode)
			if err != nil {
				return nil, err
			}
			m.Set(keyNode.Value, cv)
		}
		return &Value{Kind: KindMapping, Map: m}, nil
	case yaml.AliasNode:
		return valueFromNode(node.Alias)
	default:
		return &Value{Kind: KindNull}, nil
	}
}

func scalarFromNode(node *yaml.Node) *Value {
	switch node.Tag {
	case "!!null":
		return &Value{Kind: KindNull}
	case "!!bool":
		b, _ := strconv.ParseBool(node.Value)
		return &Value{Kind: KindBool, Bool: b}
	case "!!int", "!!float":
		n, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return &Value{Kind: KindString, Str: node.Value}
		}
		return &Value{Kind: KindNumber, Number: n}
	default:
		return &Value{Kind: KindString, Str: node.Value}
	}
}

// Native converts v into its plain Go representation
// (nil/bool/float64/string/[]interface{}/map[string]interface{}), for
// callers that need to re-encode a Value in a non-YAML format.
func (v *Value) Native() interface{} {
	return v.toNative()
}

func (v *Value) toNative() interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.Str
	case KindSequence:
		out := make([]interface{}, len(v.Seq))
		for i, e := range v.Seq {
			out[i] = e.toNative()
		}
		return out
	case KindMapping:
		out := make(map[string]interface{}, v.Map.Len())
		v.Map.Range(func(k string, val *Value) bool {
			out[k] = val.toNative()
			return true
		})
		return out
	default:
		return nil
	}
}

// ToTemplateString stringifies a Value the way the template context
// flattens a resource property or re-renders a leaf for substitution:
// Null becomes the empty string, Bool/Number/String stringify directly,
// and Sequence/Mapping marshal back to trimmed YAML text.
func (v *Value) ToTemplateString() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindSequence, KindMapping:
		out, err := yaml.Marshal(v.toNative())
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(out))
	default:
		return ""
	}
}
