package ippool

// ResourceType is a closed, tagged variant identifying what kind of
// thing an IP was bound to. Each variant carries a free-form string
// identifier.
type ResourceType struct {
	kind string
	id   string
}

func Mac(id string) ResourceType       { return ResourceType{kind: "Mac", id: id} }
func Vm(id string) ResourceType        { return ResourceType{kind: "Vm", id: id} }
func Container(id string) ResourceType { return ResourceType{kind: "Container", id: id} }
func Pod(id string) ResourceType       { return ResourceType{kind: "Pod", id: id} }
func Custom(id string) ResourceType    { return ResourceType{kind: "Custom", id: id} }

// TypeName returns the variant name (Mac, Vm, Container, Pod, Custom).
func (r ResourceType) TypeName() string { return r.kind }

// ID returns the carried identifier.
func (r ResourceType) ID() string { return r.id }

// AsKey returns the "{typeName}:{identifier}" form used by the
// resource index.
func (r ResourceType) AsKey() string { return r.kind + ":" + r.id }
