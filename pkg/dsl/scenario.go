package dsl

import (
	"gopkg.in/yaml.v3"
)

// Scenario is the top-level decoded scenario document.
type Scenario struct {
	Version   string           `yaml:"version"`
	Name      string           `yaml:"name"`
	Workbook  *WorkbookSection `yaml:"workbook"`
	Actions   *ActionsSection  `yaml:"actions"`
	Workflows *WorkflowSection `yaml:"workflows"`
	Load      *LoadSection     `yaml:"load"`
}

// WorkbookSection declares static resources and IP pools.
type WorkbookSection struct {
	Resources []ResourceDef `yaml:"resources"`
	IPPools   []IPPoolDef   `yaml:"ip_pools"`
}

// ResourceDef names a resource with an ordered property map.
type ResourceDef struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	Properties *Value `yaml:"properties"`
}

// PropertyKeys returns the resource's property keys in declaration
// order; it is nil-safe for resources with no properties.
func (r *ResourceDef) PropertyKeys() []string {
	if r.Properties == nil || r.Properties.Kind != KindMapping {
		return nil
	}
	return r.Properties.Map.Keys()
}

// PropertyValue looks up a single property by name.
func (r *ResourceDef) PropertyValue(name string) (*Value, bool) {
	if r.Properties == nil || r.Properties.Kind != KindMapping {
		return nil, false
	}
	return r.Properties.Map.Get(name)
}

// IPPoolDef declares a named IP pool and its CIDR ranges.
type IPPoolDef struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Ranges            []string `yaml:"ranges"`
	AllocationStrategy string  `yaml:"allocation_strategy"`
}

// ActionsSection declares the action catalog.
type ActionsSection struct {
	Actions []ActionDef `yaml:"actions"`
}

// ActionDef is a named, parameterized unit of work.
type ActionDef struct {
	ID     string       `yaml:"id"`
	Call   string       `yaml:"call"`
	With   *Value       `yaml:"with"`
	Export []ExportDef  `yaml:"export"`
}

// WithKeys returns the `with` parameter keys in declaration order.
func (a *ActionDef) WithKeys() []string {
	if a.With == nil || a.With.Kind != KindMapping {
		return nil
	}
	return a.With.Map.Keys()
}

// WithValue looks up a single `with` parameter by name.
func (a *ActionDef) WithValue(name string) (*Value, bool) {
	if a.With == nil || a.With.Kind != KindMapping {
		return nil, false
	}
	return a.With.Map.Get(name)
}

// ExportDef declares a value an action publishes after execution.
type ExportDef struct {
	Type    string `yaml:"type"`
	Name    string `yaml:"name"`
	Scope   string `yaml:"scope"`
	Default string `yaml:"default"`
}

// WorkflowSection is the node/edge graph users traverse.
type WorkflowSection struct {
	Nodes []WorkflowNode `yaml:"nodes"`
}

// WorkflowNodeType is the kind tag of a workflow node.
type WorkflowNodeType string

const (
	NodeTypeAction WorkflowNodeType = "action"
	NodeTypeEnd    WorkflowNodeType = "end"
)

// WorkflowNode is one vertex of the workflow graph.
type WorkflowNode struct {
	ID     string           `yaml:"id"`
	Type   WorkflowNodeType `yaml:"type"`
	Action string           `yaml:"action"`
	Edges  []WorkflowEdge   `yaml:"edges"`
}

// WorkflowEdge is an outgoing edge from a workflow node.
type WorkflowEdge struct {
	To      string      `yaml:"to"`
	Trigger *TriggerDef `yaml:"trigger"`
	Label   string      `yaml:"label"`
}

// TriggerDef carries an optional guard condition for an edge.
type TriggerDef struct {
	Condition string `yaml:"condition"`
}

// LoadSection declares the ramp-up plan, user lifetime, and IP binding
// strategy for a load-driven run.
type LoadSection struct {
	RampUp        RampUpSection        `yaml:"ramp_up"`
	UserLifetime  UserLifetimeSection  `yaml:"user_lifetime"`
	UserResources UserResourcesSection `yaml:"user_resources"`
	Concurrency   ConcurrencySection   `yaml:"concurrency"`
}

// RampUpSection is the ordered list of spawn phases.
type RampUpSection struct {
	Phases []RampUpPhase `yaml:"phases"`
}

// RampUpPhase describes when and how many users to spawn.
type RampUpPhase struct {
	AtSecond       int    `yaml:"at_second"`
	SpawnUsers     int    `yaml:"spawn_users"`
	TenantID       string `yaml:"tenant_id"`
	IPPoolOverride string `yaml:"ip_pool_override"`
}

// UserLifetimeMode selects whether a user runs once or loops.
type UserLifetimeMode string

const (
	LifetimeOnce UserLifetimeMode = "once"
	LifetimeLoop UserLifetimeMode = "loop"
)

// UserLifetimeSection controls iteration count and think-time.
type UserLifetimeSection struct {
	Mode       UserLifetimeMode `yaml:"mode"`
	Iterations int              `yaml:"iterations"`
	ThinkTime  string           `yaml:"think_time"`
}

// UserResourcesSection declares per-user resource bindings.
type UserResourcesSection struct {
	IPBinding IPBindingSection `yaml:"ip_binding"`
}

// IPBindingStrategy selects how an IP is shared across a user's tasks.
type IPBindingStrategy string

const (
	BindingPerUser IPBindingStrategy = "per_user"
	BindingShared  IPBindingStrategy = "shared"
	BindingPerTask IPBindingStrategy = "per_task"
)

// IPReleaseTiming selects when a bound IP is released.
type IPReleaseTiming string

const (
	ReleaseTaskEnd IPReleaseTiming = "task_end"
	ReleaseUserExit IPReleaseTiming = "user_exit"
)

// IPBindingSection configures per-user IP allocation.
type IPBindingSection struct {
	Enabled   bool              `yaml:"enabled"`
	PoolID    string            `yaml:"pool_id"`
	Strategy  IPBindingStrategy `yaml:"strategy"`
	ReleaseOn IPReleaseTiming   `yaml:"release_on"`
}

// ConcurrencySection bounds simultaneous users and spawn rate.
type ConcurrencySection struct {
	MaxConcurrentUsers int     `yaml:"max_concurrent_users"`
	SpawnRateLimit     float64 `yaml:"spawn_rate_limit"`
}

// FromYAML decodes a Scenario from YAML source bytes.
func FromYAML(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// actionIndex builds a lookup set of declared action ids.
func (s *Scenario) actionIndex() map[string]struct{} {
	idx := make(map[string]struct{})
	if s.Actions == nil {
		return idx
	}
	for _, a := range s.Actions.Actions {
		idx[a.ID] = struct{}{}
	}
	return idx
}

// nodeIndex builds a lookup set of declared workflow node ids.
func (s *Scenario) nodeIndex() map[string]struct{} {
	idx := make(map[string]struct{})
	if s.Workflows == nil {
		return idx
	}
	for _, n := range s.Workflows.Nodes {
		idx[n.ID] = struct{}{}
	}
	return idx
}

// Validate checks the cross-reference invariants: every node action
// resolves to a declared action, and every edge target resolves to a
// declared node. Returns the first violation found, in node/edge
// declaration order.
func (s *Scenario) Validate() error {
	actions := s.actionIndex()
	nodes := s.nodeIndex()

	if s.Workflows == nil {
		return nil
	}
	for _, n := range s.Workflows.Nodes {
		if n.Action != "" {
			if _, ok := actions[n.Action]; !ok {
				return &UnknownActionError{Action: n.Action, Node: n.ID}
			}
		}
		for _, e := range n.Edges {
			if _, ok := nodes[e.To]; !ok {
				return &UnknownNodeError{Node: e.To}
			}
		}
	}
	return nil
}
