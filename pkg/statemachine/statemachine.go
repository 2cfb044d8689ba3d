// Package statemachine projects a work-breakdown-structure tree into
// a transition graph: one state node per task, carrying the resolved
// action definition and its outgoing triggers.
package statemachine

import (
	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/orderedmap"
	"github.com/cuemby/loadforge/pkg/wbs"
)

// NodeKind mirrors the originating task's kind.
type NodeKind int

const (
	NodeAction NodeKind = iota
	NodeEnd
)

// TriggerKind distinguishes an unconditional transition from one
// guarded by a rendered condition expression.
type TriggerKind int

const (
	TriggerAlways TriggerKind = iota
	TriggerCondition
)

// Trigger is a transition's guard.
type Trigger struct {
	Kind      TriggerKind
	Condition string
}

// Transition is a directed, optionally guarded edge to another node.
type Transition struct {
	To      string
	Trigger Trigger
	Label   string
}

// Node is one state in the machine.
type Node struct {
	ID          string
	Kind        NodeKind
	Action      *dsl.ActionDef
	Transitions []Transition
}

// Machine is the full transition graph, indexed by node id in
// insertion order.
type Machine struct {
	nodes *orderedmap.Map[*Node]
}

// FromWbs builds a Machine by projecting every task in tree.
func FromWbs(tree *wbs.Tree) *Machine {
	m := &Machine{nodes: orderedmap.New[*Node]()}
	for _, id := range tree.AllTaskIDs() {
		task, ok := tree.GetTask(id)
		if !ok {
			continue
		}
		m.nodes.Set(id, nodeFromTask(task, tree))
	}
	return m
}

func nodeFromTask(task *wbs.Task, tree *wbs.Tree) *Node {
	node := &Node{ID: task.ID}
	switch task.Kind {
	case wbs.TaskEnd:
		node.Kind = NodeEnd
	default:
		node.Kind = NodeAction
	}

	if task.ActionID != "" {
		if action, ok := tree.GetAction(task.ActionID); ok {
			action := action
			node.Action = &action
		}
	}

	for _, edge := range task.Outgoing {
		trigger := Trigger{Kind: TriggerAlways}
		if edge.Condition != "" {
			trigger = Trigger{Kind: TriggerCondition, Condition: edge.Condition}
		}
		node.Transitions = append(node.Transitions, Transition{
			To:      edge.Target,
			Trigger: trigger,
			Label:   edge.Label,
		})
	}

	return node
}

// NodeCount returns the number of nodes in the machine.
func (m *Machine) NodeCount() int { return m.nodes.Len() }

// TransitionCount sums every node's outgoing transition count.
func (m *Machine) TransitionCount() int {
	total := 0
	m.nodes.Range(func(_ string, node *Node) bool {
		total += len(node.Transitions)
		return true
	})
	return total
}

// GetNode looks up a node by id.
func (m *Machine) GetNode(id string) (*Node, bool) {
	return m.nodes.Get(id)
}

// SyncTask rebuilds and stores the node for task, overwriting any
// existing entry for its id.
func (m *Machine) SyncTask(task *wbs.Task, tree *wbs.Tree) {
	m.nodes.Set(task.ID, nodeFromTask(task, tree))
}

// RemoveTask deletes the node for taskID and detaches any other
// node's transition that targeted it.
func (m *Machine) RemoveTask(taskID string) (*Node, bool) {
	removed, ok := m.nodes.Get(taskID)
	if !ok {
		return nil, false
	}
	m.nodes.Delete(taskID)
	m.detachTarget(taskID)
	return removed, true
}

func (m *Machine) detachTarget(target string) {
	m.nodes.Range(func(_ string, node *Node) bool {
		kept := node.Transitions[:0:0]
		for _, tr := range node.Transitions {
			if tr.To != target {
				kept = append(kept, tr)
			}
		}
		node.Transitions = kept
		return true
	})
}
