// Package wbs builds and mutates the work-breakdown-structure tree a
// scenario's workflow compiles down to: one task per workflow node,
// edges carrying optional trigger conditions, and an index of
// registered actions and declared resources alongside it.
package wbs

import (
	"github.com/google/uuid"

	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/orderedmap"
)

// TaskKind distinguishes an action-executing task from a terminal node.
type TaskKind int

const (
	TaskAction TaskKind = iota
	TaskEnd
)

// Edge is a directed link from one task to another, optionally guarded
// by a trigger condition.
type Edge struct {
	Target    string
	Condition string
	Label     string
}

// Task is one node of the work-breakdown-structure tree.
type Task struct {
	ID       string
	ActionID string
	Kind     TaskKind
	Outgoing []Edge
}

// Tree is the mutable work-breakdown-structure: an ordered set of
// tasks plus the resource and action indices the scenario declared.
type Tree struct {
	Name      string
	resources *orderedmap.Map[dsl.ResourceDef]
	actions   *orderedmap.Map[dsl.ActionDef]
	tasks     *orderedmap.Map[*Task]
}

// NewEmpty returns a tree with no tasks, resources, or actions.
func NewEmpty(name string) *Tree {
	return &Tree{
		Name:      name,
		resources: orderedmap.New[dsl.ResourceDef](),
		actions:   orderedmap.New[dsl.ActionDef](),
		tasks:     orderedmap.New[*Task](),
	}
}

// Build compiles a scenario's workbook, actions, and workflow sections
// into a tree: one task per workflow node, in declaration order.
func Build(scenario *dsl.Scenario) *Tree {
	tree := NewEmpty(scenario.Name)

	if scenario.Workbook != nil {
		for _, r := range scenario.Workbook.Resources {
			tree.resources.Set(r.ID, r)
		}
	}

	if scenario.Actions != nil {
		for _, a := range scenario.Actions.Actions {
			tree.actions.Set(a.ID, a)
		}
	}

	if scenario.Workflows != nil {
		for _, node := range scenario.Workflows.Nodes {
			kind := TaskAction
			if node.Type == dsl.NodeTypeEnd {
				kind = TaskEnd
			}
			task := &Task{
				ID:       node.ID,
				ActionID: node.Action,
				Kind:     kind,
			}
			for _, edge := range node.Edges {
				e := Edge{Target: edge.To, Label: edge.Label}
				if edge.Trigger != nil {
					e.Condition = edge.Trigger.Condition
				}
				task.Outgoing = append(task.Outgoing, e)
			}
			tree.tasks.Set(task.ID, task)
		}
	}

	return tree
}

// TaskCount returns the number of tasks currently in the tree.
func (t *Tree) TaskCount() int { return t.tasks.Len() }

// ActionTaskIds returns the ids of every task whose kind is TaskAction,
// in insertion order.
func (t *Tree) ActionTaskIds() []string {
	var ids []string
	t.tasks.Range(func(id string, task *Task) bool {
		if task.Kind == TaskAction {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// AllTaskIDs returns every task id, action and end alike, in
// insertion order.
func (t *Tree) AllTaskIDs() []string {
	return t.tasks.Keys()
}

// GetTask looks up a task by id.
func (t *Tree) GetTask(id string) (*Task, bool) {
	return t.tasks.Get(id)
}

// InsertTask adds task to the tree. If task.ID is empty, a new id is
// minted before insertion, and the minted id is returned.
func (t *Tree) InsertTask(task *Task) string {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	t.tasks.Set(task.ID, task)
	return task.ID
}

// RemoveTask deletes the task with id and drops it from every other
// task's outgoing edges, preserving the order of what remains.
func (t *Tree) RemoveTask(id string) error {
	if !t.tasks.Has(id) {
		return &TaskNotFoundError{TaskID: id}
	}
	t.tasks.Delete(id)
	t.tasks.Range(func(_ string, task *Task) bool {
		task.Outgoing = removeEdgesTo(task.Outgoing, id)
		return true
	})
	return nil
}

// UpdateTask replaces the stored task for id with the fields of
// updated, keeping its ID as the key.
func (t *Tree) UpdateTask(id string, updated *Task) error {
	if !t.tasks.Has(id) {
		return &TaskNotFoundError{TaskID: id}
	}
	updated.ID = id
	t.tasks.Set(id, updated)
	return nil
}

// InsertEdge appends an outgoing edge to the task with id fromID.
func (t *Tree) InsertEdge(fromID string, edge Edge) error {
	task, ok := t.tasks.Get(fromID)
	if !ok {
		return &TaskNotFoundError{TaskID: fromID}
	}
	task.Outgoing = append(task.Outgoing, edge)
	return nil
}

// RemoveEdge deletes every outgoing edge from fromID pointing at
// targetID, preserving the order of what remains.
func (t *Tree) RemoveEdge(fromID, targetID string) error {
	task, ok := t.tasks.Get(fromID)
	if !ok {
		return &TaskNotFoundError{TaskID: fromID}
	}
	task.Outgoing = removeEdgesTo(task.Outgoing, targetID)
	return nil
}

func removeEdgesTo(edges []Edge, targetID string) []Edge {
	kept := edges[:0:0]
	for _, e := range edges {
		if e.Target != targetID {
			kept = append(kept, e)
		}
	}
	return kept
}

// RegisterAction adds or replaces an action definition in the index.
func (t *Tree) RegisterAction(action dsl.ActionDef) {
	t.actions.Set(action.ID, action)
}

// GetAction looks up a registered action by id.
func (t *Tree) GetAction(id string) (dsl.ActionDef, bool) {
	return t.actions.Get(id)
}

// GetResource looks up a declared resource by id.
func (t *Tree) GetResource(id string) (dsl.ResourceDef, bool) {
	return t.resources.Get(id)
}

// ResourceIDs returns declared resource ids in declaration order.
func (t *Tree) ResourceIDs() []string {
	return t.resources.Keys()
}
