// Package action defines the executable-action contract: the
// interface a load-test action plugs into, the outcome it reports,
// and the deferred scheduler events an action may queue to mutate the
// work-breakdown-structure tree it is running against.
package action

import (
	"context"

	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/statemachine"
	"github.com/cuemby/loadforge/pkg/wbs"
)

// Component is the contract every action kind (http, and any future
// protocol) implements.
type Component interface {
	Init() error
	DoAction(ctx context.Context, action dsl.ActionDef, actx *Context) (Outcome, error)
	Release() error
}

// Status is the outcome of a single action invocation.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
)

// Outcome reports what happened when an action ran.
type Outcome struct {
	Status Status
	Detail string
}

// Success builds a successful outcome, optionally carrying detail.
func Success(detail string) Outcome {
	return Outcome{Status: StatusSuccess, Detail: detail}
}

// Failure builds a failed outcome, optionally carrying detail.
func Failure(detail string) Outcome {
	return Outcome{Status: StatusFailed, Detail: detail}
}

// Trace records one executed action for later reporting.
type Trace struct {
	TaskID   string
	ActionID string
	Status   Status
	Detail   string
}

// Event is a deferred mutation an action queues against the WBS and
// state machine instead of applying directly.
type Event interface {
	apply(tree *wbs.Tree, machine *statemachine.Machine) error
}

type registerActionEvent struct{ action dsl.ActionDef }

func (e registerActionEvent) apply(tree *wbs.Tree, _ *statemachine.Machine) error {
	tree.RegisterAction(e.action)
	return nil
}

type insertTaskEvent struct{ task *wbs.Task }

func (e insertTaskEvent) apply(tree *wbs.Tree, machine *statemachine.Machine) error {
	id := tree.InsertTask(e.task)
	if task, ok := tree.GetTask(id); ok {
		machine.SyncTask(task, tree)
	}
	return nil
}

type removeTaskEvent struct{ taskID string }

func (e removeTaskEvent) apply(tree *wbs.Tree, machine *statemachine.Machine) error {
	if err := tree.RemoveTask(e.taskID); err != nil {
		return err
	}
	machine.RemoveTask(e.taskID)
	return nil
}

type updateTaskEvent struct{ task *wbs.Task }

func (e updateTaskEvent) apply(tree *wbs.Tree, machine *statemachine.Machine) error {
	if err := tree.UpdateTask(e.task.ID, e.task); err != nil {
		return err
	}
	if task, ok := tree.GetTask(e.task.ID); ok {
		machine.SyncTask(task, tree)
	}
	return nil
}

type addEdgeEvent struct {
	from string
	edge wbs.Edge
}

func (e addEdgeEvent) apply(tree *wbs.Tree, machine *statemachine.Machine) error {
	if err := tree.InsertEdge(e.from, e.edge); err != nil {
		return err
	}
	if task, ok := tree.GetTask(e.from); ok {
		machine.SyncTask(task, tree)
	}
	return nil
}

type removeEdgeEvent struct{ from, target string }

func (e removeEdgeEvent) apply(tree *wbs.Tree, machine *statemachine.Machine) error {
	if err := tree.RemoveEdge(e.from, e.target); err != nil {
		return err
	}
	if task, ok := tree.GetTask(e.from); ok {
		machine.SyncTask(task, tree)
	}
	return nil
}

// Apply applies events to tree and machine in order, stopping at the
// first error.
func Apply(events []Event, tree *wbs.Tree, machine *statemachine.Machine) error {
	for _, e := range events {
		if err := e.apply(tree, machine); err != nil {
			return err
		}
	}
	return nil
}

// Context is the read-only WBS view and write-only pending-event
// queue an action's DoAction call receives.
type Context struct {
	wbs     *wbs.Tree
	pending []Event
}

// NewContext builds a Context reading against tree.
func NewContext(tree *wbs.Tree) *Context {
	return &Context{wbs: tree}
}

// IntoEvents drains and returns the events queued so far.
func (c *Context) IntoEvents() []Event {
	events := c.pending
	c.pending = nil
	return events
}

// RegisterAction queues an action definition for registration.
func (c *Context) RegisterAction(a dsl.ActionDef) {
	c.pending = append(c.pending, registerActionEvent{action: a})
}

// AddTask queues insertion of a new task.
func (c *Context) AddTask(task *wbs.Task) {
	c.pending = append(c.pending, insertTaskEvent{task: task})
}

// RemoveTask queues removal of a task by id.
func (c *Context) RemoveTask(taskID string) {
	c.pending = append(c.pending, removeTaskEvent{taskID: taskID})
}

// UpdateTask queues replacement of a task.
func (c *Context) UpdateTask(task *wbs.Task) {
	c.pending = append(c.pending, updateTaskEvent{task: task})
}

// GetTask reads a task from the underlying tree without queuing an
// event.
func (c *Context) GetTask(taskID string) (*wbs.Task, bool) {
	return c.wbs.GetTask(taskID)
}

// AddEdge queues a new outgoing edge from a task.
func (c *Context) AddEdge(from string, edge wbs.Edge) {
	c.pending = append(c.pending, addEdgeEvent{from: from, edge: edge})
}

// RemoveEdge queues removal of an outgoing edge.
func (c *Context) RemoveEdge(from, target string) {
	c.pending = append(c.pending, removeEdgeEvent{from: from, target: target})
}
