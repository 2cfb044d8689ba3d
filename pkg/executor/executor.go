// Package executor drives one simulated user through a scenario's
// workflow: repeated iterations with think-time pacing, variable
// injection of the user's identity and allocated IP, and
// condition-guarded edge selection between workflow nodes.
package executor

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/cuemby/loadforge/pkg/action"
	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/metrics"
	"github.com/cuemby/loadforge/pkg/template"
	"github.com/cuemby/loadforge/pkg/wbs"
)

// Context carries one simulated user's identity and resource grant.
type Context struct {
	ID          int
	TenantID    string
	AllocatedIP netip.Addr
	CreatedAt   time.Time
}

// NewContext builds a user Context, stamping CreatedAt to now.
func NewContext(id int, tenantID string, allocatedIP netip.Addr) Context {
	return Context{ID: id, TenantID: tenantID, AllocatedIP: allocatedIP, CreatedAt: time.Now()}
}

// Trace records one executed action within one iteration.
type Trace struct {
	UserID     int
	Iteration  int
	ActionID   string
	Status     action.Status
	Detail     string
	DurationMs int64
}

// Executor drives a user's workflow across a bounded or unbounded
// number of iterations.
type Executor struct {
	userCtx    Context
	workflow   *dsl.WorkflowSection
	actions    *dsl.ActionsSection
	iterations int
	thinkTime  time.Duration
	tmpl       *template.Context
}

// New builds an Executor. iterations of 0 means unbounded: Run loops
// until ctx is canceled.
func New(userCtx Context, workflow *dsl.WorkflowSection, actions *dsl.ActionsSection, iterations int, thinkTime time.Duration, tmpl *template.Context) *Executor {
	return &Executor{
		userCtx:    userCtx,
		workflow:   workflow,
		actions:    actions,
		iterations: iterations,
		thinkTime:  thinkTime,
		tmpl:       tmpl,
	}
}

// Run executes the workflow for as many iterations as configured (or
// until ctx is canceled, for an unbounded executor), returning every
// action trace produced.
func (e *Executor) Run(ctx context.Context, component action.Component) ([]Trace, error) {
	var all []Trace

	for iteration := 0; e.iterations == 0 || iteration < e.iterations; iteration++ {
		if err := ctx.Err(); err != nil {
			break
		}
		if iteration > 0 {
			if !sleepOrDone(ctx, e.thinkTime) {
				break
			}
		}

		traces, err := e.executeWorkflow(ctx, component, iteration)
		if err != nil {
			return all, fmt.Errorf("user %d iteration %d: %w", e.userCtx.ID, iteration+1, err)
		}
		all = append(all, traces...)
	}

	return all, nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		metrics.ThinkTimeDuration.Observe(d.Seconds())
		return true
	}
}

func (e *Executor) executeWorkflow(ctx context.Context, component action.Component, iteration int) ([]Trace, error) {
	var traces []Trace
	currentNode := "start"
	execVars := map[string]string{
		"user.id":   fmt.Sprintf("%d", e.userCtx.ID),
		"tenant.id": e.userCtx.TenantID,
	}
	if e.userCtx.AllocatedIP.IsValid() {
		execVars["user.allocated_ip"] = e.userCtx.AllocatedIP.String()
	}

	tempTree := wbs.NewEmpty("user-executor")

	for {
		node := e.findNode(currentNode)
		if node == nil {
			return traces, fmt.Errorf("node %q not found", currentNode)
		}

		if node.Type == dsl.NodeTypeEnd {
			break
		}

		actionDef := e.findAction(node.Action)
		if actionDef == nil {
			return traces, fmt.Errorf("action %q not found", node.Action)
		}

		resolved := e.resolveVariables(*actionDef, execVars)

		start := time.Now()
		actx := action.NewContext(tempTree)
		outcome, err := component.DoAction(ctx, resolved, actx)
		if err != nil {
			return traces, fmt.Errorf("action %q execution failed: %w", node.Action, err)
		}
		duration := time.Since(start)

		traces = append(traces, Trace{
			UserID:     e.userCtx.ID,
			Iteration:  iteration,
			ActionID:   node.Action,
			Status:     outcome.Status,
			Detail:     outcome.Detail,
			DurationMs: duration.Milliseconds(),
		})

		next, err := e.selectNextNode(node, execVars)
		if err != nil {
			return traces, err
		}
		currentNode = next
	}

	return traces, nil
}

func (e *Executor) findNode(id string) *dsl.WorkflowNode {
	if e.workflow == nil {
		return nil
	}
	for i := range e.workflow.Nodes {
		if e.workflow.Nodes[i].ID == id {
			return &e.workflow.Nodes[i]
		}
	}
	return nil
}

func (e *Executor) findAction(id string) *dsl.ActionDef {
	if e.actions == nil {
		return nil
	}
	for i := range e.actions.Actions {
		if e.actions.Actions[i].ID == id {
			return &e.actions.Actions[i]
		}
	}
	return nil
}

func (e *Executor) resolveVariables(def dsl.ActionDef, execVars map[string]string) dsl.ActionDef {
	merged := e.tmpl.Merged(execVars)
	rendered := merged.RenderAction(def)

	out := def
	out.With = renderedToValue(rendered, def)
	return out
}

// renderedToValue rebuilds a mapping Value from RenderAction's output,
// preserving the original `with` key order.
func renderedToValue(rendered map[string]*dsl.Value, def dsl.ActionDef) *dsl.Value {
	keys := def.WithKeys()
	if keys == nil {
		return def.With
	}
	m := dsl.NewMapping()
	for _, k := range keys {
		if v, ok := rendered[k]; ok {
			m.Map.Set(k, v)
		}
	}
	return m
}

func (e *Executor) selectNextNode(node *dsl.WorkflowNode, execVars map[string]string) (string, error) {
	merged := e.tmpl.Merged(execVars)
	for _, edge := range node.Edges {
		if edge.Trigger == nil {
			return edge.To, nil
		}
		if edge.Trigger.Condition == "true" || e.evaluateCondition(edge.Trigger.Condition, merged) {
			return edge.To, nil
		}
	}
	return "", fmt.Errorf("no matching edge found for node %q", node.ID)
}

func (e *Executor) evaluateCondition(condition string, merged *template.Context) bool {
	if condition == "true" {
		return true
	}
	resolved := merged.RenderStr(condition)
	if idx := strings.Index(resolved, "=="); idx >= 0 {
		left := strings.TrimSpace(resolved[:idx])
		right := strings.TrimSpace(resolved[idx+2:])
		return left == right
	}
	return false
}
