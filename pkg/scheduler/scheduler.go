// Package scheduler runs a scenario's compiled work-breakdown-structure
// through a priority-queued dispatch loop: deferred events run ahead of
// newly discovered action tasks, and an idle lane, used only once both
// drain, backs off and ends the run.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/loadforge/pkg/action"
	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/log"
	"github.com/cuemby/loadforge/pkg/metrics"
	"github.com/cuemby/loadforge/pkg/statemachine"
	"github.com/cuemby/loadforge/pkg/template"
	"github.com/cuemby/loadforge/pkg/wbs"
	"github.com/cuemby/loadforge/pkg/workbook"
)

const (
	priorityLevels = 64
	actionPriority = 32
	eventPriority  = 4
	idlePriority   = 63
	idleSpinLimit  = 2
	idleSleep      = 10 * time.Millisecond
)

// Pipeline holds a scenario's compiled tree, state machine, workbook,
// and template context, and drives them through a dispatch run.
type Pipeline struct {
	scenario  *dsl.Scenario
	workbook  *workbook.Workbook
	template  *template.Context
	tree      *wbs.Tree
	machine   *statemachine.Machine
	logger    zerolog.Logger
}

// LoadFromYAML parses, validates, and compiles a scenario document.
func LoadFromYAML(data []byte) (*Pipeline, error) {
	scenario, err := dsl.FromYAML(data)
	if err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return FromScenario(scenario)
}

// FromScenario compiles an already-parsed scenario into a Pipeline.
func FromScenario(scenario *dsl.Scenario) (*Pipeline, error) {
	wb := workbook.FromScenario(scenario)
	tmpl := template.FromWorkbook(scenario)
	tree := wbs.Build(scenario)
	machine := statemachine.FromWbs(tree)

	return &Pipeline{
		scenario: scenario,
		workbook: wb,
		template: tmpl,
		tree:     tree,
		machine:  machine,
		logger:   log.WithComponent("scheduler"),
	}, nil
}

// Scenario returns the compiled scenario.
func (p *Pipeline) Scenario() *dsl.Scenario { return p.scenario }

// Workbook returns the resource/metric index.
func (p *Pipeline) Workbook() *workbook.Workbook { return p.workbook }

// TemplateContext returns the resource-derived template bindings.
func (p *Pipeline) TemplateContext() *template.Context { return p.template }

// Tree returns the mutable work-breakdown-structure.
func (p *Pipeline) Tree() *wbs.Tree { return p.tree }

// StateMachine returns the transition graph.
func (p *Pipeline) StateMachine() *statemachine.Machine { return p.machine }

// Summary is a point-in-time snapshot of the pipeline's size.
type Summary struct {
	Resources int
	Metrics   int
	Tasks     int
	Edges     int
}

// Summary reports the pipeline's current resource/metric/task/edge
// counts.
func (p *Pipeline) Summary() Summary {
	return Summary{
		Resources: p.workbook.ResourceCount(),
		Metrics:   p.workbook.MetricCount(),
		Tasks:     p.tree.TaskCount(),
		Edges:     p.machine.TransitionCount(),
	}
}

// Run initializes component, dispatches every action task to
// completion (including any tasks or events actions queue
// dynamically), and releases component before returning. ctx
// cancellation stops the run at the next dispatch boundary.
func (p *Pipeline) Run(ctx context.Context, component action.Component) ([]action.Trace, error) {
	if err := component.Init(); err != nil {
		return nil, err
	}

	executor := newTaskExecutor(component, p.tree, p.machine, p.template, p.logger)
	traces, runErr := executor.run(ctx)

	if releaseErr := component.Release(); releaseErr != nil && runErr == nil {
		return traces, releaseErr
	}
	return traces, runErr
}

type taskExecutor struct {
	component action.Component
	tree      *wbs.Tree
	machine   *statemachine.Machine
	template  *template.Context
	logger    zerolog.Logger
	queues    *priorityQueues
	seen      map[string]struct{}
	traces    []action.Trace
}

func newTaskExecutor(component action.Component, tree *wbs.Tree, machine *statemachine.Machine, tmpl *template.Context, logger zerolog.Logger) *taskExecutor {
	e := &taskExecutor{
		component: component,
		tree:      tree,
		machine:   machine,
		template:  tmpl,
		logger:    logger,
		queues:    newPriorityQueues(),
		seen:      make(map[string]struct{}),
	}
	e.enqueueNewActionTasks()
	return e
}

func (e *taskExecutor) run(ctx context.Context) ([]action.Trace, error) {
	idleSpins := 0

	for ctx.Err() == nil {
		task, ok := e.queues.pop()
		if !ok {
			task = idleTask(idlePriority)
		}

		switch task.kind {
		case taskKindIdle:
			time.Sleep(idleSleep)
			metrics.SchedulerIdleCycles.Inc()
			idleSpins++
			if idleSpins >= idleSpinLimit && e.queues.isEmpty() {
				return e.traces, nil
			}
		default:
			idleSpins = 0
			if err := e.dispatch(ctx, task); err != nil {
				return e.traces, err
			}
		}
	}

	return e.traces, ctx.Err()
}

func (e *taskExecutor) dispatch(ctx context.Context, task scheduledTask) error {
	switch task.kind {
	case taskKindAction:
		return e.executeAction(ctx, task.taskID)
	case taskKindEvent:
		return e.executeEvent(task.event)
	default:
		return nil
	}
}

func (e *taskExecutor) executeAction(ctx context.Context, taskID string) error {
	task, ok := e.tree.GetTask(taskID)
	if !ok || task.ActionID == "" {
		return nil
	}

	actionDef, ok := e.tree.GetAction(task.ActionID)
	if !ok {
		return &ActionNotRegisteredError{ActionID: task.ActionID}
	}

	taskLog := log.WithTaskID(taskID)
	taskLog.Debug().Str("action_id", task.ActionID).Msg("dispatching action")

	rendered := e.renderAction(actionDef)

	actx := action.NewContext(e.tree)
	timer := metrics.NewTimer()
	outcome, err := e.component.DoAction(ctx, rendered, actx)
	timer.ObserveDurationVec(metrics.ActionLatency, task.ActionID)
	if err != nil {
		metrics.SchedulerActionsFailed.Inc()
		return &ActionExecutionError{Action: task.ActionID, Err: err}
	}

	for _, evt := range actx.IntoEvents() {
		e.queues.push(eventTask(evt, eventPriority))
	}

	metrics.SchedulerActionsExecuted.Inc()
	if outcome.Status == action.StatusFailed {
		metrics.SchedulerActionsFailed.Inc()
	}
	e.traces = append(e.traces, action.Trace{
		TaskID:   task.ID,
		ActionID: task.ActionID,
		Status:   outcome.Status,
		Detail:   outcome.Detail,
	})

	e.enqueueNewActionTasks()
	return nil
}

func (e *taskExecutor) executeEvent(evt action.Event) error {
	if err := action.Apply([]action.Event{evt}, e.tree, e.machine); err != nil {
		return err
	}
	metrics.SchedulerEventsApplied.Inc()
	e.enqueueNewActionTasks()
	return nil
}

func (e *taskExecutor) renderAction(def dsl.ActionDef) dsl.ActionDef {
	rendered := e.template.RenderAction(def)
	out := def
	out.With = renderedWithValue(def, rendered)
	return out
}

func renderedWithValue(def dsl.ActionDef, rendered map[string]*dsl.Value) *dsl.Value {
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

func (e *taskExecutor) enqueueNewActionTasks() {
	for _, id := range e.tree.ActionTaskIds() {
		if _, ok := e.seen[id]; ok {
			continue
		}
		e.seen[id] = struct{}{}
		e.queues.push(actionTask(id, actionPriority))
	}
}
