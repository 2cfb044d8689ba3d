/*
Package scheduler drives a compiled scenario's work-breakdown-structure
through a priority-queued dispatch loop.

Newly discovered action tasks are enqueued at actionPriority, events an
action queues while running at eventPriority (so they drain before the
next action task picks up any task/edge mutation they made). When both
are empty an idle task sleeps for idleSleep; after idleSpinLimit
consecutive idle cycles with nothing queued, the run ends.

	pipeline, _ := scheduler.LoadFromYAML(data)
	traces, err := pipeline.Run(ctx, component)
*/
package scheduler
