/*
Package metrics provides Prometheus metrics collection and exposition for
loadforge: scheduler throughput, IP pool utilization, and load-driver
spawn/completion counts. Metrics are registered at package init and
exposed via Handler() for scraping.

# Usage

	http.Handle("/metrics", metrics.Handler())

	timer := metrics.NewTimer()
	outcome, err := component.DoAction(ctx, def, actx)
	timer.ObserveDurationVec(metrics.ActionLatency, def.ID)

Timer is a generic duration helper; the scheduler loop uses it to record
each action dispatch's wall-clock time.
*/
package metrics
