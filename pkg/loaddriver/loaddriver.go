// Package loaddriver orchestrates a scenario's load section: wall
// clock-aligned ramp-up phases spawning user goroutines, each bound to
// an optional allocated IP, run in parallel under a concurrency cap
// and a spawn-rate limiter, with aggregated latency percentiles and
// IP pool statistics reported at the end of the run.
package loaddriver

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/events"
	"github.com/cuemby/loadforge/pkg/executor"
	"github.com/cuemby/loadforge/pkg/httpaction"
	"github.com/cuemby/loadforge/pkg/ippool"
	"github.com/cuemby/loadforge/pkg/log"
	"github.com/cuemby/loadforge/pkg/metrics"
	"github.com/cuemby/loadforge/pkg/rawhttp"
	"github.com/cuemby/loadforge/pkg/template"
)

const defaultTenantID = "default-tenant"

// LatencyStats summarizes the duration, in milliseconds, of every
// action trace collected during a run.
type LatencyStats struct {
	Count   int
	Average float64
	P50     int64
	P95     int64
	P99     int64
	Min     int64
	Max     int64
}

// Report is the outcome of one load-driver run.
type Report struct {
	ScenarioName string
	UsersSpawned int
	Traces       []executor.Trace
	Latency      LatencyStats
	IPPoolStats  []ippool.Stats
}

// Driver runs a scenario's `load` section against an HTTP action
// component.
type Driver struct {
	scenario *dsl.Scenario
	tmpl     *template.Context
	broker   *events.Broker
	logger   zerolog.Logger
}

// New builds a Driver. broker may be nil if the caller does not need
// progress events.
func New(scenario *dsl.Scenario, tmpl *template.Context, broker *events.Broker) *Driver {
	return &Driver{
		scenario: scenario,
		tmpl:     tmpl,
		broker:   broker,
		logger:   log.WithComponent("loaddriver"),
	}
}

// Run executes every ramp-up phase in order, spawning the configured
// number of users at each phase's target wall-clock offset, and
// returns the aggregated report once all users have finished or ctx
// is canceled.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	load := d.scenario.Load
	if load == nil {
		return nil, fmt.Errorf("loaddriver: scenario %q has no load section", d.scenario.Name)
	}
	d.logger.Debug().Str("scenario", d.scenario.Name).Int("phases", len(load.RampUp.Phases)).Msg("starting load run")

	ipManager := ippool.NewManager()
	if load.UserResources.IPBinding.Enabled {
		if err := d.initIPPools(ipManager, load.UserResources.IPBinding.PoolID, load.RampUp.Phases); err != nil {
			return nil, err
		}
	}

	var thinkTime time.Duration
	if load.UserLifetime.ThinkTime != "" {
		parsed, err := dsl.ParseDuration(load.UserLifetime.ThinkTime)
		if err != nil {
			return nil, fmt.Errorf("loaddriver: invalid think_time: %w", err)
		}
		thinkTime = parsed
	}
	iterations := load.UserLifetime.Iterations

	group, gctx := errgroup.WithContext(ctx)
	if load.Concurrency.MaxConcurrentUsers > 0 {
		group.SetLimit(load.Concurrency.MaxConcurrentUsers)
	}

	var limiter *rate.Limiter
	if load.Concurrency.SpawnRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(load.Concurrency.SpawnRateLimit), 1)
	}

	var (
		mu         sync.Mutex
		allTraces  []executor.Trace
		userID     int64
		startedAt  = time.Now()
	)

	for phaseIdx, phase := range load.RampUp.Phases {
		if err := waitForPhase(ctx, startedAt, phase.AtSecond); err != nil {
			break
		}

		d.publish(events.EventPhaseStarted, "ramp-up phase started", map[string]string{
			"phase":       fmt.Sprintf("%d", phaseIdx),
			"spawn_users": fmt.Sprintf("%d", phase.SpawnUsers),
		})

		for i := 0; i < phase.SpawnUsers; i++ {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					break
				}
			}

			id := int(atomic.AddInt64(&userID, 1))
			phase := phase
			group.Go(func() error {
				traces := d.runUser(gctx, id, phase, load.UserResources.IPBinding, ipManager, iterations, thinkTime)
				mu.Lock()
				allTraces = append(allTraces, traces...)
				mu.Unlock()
				return nil
			})
		}
	}

	_ = group.Wait()

	report := &Report{
		ScenarioName: d.scenario.Name,
		UsersSpawned: int(atomic.LoadInt64(&userID)),
		Traces:       allTraces,
		Latency:      computeLatencyStats(allTraces),
	}
	if load.UserResources.IPBinding.Enabled {
		report.IPPoolStats = ipManager.AllStats()
	}

	d.publish(events.EventRunCompleted, "run completed", map[string]string{
		"users":   fmt.Sprintf("%d", report.UsersSpawned),
		"actions": fmt.Sprintf("%d", len(report.Traces)),
	})

	return report, nil
}

func (d *Driver) runUser(ctx context.Context, id int, phase dsl.RampUpPhase, binding dsl.IPBindingSection, ipManager *ippool.Manager, iterations int, thinkTime time.Duration) []executor.Trace {
	tenantID := phase.TenantID
	if tenantID == "" {
		tenantID = defaultTenantID
	}

	userLog := log.WithUserID(fmt.Sprintf("%d", id))

	var allocatedIP netip.Addr
	poolID := binding.PoolID
	if phase.IPPoolOverride != "" {
		poolID = phase.IPPoolOverride
	}
	poolLog := log.WithPoolID(poolID)

	if binding.Enabled {
		ip, err := ipManager.Allocate(poolID, tenantID, fmt.Sprintf("user-%d", id), ippool.Custom("http-client"))
		if err != nil {
			poolLog.Warn().Err(err).Int("user_id", id).Msg("failed to allocate ip")
			metrics.IPPoolExhausted.WithLabelValues(poolID).Inc()
			d.publish(events.EventPoolExhausted, "ip pool exhausted", map[string]string{"pool": poolID, "user_id": fmt.Sprintf("%d", id)})
		} else {
			allocatedIP = ip
			metrics.IPPoolAllocations.WithLabelValues(poolID).Inc()
			if stats, err := ipManager.Stats(poolID); err == nil {
				metrics.IPPoolAvailable.WithLabelValues(poolID).Set(float64(stats.Available))
			}
		}
	}

	userCtx := executor.NewContext(id, tenantID, allocatedIP)
	metrics.UsersSpawned.Inc()
	metrics.UsersActive.Inc()
	d.publish(events.EventUserSpawned, "user spawned", map[string]string{"user_id": fmt.Sprintf("%d", id), "tenant_id": tenantID})

	exec := executor.New(userCtx, d.scenario.Workflows, d.scenario.Actions, iterations, thinkTime, d.tmpl)
	component := httpaction.New(rawhttp.ClientOptions{BindIP: allocatedIP})

	traces, err := exec.Run(ctx, component)
	metrics.UsersActive.Dec()
	metrics.UsersCompleted.Inc()
	if err != nil {
		userLog.Warn().Err(err).Msg("user execution failed")
	}
	d.publish(events.EventUserCompleted, "user completed", map[string]string{"user_id": fmt.Sprintf("%d", id)})

	if binding.Enabled && allocatedIP.IsValid() {
		if err := ipManager.Release(poolID, tenantID, fmt.Sprintf("user-%d", id)); err != nil {
			poolLog.Warn().Err(err).Int("user_id", id).Msg("failed to release ip")
		} else {
			metrics.IPPoolReleases.WithLabelValues(poolID).Inc()
			if stats, err := ipManager.Stats(poolID); err == nil {
				metrics.IPPoolAvailable.WithLabelValues(poolID).Set(float64(stats.Available))
			}
		}
	}

	return traces
}

// initIPPools registers every ip pool declared in the workbook, not just
// the base binding's pool, so that a ramp-up phase's ip_pool_override can
// name any workbook pool without failing allocation at runtime. It still
// verifies the base poolID and every referenced override resolve to a
// declared pool, so a typo is reported up front instead of surfacing as a
// misleading pool-exhausted event mid-run.
func (d *Driver) initIPPools(manager *ippool.Manager, poolID string, phases []dsl.RampUpPhase) error {
	if d.scenario.Workbook == nil {
		return fmt.Errorf("loaddriver: ip pool %q not found in workbook", poolID)
	}
	for _, def := range d.scenario.Workbook.IPPools {
		if err := manager.AddPool(def.ID, def.Ranges); err != nil {
			return fmt.Errorf("loaddriver: registering ip pool %q: %w", def.ID, err)
		}
	}
	if !manager.HasPool(poolID) {
		return fmt.Errorf("loaddriver: ip pool %q not found in workbook", poolID)
	}
	for _, phase := range phases {
		if phase.IPPoolOverride == "" {
			continue
		}
		if !manager.HasPool(phase.IPPoolOverride) {
			return fmt.Errorf("loaddriver: ip pool override %q not found in workbook", phase.IPPoolOverride)
		}
	}
	return nil
}

func (d *Driver) publish(evtType events.EventType, message string, metadata map[string]string) {
	if d.broker == nil {
		return
	}
	d.broker.Publish(&events.Event{Type: evtType, Message: message, Metadata: metadata})
}

func waitForPhase(ctx context.Context, startedAt time.Time, atSecond int) error {
	target := startedAt.Add(time.Duration(atSecond) * time.Second)
	delay := time.Until(target)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ctx.Err()
	}
}

func computeLatencyStats(traces []executor.Trace) LatencyStats {
	if len(traces) == 0 {
		return LatencyStats{}
	}

	durations := make([]int64, len(traces))
	var sum int64
	for i, t := range traces {
		durations[i] = t.DurationMs
		sum += t.DurationMs
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	n := len(durations)
	return LatencyStats{
		Count:   n,
		Average: float64(sum) / float64(n),
		P50:     durations[n/2],
		P95:     durations[n*95/100],
		P99:     durations[n*99/100],
		Min:     durations[0],
		Max:     durations[n-1],
	}
}
