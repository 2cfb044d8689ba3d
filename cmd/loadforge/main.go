package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/loadforge/pkg/action"
	"github.com/cuemby/loadforge/pkg/dsl"
	"github.com/cuemby/loadforge/pkg/events"
	"github.com/cuemby/loadforge/pkg/httpaction"
	"github.com/cuemby/loadforge/pkg/loaddriver"
	"github.com/cuemby/loadforge/pkg/log"
	"github.com/cuemby/loadforge/pkg/metrics"
	"github.com/cuemby/loadforge/pkg/rawhttp"
	"github.com/cuemby/loadforge/pkg/scheduler"
	"github.com/cuemby/loadforge/pkg/template"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "loadforge [scenario.yaml]",
	Short: "loadforge - a workflow-driven load-testing scheduler",
	Long: `loadforge compiles a YAML scenario into a work-breakdown-structure and
state machine, then either drives it once through a priority-queued
dispatch loop or, when the scenario declares a load section, ramps up
simulated users against a plaintext HTTP target and reports latency
percentiles.`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runScenario,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"loadforge version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on (disabled if empty)")
	rootCmd.Flags().String("summary-json", "", "Path to write the run summary as JSON (stdout only if empty)")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func runScenario(cmd *cobra.Command, args []string) error {
	path := "res/simple_scenario.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading scenario %q: %w", path, err)
	}

	scenario, err := dsl.FromYAML(data)
	if err != nil {
		return fmt.Errorf("parsing scenario %q: %w", path, err)
	}
	if err := scenario.Validate(); err != nil {
		return fmt.Errorf("validating scenario %q: %w", path, err)
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr != "" {
		startMetricsServer(metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary interface{}
	if scenario.Load != nil {
		summary, err = runLoadDriver(ctx, scenario)
	} else {
		summary, err = runSinglePass(ctx, scenario)
	}
	if err != nil {
		return err
	}

	summaryPath, _ := cmd.Flags().GetString("summary-json")
	return writeSummary(summary, summaryPath)
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithComponent("cli").Warn().Err(err).Msg("metrics server stopped")
		}
	}()
}

type loadSummary struct {
	ScenarioName string                  `json:"scenario_name"`
	UsersSpawned int                     `json:"users_spawned"`
	ActionsRun   int                     `json:"actions_run"`
	Latency      loaddriver.LatencyStats `json:"latency"`
}

func runLoadDriver(ctx context.Context, scenario *dsl.Scenario) (*loadSummary, error) {
	logger := log.WithComponent("cli")

	tmpl := template.FromWorkbook(scenario)
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go logProgressEvents(logger, sub)
	defer broker.Unsubscribe(sub)

	driver := loaddriver.New(scenario, tmpl, broker)
	report, err := driver.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("load run failed: %w", err)
	}

	logger.Info().
		Int("users", report.UsersSpawned).
		Int("actions", len(report.Traces)).
		Int64("p50_ms", report.Latency.P50).
		Int64("p95_ms", report.Latency.P95).
		Int64("p99_ms", report.Latency.P99).
		Msg("load run completed")

	return &loadSummary{
		ScenarioName: report.ScenarioName,
		UsersSpawned: report.UsersSpawned,
		ActionsRun:   len(report.Traces),
		Latency:      report.Latency,
	}, nil
}

func logProgressEvents(logger zerolog.Logger, sub events.Subscriber) {
	for evt := range sub {
		logger.Debug().Str("event", string(evt.Type)).Interface("metadata", evt.Metadata).Msg(evt.Message)
	}
}

func runSinglePass(ctx context.Context, scenario *dsl.Scenario) (*pipelineSummary, error) {
	pipeline, err := scheduler.FromScenario(scenario)
	if err != nil {
		return nil, fmt.Errorf("compiling scenario: %w", err)
	}

	component := httpaction.New(rawhttp.ClientOptions{})
	traces, err := pipeline.Run(ctx, component)
	if err != nil {
		return nil, fmt.Errorf("scheduler run failed: %w", err)
	}

	summary := pipeline.Summary()
	return &pipelineSummary{
		ScenarioName: scenario.Name,
		Resources:    summary.Resources,
		Tasks:        summary.Tasks,
		Edges:        summary.Edges,
		ActionsRun:   len(traces),
		Failed:       countFailed(traces),
	}, nil
}

type pipelineSummary struct {
	ScenarioName string `json:"scenario_name"`
	Resources    int    `json:"resources"`
	Tasks        int    `json:"tasks"`
	Edges        int    `json:"edges"`
	ActionsRun   int    `json:"actions_run"`
	Failed       int    `json:"failed"`
}

func countFailed(traces []action.Trace) int {
	failed := 0
	for _, tr := range traces {
		if tr.Status == action.StatusFailed {
			failed++
		}
	}
	return failed
}

func writeSummary(summary interface{}, path string) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}
