// Package main provides the go-pan CLI entry point.
//
// go-pan is a parallel test scheduler: it keeps a fixed number of test
// commands running, each as the leader of its own process group, records
// them in a shared registry, and turns operator signals into escalating
// broadcasts until every test and every orphaned group is gone.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-pan/internal/collection"
	"github.com/randomizedcoder/go-pan/internal/config"
	"github.com/randomizedcoder/go-pan/internal/escalation"
	"github.com/randomizedcoder/go-pan/internal/logging"
	"github.com/randomizedcoder/go-pan/internal/metrics"
	"github.com/randomizedcoder/go-pan/internal/orchestrator"
	"github.com/randomizedcoder/go-pan/internal/preflight"
	"github.com/randomizedcoder/go-pan/internal/process"
	"github.com/randomizedcoder/go-pan/internal/report"
	"github.com/randomizedcoder/go-pan/internal/stats"
	"github.com/randomizedcoder/go-pan/internal/supervisor"
	"github.com/randomizedcoder/go-pan/internal/tui"
	"github.com/randomizedcoder/go-pan/internal/zoo"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-pan
var version = "dev"

// metricsInterval paces gauge refreshes.
const metricsInterval = time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-pan %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	logOpts := logging.Options{
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Verbose: cfg.Verbose,
	}
	// The dashboard owns the terminal.
	if cfg.TUIEnabled {
		logOpts.Output = io.Discard
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	slog.SetDefault(logger)

	coll, err := collection.Load(cfg.CommandFile, cfg.Command)
	if err != nil {
		logger.Error("collection_load_failed", "error", err)
		return 1
	}
	if coll.Len() == 0 {
		logger.Error("collection_empty", "command_file", cfg.CommandFile)
		return 1
	}

	if !cfg.SkipPreflight {
		result := preflight.RunAll(preflight.Options{
			Concurrency:  cfg.Concurrency,
			CaptureDir:   cfg.EffectiveCaptureDir(),
			RegistryPath: cfg.ZooPath,
		})
		if !result.Passed {
			preflight.PrintResults(os.Stderr, result)
			return 1
		}
	}

	reg, err := zoo.Open(cfg.ZooPath)
	if err != nil {
		logger.Error("registry_open_failed", "error", err)
		return 1
	}
	defer reg.Close()

	out, err := openOutputs(cfg)
	if err != nil {
		logger.Error("output_open_failed", "error", err)
		return 1
	}
	defer out.Close()

	startTime := time.Now()
	runID := uuid.NewString()

	rep := report.New(report.Config{
		Log:        out.log,
		Formatted:  cfg.Formatted,
		Out:        out.stdout,
		FailCmds:   out.failCmds,
		SkipCmds:   out.skipCmds,
		Quiet:      cfg.Quiet,
		ReportType: cfg.ReportType,
		Kmsg:       kmsgWriter(cfg),
	})
	if err := rep.Header(startTime); err != nil {
		logger.Error("result_log_header_failed", "error", err)
		return 1
	}

	runStats := stats.NewRun(startTime)
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:     version,
		Tag:         cfg.Tag,
		RunID:       runID,
		Concurrency: cfg.Concurrency,
		RunTime:     cfg.RunDuration(),
	}, promRegistry)

	ctl := process.NewOS()
	var sup *supervisor.Supervisor
	sup = supervisor.New(supervisor.Config{
		Controller: ctl,
		Registry:   reg,
		Reporter:   rep,
		Logger:     logger,
		MaxActive:  cfg.Concurrency,
		CaptureDir: cfg.EffectiveCaptureDir(),
		Stdout:     out.stdout,
		Callbacks: supervisor.Callbacks{
			OnStart: func(string, int) {
				runStats.TestStarted()
				runStats.SetActive(sup.Active())
				collector.TestStarted()
			},
			OnResult: func(r report.Result) {
				runStats.RecordResult(r)
				collector.RecordResult(r)
			},
			OnOrphan: func(int) {
				runStats.OrphanAdopted()
				collector.OrphanAdopted()
			},
			OnOrphanGone: func(int) {
				runStats.OrphanGone()
				collector.OrphanGone()
			},
			OnSignal: func(sig syscall.Signal, n int) {
				runStats.SignalPropagated(sig)
				collector.SignalPropagated(sig, n)
			},
		},
	})

	signals := make(chan os.Signal, len(escalation.Handled))
	osSignals := make([]os.Signal, len(escalation.Handled))
	for i, s := range escalation.Handled {
		osSignals[i] = s
	}
	signal.Notify(signals, osSignals...)
	defer signal.Stop(signals)

	orch, err := orchestrator.New(orchestrator.Config{
		Supervisor:  sup,
		Controller:  ctl,
		Registry:    reg,
		Collection:  coll,
		Logger:      logger,
		Tag:         cfg.Tag,
		CmdLine:     strings.Join(os.Args, " "),
		Starts:      cfg.ResolveStarts(coll.Len()),
		Sequential:  cfg.Sequential,
		Seed:        cfg.Seed,
		RunTime:     cfg.RunDuration(),
		StopFile:    cfg.StopFile,
		AllStop:     cfg.AllStop,
		ExitStatus:  cfg.ExitStatus,
		PauseResume: cfg.PauseResume,
		Signals:     signals,
	})
	if err != nil {
		logger.Error("orchestrator_init_failed", "error", err)
		return 1
	}

	logger.Info("starting",
		"version", version,
		"run_id", runID,
		"tag", cfg.Tag,
		"commands", coll.Len(),
		"concurrency", cfg.Concurrency,
		"registry", cfg.ZooPath,
		"metrics_addr", cfg.MetricsAddr,
	)

	g, ctx := errgroup.WithContext(context.Background())
	auxCtx, stopAux := context.WithCancel(ctx)
	defer stopAux()

	var status int
	g.Go(func() error {
		defer stopAux()
		s, err := orch.Run(ctx)
		status = s
		return err
	})

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, promRegistry, logger)
		g.Go(func() error {
			return srv.Run(auxCtx)
		})
	}

	g.Go(func() error {
		publishMetrics(auxCtx, orch, runStats, collector)
		return nil
	})

	if cfg.TUIEnabled {
		program := tea.NewProgram(tui.New(tui.Config{
			Tag:          cfg.Tag,
			Concurrency:  cfg.Concurrency,
			RunTime:      cfg.RunDuration(),
			MetricsAddr:  cfg.MetricsAddr,
			StatusSource: orch,
			StatsSource:  runStats,
			OnInterrupt: func() {
				select {
				case signals <- syscall.SIGINT:
				default:
				}
			},
		}), tea.WithAltScreen())

		g.Go(func() error {
			<-auxCtx.Done()
			tui.SendQuit(program)
			return nil
		})
		g.Go(func() error {
			if _, err := program.Run(); err != nil {
				logger.Warn("tui_failed", "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("run_failed", "error", err)
		status |= orchestrator.ExitInternal
	}

	snapshot := runStats.Snapshot(time.Now())
	platform, err := report.CurrentPlatform()
	if err != nil {
		logger.Warn("platform_unavailable", "error", err)
	}
	if err := rep.Summary(snapshot.ReportSummary(platform, coll.Len())); err != nil {
		logger.Error("result_log_summary_failed", "error", err)
		status |= orchestrator.ExitInternal
	}

	if !cfg.Quiet {
		fmt.Fprint(os.Stderr, stats.FormatExitSummary(snapshot, stats.SummaryConfig{
			Tag:         cfg.Tag,
			RunID:       runID,
			Concurrency: cfg.Concurrency,
			MetricsAddr: cfg.MetricsAddr,
			ExitStatus:  status,
		}))
	}

	return status
}

// publishMetrics refreshes the scheduler gauges until ctx is done.
func publishMetrics(ctx context.Context, orch *orchestrator.Orchestrator, run *stats.Run, collector *metrics.Collector) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			st := orch.Status()
			snap := run.Snapshot(now)

			active := 0
			for _, s := range st.Slots {
				if s.State().IsActive() {
					active++
				}
			}
			collector.RecordUpdate(metrics.Update{
				ActiveSlots:  active,
				OrphanGroups: len(st.Orphans),
				DurationP50:  snap.DurationP50,
				DurationP95:  snap.DurationP95,
				DurationP99:  snap.DurationP99,
			})
		}
	}
}

// kmsgWriter returns the kernel log destination, or nil when notes are off.
func kmsgWriter(cfg *config.Config) io.Writer {
	if cfg.NoKmsg || cfg.Quiet {
		return nil
	}
	return report.Kmsg{}
}

// outputs holds the files a run writes besides the registry.
type outputs struct {
	log      io.Writer
	stdout   *os.File
	failCmds io.Writer
	skipCmds io.Writer

	files []*os.File
}

// openOutputs opens the result log, output and command files in append mode.
func openOutputs(cfg *config.Config) (*outputs, error) {
	o := &outputs{stdout: os.Stdout}

	switch cfg.LogFile {
	case "":
	case "-":
		o.log = os.Stdout
	default:
		f, err := o.open(cfg.LogFile)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.log = f
	}

	if cfg.OutputFile != "" {
		f, err := o.open(cfg.OutputFile)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.stdout = f
	}

	if cfg.FailCmdFile != "" {
		f, err := o.open(cfg.FailCmdFile)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.failCmds = f
	}

	if cfg.SkipCmdFile != "" {
		f, err := o.open(cfg.SkipCmdFile)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.skipCmds = f
	}

	return o, nil
}

func (o *outputs) open(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	o.files = append(o.files, f)
	return f, nil
}

// Close closes every file opened by openOutputs.
func (o *outputs) Close() {
	for _, f := range o.files {
		f.Close()
	}
	o.files = nil
}
