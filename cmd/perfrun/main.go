package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/torosent/perfrun/internal/artifacts"
	"github.com/torosent/perfrun/internal/config"
	"github.com/torosent/perfrun/internal/dashboard"
	"github.com/torosent/perfrun/internal/metrics"
	"github.com/torosent/perfrun/internal/output"
	"github.com/torosent/perfrun/internal/provider"
	"github.com/torosent/perfrun/internal/runner"
	"github.com/torosent/perfrun/internal/session"
	"github.com/torosent/perfrun/internal/threshold"
	"github.com/torosent/perfrun/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	var logOut io.Writer = os.Stderr
	if cfg.Dashboard {
		// The dashboard owns the terminal.
		logOut = io.Discard
	}
	logger := newLogger(logOut, level)
	slog.SetDefault(logger)

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	store, err := artifacts.Open(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer store.Close()

	launcher := session.NewChromeLauncher(session.ChromeConfig{
		Path:           cfg.Browser.Path,
		Flags:          cfg.Browser.Flags,
		StartupTimeout: cfg.Browser.StartupTimeout,
		Logger:         logger,
	})
	lighthouse := provider.NewLighthouseCLI(provider.LighthouseConfig{
		Path:       cfg.Lighthouse.Path,
		Categories: cfg.Lighthouse.Categories,
		ExtraArgs:  cfg.Lighthouse.ExtraArgs,
		Logger:     logger,
	})

	var measurer runner.Measurer = runner.NewExecutor(cfg.TargetURL, lighthouse, store)
	measurer = runner.WithLogging(measurer, runner.SlogFailureLogger{Logger: logger})
	if cfg.Retries > 0 {
		measurer = runner.WithRetry(measurer, runner.DefaultRetryPolicy(cfg.Retries))
	}

	collector := metrics.NewCollector(cfg.Runs)
	r, err := runner.New(runner.Options{
		Target:      cfg.TargetURL,
		Runs:        cfg.Runs,
		Mode:        toRunnerMode(cfg.Mode),
		Topology:    toRunnerTopology(cfg.Topology),
		MaxInFlight: cfg.EffectiveInFlight(),
		RunTimeout:  cfg.RunTimeout,
		LaunchRate:  cfg.LaunchRate,
		Launcher:    launcher,
		Measurer:    measurer,
		Observer:    collector,
		Logger:      logger,
		Tracer:      tp.Tracer(),
	})
	if err != nil {
		return err
	}

	exportPath := ""
	if cfg.Export {
		if exportPath, err = filepath.Abs(cfg.ExportFile()); err != nil {
			return err
		}
	}

	// Text goes to stdout unless stdout carries the JSON document.
	var console io.Writer = os.Stdout
	if cfg.JSONOutput {
		console = os.Stderr
	}

	if !cfg.JSONOutput && !cfg.Dashboard {
		output.PrintHeader(os.Stdout, output.Header{
			Target:     cfg.TargetURL,
			Runs:       cfg.Runs,
			Mode:       toRunnerMode(cfg.Mode),
			Topology:   toRunnerTopology(cfg.Topology),
			InFlight:   cfg.EffectiveInFlight(),
			Export:     cfg.Export,
			ExportPath: exportPath,
		})
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.RunConfig{
			Target:     cfg.TargetURL,
			Runs:       cfg.Runs,
			Mode:       toRunnerMode(cfg.Mode),
			Topology:   toRunnerTopology(cfg.Topology),
			InFlight:   cfg.EffectiveInFlight(),
			Timeout:    cfg.RunTimeout,
			Retries:    cfg.Retries,
			ConfigFile: cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, progressInterval, os.Stderr)
		progress.Start()
	}

	exec, runErr := r.Run(ctx)

	if progress != nil {
		progress.Stop()
		fmt.Fprintln(os.Stderr)
	}
	if dash != nil {
		dash.Stop()
	}

	summary := metrics.Aggregate(exec.Results())
	results := threshold.NewEvaluator(thresholds).Evaluate(threshold.Input{
		Summary: summary,
		Runs:    len(exec.Outcomes),
		Failed:  len(exec.Failures()),
	})
	doc := output.NewDocument(exec, summary, results)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, doc); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, exec, summary)
		output.PrintThresholdResults(os.Stdout, results)
	}

	if err := writeArtifacts(console, store, cfg, exportPath, exec, doc); err != nil {
		return err
	}

	return executionError(exec, summary, results, runErr)
}

// writeArtifacts writes the optional CSV export, summary file and HTML report
// and announces each on w.
func writeArtifacts(w io.Writer, store *artifacts.Store, cfg *config.Config, exportPath string, exec *runner.Execution, doc output.Document) error {
	if cfg.Export {
		path, err := store.WriteFile(exportPath, func(f io.Writer) error {
			return output.WriteCSV(f, exec.Results())
		})
		if err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
		fmt.Fprintf(w, "\nCSV export completed: %s\n", path)
	}

	if cfg.SummaryFile != "" {
		format, err := output.FormatForPath(cfg.SummaryFile)
		if err != nil {
			return err
		}
		path, err := store.WriteFile(absPath(cfg.SummaryPath()), func(f io.Writer) error {
			return output.WriteDocument(f, doc, format)
		})
		if err != nil {
			return fmt.Errorf("summary file: %w", err)
		}
		fmt.Fprintf(w, "Summary written to: %s\n", path)
	}

	if cfg.HTMLOutput != "" {
		path, err := store.WriteFile(absPath(cfg.HTMLPath()), func(f io.Writer) error {
			return output.GenerateHTMLReport(f, doc)
		})
		if err != nil {
			return fmt.Errorf("html report: %w", err)
		}
		fmt.Fprintf(w, "HTML report generated: %s\n", path)
	}
	return nil
}

// executionError decides the exit status: runErr (lost shared session or an
// interrupted execution) wins, then a run set with no successes, then failed
// thresholds. Partial success is not an error.
func executionError(exec *runner.Execution, summary metrics.Summary, results []threshold.Result, runErr error) error {
	if runErr != nil {
		return runErr
	}
	if err := summary.Err(); err != nil {
		return fmt.Errorf("%w: all %d runs failed", err, len(exec.Outcomes))
	}
	if !threshold.AllPassed(results) {
		failed := 0
		for _, r := range results {
			if !r.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func toRunnerMode(mode config.Mode) runner.Mode {
	if mode == config.ModeConcurrent {
		return runner.ModeConcurrent
	}
	return runner.ModeSequential
}

func toRunnerTopology(t config.Topology) runner.Topology {
	if t == config.TopologyShared {
		return runner.TopologyShared
	}
	return runner.TopologyPerRun
}
