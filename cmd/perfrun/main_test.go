package main

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/perfrun/internal/artifacts"
	"github.com/torosent/perfrun/internal/config"
	"github.com/torosent/perfrun/internal/metrics"
	"github.com/torosent/perfrun/internal/output"
	"github.com/torosent/perfrun/internal/runner"
	"github.com/torosent/perfrun/internal/threshold"
)

func sampleExecution() *runner.Execution {
	return &runner.Execution{
		ID:       "01J0000000000000000000TEST",
		Target:   "https://example.com",
		Mode:     runner.ModeSequential,
		Topology: runner.TopologyPerRun,
		InFlight: 1,
		Duration: 3 * time.Second,
		Outcomes: []runner.Outcome{
			{Run: 1, Result: &runner.RunResult{Run: 1, Performance: 0.92, LCP: 1800, TBT: 120, CLS: 0.02}},
			{Run: 2, Failure: &runner.RunFailure{Run: 2, Cause: &runner.MeasurementError{Run: 2, Kind: runner.KindTransport, Err: errors.New("lighthouse exited with code 1")}}},
		},
	}
}

func TestRunHelp(t *testing.T) {
	assert.NoError(t, run([]string{"--help"}))
}

func TestRunRequiresTarget(t *testing.T) {
	err := run(nil)
	require.Error(t, err)

	var verr config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "target is required")
}

func TestRunRejectsSharedConcurrent(t *testing.T) {
	err := run([]string{"--url", "https://example.com", "--parallel", "--topology", "shared"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined with concurrent mode")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToRunnerMode(t *testing.T) {
	assert.Equal(t, runner.ModeConcurrent, toRunnerMode(config.ModeConcurrent))
	assert.Equal(t, runner.ModeSequential, toRunnerMode(config.ModeSequential))
	assert.Equal(t, runner.ModeSequential, toRunnerMode("unknown"))
}

func TestToRunnerTopology(t *testing.T) {
	assert.Equal(t, runner.TopologyShared, toRunnerTopology(config.TopologyShared))
	assert.Equal(t, runner.TopologyPerRun, toRunnerTopology(config.TopologyPerRun))
	assert.Equal(t, runner.TopologyPerRun, toRunnerTopology(""))
}

func TestExecutionError(t *testing.T) {
	exec := sampleExecution()
	summary := metrics.Aggregate(exec.Results())

	t.Run("partial success", func(t *testing.T) {
		assert.NoError(t, executionError(exec, summary, nil, nil))
	})

	t.Run("run error wins", func(t *testing.T) {
		runErr := &runner.SessionError{Run: 1, Fatal: true, Err: runner.ErrSessionLost}
		err := executionError(exec, summary, nil, runErr)
		assert.ErrorIs(t, err, runner.ErrSessionLost)
	})

	t.Run("no successful runs", func(t *testing.T) {
		failedExec := &runner.Execution{Outcomes: exec.Outcomes[1:]}
		err := executionError(failedExec, metrics.Aggregate(nil), nil, nil)
		assert.ErrorIs(t, err, metrics.ErrNoSuccessfulRuns)
		assert.Contains(t, err.Error(), "all 1 runs failed")
	})

	t.Run("threshold failure", func(t *testing.T) {
		th, err := threshold.Parse("performance:avg >= 0.95")
		require.NoError(t, err)
		results := threshold.NewEvaluator([]threshold.Threshold{th}).Evaluate(threshold.Input{Summary: summary, Runs: 2, Failed: 1})

		err = executionError(exec, summary, results, nil)
		require.Error(t, err)
		assert.Equal(t, "1 of 1 thresholds failed", err.Error())
	})
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	store, err := artifacts.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	exec := sampleExecution()
	summary := metrics.Aggregate(exec.Results())
	doc := output.NewDocument(exec, summary, nil)

	cfg := &config.Config{
		OutputDir:   dir,
		Export:      true,
		ExportPath:  "summary.csv",
		SummaryFile: "summary.yaml",
		HTMLOutput:  filepath.Join(dir, "html", "report.html"),
	}

	var notices bytes.Buffer
	require.NoError(t, writeArtifacts(&notices, store, cfg, cfg.ExportFile(), exec, doc))

	csvData, err := os.ReadFile(filepath.Join(dir, "summary.csv"))
	require.NoError(t, err)
	assert.Equal(t, "run,performance,lcp,tbt,cls\n1,0.92,1.80,120,0.020\n", string(csvData))

	yamlData, err := os.ReadFile(filepath.Join(dir, "summary.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(yamlData), "runs_succeeded: 1")

	htmlData, err := os.ReadFile(filepath.Join(dir, "html", "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(htmlData), "perfrun Report")

	out := notices.String()
	assert.Contains(t, out, "CSV export completed: "+filepath.Join(dir, "summary.csv"))
	assert.Contains(t, out, "Summary written to: "+filepath.Join(dir, "summary.yaml"))
	assert.Contains(t, out, "HTML report generated: "+filepath.Join(dir, "html", "report.html"))
}

func TestWriteArtifactsNothingRequested(t *testing.T) {
	store, err := artifacts.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	var notices bytes.Buffer
	exec := sampleExecution()
	doc := output.NewDocument(exec, metrics.Aggregate(exec.Results()), nil)
	require.NoError(t, writeArtifacts(&notices, store, &config.Config{}, "", exec, doc))
	assert.Empty(t, strings.TrimSpace(notices.String()))
}
