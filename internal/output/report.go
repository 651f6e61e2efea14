package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/torosent/perfrun/internal/metrics"
	"github.com/torosent/perfrun/internal/runner"
	"github.com/torosent/perfrun/internal/threshold"
)

var (
	failStyle = color.New(color.FgRed)
	warnStyle = color.New(color.FgYellow)
)

const maxFailureText = 160

// Header describes an execution before its runs start.
type Header struct {
	Target     string
	Runs       int
	Mode       runner.Mode
	Topology   runner.Topology
	InFlight   int
	Export     bool
	ExportPath string
}

// PrintHeader writes the banner shown before the first run.
func PrintHeader(w io.Writer, h Header) {
	fmt.Fprintf(w, "\nAuditing: %s\n", h.Target)
	fmt.Fprintf(w, "Iterations: %d\n", h.Runs)
	if h.Mode == runner.ModeConcurrent {
		fmt.Fprintf(w, "Mode: Concurrent (up to %d in flight)\n", h.InFlight)
	} else {
		fmt.Fprintln(w, "Mode: Sequential")
	}
	if h.Topology == runner.TopologyShared {
		fmt.Fprintln(w, "Browser: shared across runs")
	} else {
		fmt.Fprintln(w, "Browser: fresh per run")
	}
	if h.Export {
		fmt.Fprintf(w, "Export CSV: Yes (%s)\n", h.ExportPath)
	} else {
		fmt.Fprintln(w, "Export CSV: No")
	}
	if h.Mode == runner.ModeConcurrent && h.InFlight > 1 {
		warnStyle.Fprintln(w, "Note: concurrent runs compete for CPU and network; timing metrics may be inflated.")
	}
	fmt.Fprintln(w)
}

// PrintReport writes per-run lines, failure lines and the aggregate block, in
// run order.
func PrintReport(w io.Writer, exec *runner.Execution, summary metrics.Summary) {
	fmt.Fprintln(w, "\nIndividual Results (per run):")
	for _, o := range exec.Outcomes {
		switch {
		case o.Result != nil:
			fmt.Fprintln(w, FormatRun(*o.Result))
		case o.Failure != nil:
			failStyle.Fprintln(w, FormatFailure(*o.Failure))
		}
	}

	if !summary.HasData() {
		failStyle.Fprintf(w, "\nAggregated Results: no data (0 of %d runs succeeded)\n", len(exec.Outcomes))
		return
	}

	fmt.Fprintln(w, "\nAggregated Results:")
	fmt.Fprintf(w, "URL: %s\n", exec.Target)
	fmt.Fprintf(w, "Runs: %d of %d succeeded\n", summary.RunCount, len(exec.Outcomes))
	fmt.Fprintf(w, "Average Performance Score: %.1f\n", summary.AvgPerformance*100)
	fmt.Fprintf(w, "Average LCP: %.2fs\n", summary.AvgLCP/1000)
	fmt.Fprintf(w, "Average TBT: %.0fms\n", summary.AvgTBT)
	fmt.Fprintf(w, "Average CLS: %.3f\n", summary.AvgCLS)
	if summary.RunCount > 1 {
		fmt.Fprintln(w, "\nSpread (median / p90 / stddev):")
		fmt.Fprintf(w, "  Performance: %.1f / %.1f / %.1f\n", summary.Performance.Median*100, summary.Performance.P90*100, summary.Performance.StdDev*100)
		fmt.Fprintf(w, "  LCP:         %.2fs / %.2fs / %.2fs\n", summary.LCP.Median/1000, summary.LCP.P90/1000, summary.LCP.StdDev/1000)
		fmt.Fprintf(w, "  TBT:         %.0fms / %.0fms / %.0fms\n", summary.TBT.Median, summary.TBT.P90, summary.TBT.StdDev)
		fmt.Fprintf(w, "  CLS:         %.3f / %.3f / %.3f\n", summary.CLS.Median, summary.CLS.P90, summary.CLS.StdDev)
	}
	fmt.Fprintf(w, "Total time: %s\n", exec.Duration.Round(time.Millisecond))
}

// FormatRun renders one successful run on a single line.
func FormatRun(r runner.RunResult) string {
	return fmt.Sprintf("Run %d: Performance: %.1f | LCP: %.2fs | TBT: %.0fms | CLS: %.3f",
		r.Run, r.Performance*100, r.LCP/1000, r.TBT, r.CLS)
}

// FormatFailure renders one failed run on a single line.
func FormatFailure(f runner.RunFailure) string {
	return fmt.Sprintf("Run %d: FAILED | %s: %s", f.Run, metrics.FailureReason(f.Cause), describeFailure(f.Cause))
}

// describeFailure returns the innermost useful message of a run failure,
// trimmed to one line.
func describeFailure(err error) string {
	if err == nil {
		return "unknown error"
	}
	inner := err
	var merr *runner.MeasurementError
	var serr *runner.SessionError
	switch {
	case errors.As(err, &serr) && serr.Err != nil:
		inner = serr.Err
	case errors.As(err, &merr) && merr.Err != nil:
		inner = merr.Err
	}
	text := inner.Error()
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > maxFailureText {
		cut := maxFailureText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}

// PrintThresholdResults writes one line per threshold and a pass/fail total.
func PrintThresholdResults(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	passed := 0
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		if r.Pass {
			passed++
			fmt.Fprintf(w, "  %s\n", r.Message)
			continue
		}
		failStyle.Fprintf(w, "  %s\n", r.Message)
	}
	fmt.Fprintf(w, "%d of %d thresholds passed\n", passed, len(results))
}
