package output

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/perfrun/internal/metrics"
	"github.com/torosent/perfrun/internal/runner"
	"github.com/torosent/perfrun/internal/threshold"
)

// Document is the machine-readable form of an execution, written as JSON to
// stdout or as a JSON/YAML summary file.
type Document struct {
	ExecutionID string                  `json:"execution_id" yaml:"execution_id"`
	Target      string                  `json:"target" yaml:"target"`
	Mode        runner.Mode             `json:"mode" yaml:"mode"`
	Topology    runner.Topology         `json:"topology" yaml:"topology"`
	InFlight    int                     `json:"in_flight" yaml:"in_flight"`
	StartedAt   time.Time               `json:"started_at" yaml:"started_at"`
	DurationMs  float64                 `json:"duration_ms" yaml:"duration_ms"`
	Requested   int                     `json:"runs_requested" yaml:"runs_requested"`
	Succeeded   int                     `json:"runs_succeeded" yaml:"runs_succeeded"`
	Failed      int                     `json:"runs_failed" yaml:"runs_failed"`
	Runs        []RunRow                `json:"runs" yaml:"runs"`
	Summary     *metrics.Summary        `json:"summary" yaml:"summary"` // nil when no run succeeded
	Failures    []metrics.FailureBucket `json:"failures,omitempty" yaml:"failures,omitempty"`
	Thresholds  []ThresholdRow          `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// RunRow is one run of a Document.
type RunRow struct {
	Run         int      `json:"run" yaml:"run"`
	Status      string   `json:"status" yaml:"status"` // "ok" or "failed"
	Performance *float64 `json:"performance,omitempty" yaml:"performance,omitempty"`
	LCP         *float64 `json:"lcp_ms,omitempty" yaml:"lcp_ms,omitempty"`
	TBT         *float64 `json:"tbt_ms,omitempty" yaml:"tbt_ms,omitempty"`
	CLS         *float64 `json:"cls,omitempty" yaml:"cls,omitempty"`
	DurationMs  float64  `json:"duration_ms" yaml:"duration_ms"`
	ReportPath  string   `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	Reason      string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error       string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// ThresholdRow is one evaluated threshold of a Document.
type ThresholdRow struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// NewDocument assembles the machine-readable report of exec.
func NewDocument(exec *runner.Execution, summary metrics.Summary, thresholds []threshold.Result) Document {
	doc := Document{
		ExecutionID: exec.ID,
		Target:      exec.Target,
		Mode:        exec.Mode,
		Topology:    exec.Topology,
		InFlight:    exec.InFlight,
		StartedAt:   exec.StartedAt.UTC(),
		DurationMs:  toMillis(exec.Duration),
		Requested:   len(exec.Outcomes),
		Succeeded:   summary.RunCount,
		Runs:        make([]RunRow, 0, len(exec.Outcomes)),
	}
	doc.Failed = doc.Requested - doc.Succeeded
	if summary.HasData() {
		s := summary
		doc.Summary = &s
	}

	for _, o := range exec.Outcomes {
		switch {
		case o.Result != nil:
			r := o.Result
			doc.Runs = append(doc.Runs, RunRow{
				Run:         r.Run,
				Status:      "ok",
				Performance: &r.Performance,
				LCP:         &r.LCP,
				TBT:         &r.TBT,
				CLS:         &r.CLS,
				DurationMs:  toMillis(r.Duration),
				ReportPath:  r.ReportPath,
			})
		case o.Failure != nil:
			doc.Runs = append(doc.Runs, RunRow{
				Run:        o.Run,
				Status:     "failed",
				DurationMs: toMillis(o.Failure.Duration),
				Reason:     metrics.FailureReason(o.Failure.Cause),
				Error:      describeFailure(o.Failure.Cause),
			})
		}
	}
	doc.Failures = metrics.FlattenFailureBuckets(metrics.CountFailures(exec.Failures()))

	for _, tr := range thresholds {
		doc.Thresholds = append(doc.Thresholds, ThresholdRow{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		})
	}
	return doc
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Format is a summary file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the summary encoding from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported summary file extension %q (use .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// WriteDocument encodes doc in the given format.
func WriteDocument(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatJSON:
		return PrintJSONReport(w, doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported summary format %q", format)
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
