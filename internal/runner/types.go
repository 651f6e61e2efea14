package runner

import (
	"errors"
	"fmt"
	"time"
)

// Mode controls whether runs overlap.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeConcurrent Mode = "concurrent"
)

// Topology controls how browser sessions map onto runs.
type Topology string

const (
	TopologyPerRun Topology = "per-run"
	TopologyShared Topology = "shared"
)

// RunResult is one successful measurement. It is never modified after the
// executor returns it.
type RunResult struct {
	Run               int           `json:"run" yaml:"run"`
	Performance       float64       `json:"performance" yaml:"performance"`
	LCP               float64       `json:"lcp_ms" yaml:"lcp_ms"`
	TBT               float64       `json:"tbt_ms" yaml:"tbt_ms"`
	CLS               float64       `json:"cls" yaml:"cls"`
	Duration          time.Duration `json:"duration" yaml:"duration"`
	ReportPath        string        `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	LighthouseVersion string        `json:"lighthouse_version,omitempty" yaml:"lighthouse_version,omitempty"`
	FinalURL          string        `json:"final_url,omitempty" yaml:"final_url,omitempty"`
	FetchTime         string        `json:"fetch_time,omitempty" yaml:"fetch_time,omitempty"`
	RawReport         []byte        `json:"-" yaml:"-"`
}

// RunFailure is a run that produced no result.
type RunFailure struct {
	Run      int
	Cause    error
	Duration time.Duration
}

// Outcome holds exactly one of Result or Failure for a run index.
type Outcome struct {
	Run     int
	Result  *RunResult
	Failure *RunFailure
}

func succeeded(r RunResult) Outcome {
	return Outcome{Run: r.Run, Result: &r}
}

func failed(run int, cause error, d time.Duration) Outcome {
	return Outcome{Run: run, Failure: &RunFailure{Run: run, Cause: cause, Duration: d}}
}

// Execution is everything one Run produced.
type Execution struct {
	ID        string
	Target    string
	Mode      Mode
	Topology  Topology
	InFlight  int
	Outcomes  []Outcome // ordered by Run, 1..N
	StartedAt time.Time
	Duration  time.Duration
}

// Results returns the successful runs in run order.
func (e *Execution) Results() []RunResult {
	if e == nil {
		return nil
	}
	out := make([]RunResult, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		if o.Result != nil {
			out = append(out, *o.Result)
		}
	}
	return out
}

// Failures returns the failed runs in run order.
func (e *Execution) Failures() []RunFailure {
	if e == nil {
		return nil
	}
	var out []RunFailure
	for _, o := range e.Outcomes {
		if o.Failure != nil {
			out = append(out, *o.Failure)
		}
	}
	return out
}

// ErrorKind classifies a MeasurementError.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport" // provider failed to produce a report
	KindShape     ErrorKind = "shape"     // report lacks a required metric
	KindTimeout   ErrorKind = "timeout"   // per-run deadline expired
	KindPersist   ErrorKind = "persist"   // raw report could not be written
	KindCancelled ErrorKind = "cancelled" // execution interrupted before the run finished
)

// MeasurementError is a failure isolated to one run.
type MeasurementError struct {
	Run  int
	Kind ErrorKind
	Err  error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("run %d: %s error: %v", e.Run, e.Kind, e.Err)
}

func (e *MeasurementError) Unwrap() error {
	return e.Err
}

// ErrSessionLost marks runs that never started because the shared browser
// died.
var ErrSessionLost = errors.New("shared browser session lost")

// SessionError is a browser session that could not be acquired or died.
// Fatal is set when the error ended the whole execution.
type SessionError struct {
	Run   int
	Fatal bool
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("run %d: browser session: %v", e.Run, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// ErrSharedConcurrent is returned by New for the unsupported combination of
// a shared session and concurrent mode.
var ErrSharedConcurrent = errors.New("shared session topology cannot run concurrently: lighthouse cannot audit concurrently on one browser")
