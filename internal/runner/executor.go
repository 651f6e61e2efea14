package runner

import (
	"context"
	"errors"
	"time"

	"github.com/torosent/perfrun/internal/extractor"
	"github.com/torosent/perfrun/internal/provider"
	"github.com/torosent/perfrun/internal/session"
)

// ReportSink persists a run's raw report and returns where it went.
type ReportSink interface {
	WriteRawReport(run int, raw []byte) (string, error)
}

var errNoSession = errors.New("no browser session available")

// Executor performs a single audit: one provider call, raw report
// persistence and metric extraction.
type Executor struct {
	target   string
	provider provider.Provider
	sink     ReportSink
}

// NewExecutor returns an Executor auditing target. sink may be nil, in which
// case raw reports are only kept in memory.
func NewExecutor(target string, p provider.Provider, sink ReportSink) *Executor {
	return &Executor{target: target, provider: p, sink: sink}
}

func (e *Executor) Measure(ctx context.Context, run int, sess session.Session) (RunResult, error) {
	start := time.Now()
	if sess == nil {
		return RunResult{}, &MeasurementError{Run: run, Kind: KindTransport, Err: errNoSession}
	}

	raw, err := e.provider.Audit(ctx, e.target, sess.Port())
	if err != nil {
		return RunResult{}, &MeasurementError{Run: run, Kind: transportKind(ctx, err), Err: err}
	}

	// The report is written before extraction so malformed reports can be
	// inspected afterwards.
	var path string
	if e.sink != nil {
		path, err = e.sink.WriteRawReport(run, raw)
		if err != nil {
			return RunResult{}, &MeasurementError{Run: run, Kind: KindPersist, Err: err}
		}
	}

	m, err := extractor.Extract(raw)
	if err != nil {
		return RunResult{}, &MeasurementError{Run: run, Kind: KindShape, Err: err}
	}
	details := extractor.ReadDetails(raw)

	return RunResult{
		Run:               run,
		Performance:       m.Performance,
		LCP:               m.LCP,
		TBT:               m.TBT,
		CLS:               m.CLS,
		Duration:          time.Since(start),
		ReportPath:        path,
		LighthouseVersion: details.LighthouseVersion,
		FinalURL:          details.FinalURL,
		FetchTime:         details.FetchTime,
		RawReport:         raw,
	}, nil
}

func transportKind(ctx context.Context, err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return KindCancelled
	default:
		return KindTransport
	}
}
