package metrics

import (
	"context"
	"errors"

	"github.com/torosent/perfrun/internal/extractor"
	"github.com/torosent/perfrun/internal/provider"
	"github.com/torosent/perfrun/internal/runner"
)

// FailureReason returns a short label grouping run failures by cause. The
// error kind picks the group; the wrapped cause narrows it where Lighthouse
// said more about what went wrong.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	var serr *runner.SessionError
	if errors.As(err, &serr) {
		if errors.Is(err, runner.ErrSessionLost) {
			return "session lost"
		}
		return "browser session"
	}
	var merr *runner.MeasurementError
	if !errors.As(err, &merr) {
		return unclassifiedReason(err)
	}
	switch merr.Kind {
	case runner.KindShape:
		var rerr *extractor.RuntimeError
		if errors.As(err, &rerr) {
			return "lighthouse runtime error"
		}
		return "invalid report"
	case runner.KindTimeout:
		return "timeout"
	case runner.KindPersist:
		return "report not saved"
	case runner.KindCancelled:
		return "cancelled"
	default:
		var perr *provider.Error
		if errors.As(err, &perr) {
			return "lighthouse exited"
		}
		return "lighthouse failed"
	}
}

// unclassifiedReason labels errors that never went through the runner, such
// as failures handed to a Collector by a custom Measurer chain.
func unclassifiedReason(err error) string {
	var (
		fe   *extractor.FieldError
		rerr *extractor.RuntimeError
		perr *provider.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &rerr):
		return "lighthouse runtime error"
	case errors.As(err, &fe), errors.Is(err, extractor.ErrMalformedReport):
		return "invalid report"
	case errors.As(err, &perr):
		return "lighthouse exited"
	default:
		return "lighthouse failed"
	}
}
