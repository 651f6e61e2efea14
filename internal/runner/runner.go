package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/perfrun/internal/session"
	"github.com/torosent/perfrun/internal/tracing"
)

// Runner executes the configured number of measurement runs against one
// target and collects every outcome.
type Runner struct {
	opt     Options
	limiter *rate.Limiter
	tracer  trace.Tracer
}

// New validates opt and returns a Runner. Shared topology combined with
// concurrent mode is rejected with ErrSharedConcurrent.
func New(opt Options) (*Runner, error) {
	if opt.Topology == TopologyShared && opt.Mode == ModeConcurrent {
		return nil, ErrSharedConcurrent
	}
	if opt.Launcher == nil {
		return nil, errors.New("runner: launcher is required")
	}
	if opt.Measurer == nil {
		return nil, errors.New("runner: measurer is required")
	}
	opt.normalize()
	tracer := opt.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("perfrun")
	}
	return &Runner{
		opt:     opt,
		limiter: opt.LimiterFactory(opt.LaunchRate),
		tracer:  tracer,
	}, nil
}

// Run performs every run and returns the execution with one outcome per run
// index. A non-nil error is returned alongside the execution when a shared
// session was lost or ctx was cancelled; individual run failures are only
// recorded in the outcomes.
func (r *Runner) Run(ctx context.Context) (*Execution, error) {
	exec := &Execution{
		ID:        ulid.Make().String(),
		Target:    r.opt.Target,
		Mode:      r.opt.Mode,
		Topology:  r.opt.Topology,
		InFlight:  r.opt.MaxInFlight,
		StartedAt: time.Now(),
	}

	ctx, span := tracing.StartExecutionSpan(ctx, r.tracer, exec.ID, r.opt.Target, r.opt.Runs)
	logger := r.opt.Logger.With("execution", exec.ID)
	logger.Info("execution started",
		"target", r.opt.Target,
		"runs", r.opt.Runs,
		"mode", r.opt.Mode,
		"topology", r.opt.Topology,
		"in_flight", r.opt.MaxInFlight,
	)
	if r.opt.Mode == ModeConcurrent && r.opt.MaxInFlight > 1 {
		logger.Warn("concurrent runs compete for CPU and network; timing metrics may be inflated", "in_flight", r.opt.MaxInFlight)
	}

	var runErr error
	switch {
	case r.opt.Topology == TopologyShared:
		exec.Outcomes, runErr = r.runShared(ctx)
	case r.opt.Mode == ModeConcurrent:
		exec.Outcomes = r.runConcurrent(ctx)
	default:
		exec.Outcomes = r.runSequential(ctx)
	}
	sort.Slice(exec.Outcomes, func(i, j int) bool { return exec.Outcomes[i].Run < exec.Outcomes[j].Run })

	if runErr == nil && ctx.Err() != nil {
		runErr = fmt.Errorf("execution interrupted: %w", ctx.Err())
	}
	exec.Duration = time.Since(exec.StartedAt)

	succeededRuns := len(exec.Results())
	logger.Info("execution finished",
		"succeeded", succeededRuns,
		"failed", len(exec.Outcomes)-succeededRuns,
		"duration", exec.Duration,
	)
	tracing.EndSpan(span, runErr,
		attribute.Int("perfrun.succeeded", succeededRuns),
		attribute.Int("perfrun.failed", len(exec.Outcomes)-succeededRuns),
	)
	return exec, runErr
}

func (r *Runner) runSequential(ctx context.Context) []Outcome {
	outcomes := make([]Outcome, 0, r.opt.Runs)
	for run := 1; run <= r.opt.Runs; run++ {
		outcomes = append(outcomes, r.runIsolated(ctx, run))
	}
	return outcomes
}

func (r *Runner) runConcurrent(ctx context.Context) []Outcome {
	p := pool.NewWithResults[Outcome]().WithMaxGoroutines(r.opt.MaxInFlight)
	for run := 1; run <= r.opt.Runs; run++ {
		p.Go(func() Outcome {
			return r.runIsolated(ctx, run)
		})
	}
	return p.Wait()
}

// runIsolated acquires a fresh session for one run and always releases it.
func (r *Runner) runIsolated(ctx context.Context, run int) Outcome {
	start := time.Now()
	r.opt.Observer.RunStarted(run)
	ctx, span := tracing.StartRunSpan(ctx, r.tracer, run)

	if ctx.Err() != nil {
		return r.finish(span, failed(run, cancelled(run, ctx.Err()), time.Since(start)))
	}
	r.opt.Logger.Info("run started", "run", run)

	if err := r.limiter.Wait(ctx); err != nil {
		return r.finish(span, failed(run, cancelled(run, err), time.Since(start)))
	}

	runCtx, cancel := r.runContext(ctx)
	defer cancel()

	sess, err := r.opt.Launcher.Launch(runCtx)
	if err != nil {
		return r.finish(span, failed(run, r.classifyLaunch(ctx, runCtx, run, err), time.Since(start)))
	}
	defer r.release(sess, run)

	res, err := r.opt.Measurer.Measure(runCtx, run, sess)
	if err != nil {
		return r.finish(span, failed(run, r.classify(ctx, runCtx, run, err), time.Since(start)))
	}
	return r.finish(span, succeeded(res))
}

// runShared multiplexes every run over one session. Losing the session ends
// the execution and marks every remaining run as failed.
func (r *Runner) runShared(ctx context.Context) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, r.opt.Runs)

	sess, err := r.opt.Launcher.Launch(ctx)
	if err != nil {
		fatal := &SessionError{Run: 1, Fatal: true, Err: err}
		if ctx.Err() != nil {
			return r.abandon(outcomes, 1, func(run int) error { return cancelled(run, ctx.Err()) }), nil
		}
		r.opt.Logger.Error("shared browser session could not be launched", "error", err)
		return r.abandon(outcomes, 1, func(run int) error {
			if run == 1 {
				return fatal
			}
			return &SessionError{Run: run, Fatal: true, Err: ErrSessionLost}
		}), fatal
	}
	defer r.release(sess, 0)

	for run := 1; run <= r.opt.Runs; run++ {
		start := time.Now()
		r.opt.Observer.RunStarted(run)
		runSpanCtx, span := tracing.StartRunSpan(ctx, r.tracer, run)
		if ctx.Err() != nil {
			outcomes = append(outcomes, r.finish(span, failed(run, cancelled(run, ctx.Err()), time.Since(start))))
			continue
		}
		r.opt.Logger.Info("run started", "run", run)

		runCtx, cancel := r.runContext(runSpanCtx)
		res, err := r.opt.Measurer.Measure(runCtx, run, sess)
		if err == nil {
			cancel()
			outcomes = append(outcomes, r.finish(span, succeeded(res)))
			continue
		}
		cause := r.classify(ctx, runCtx, run, err)
		cancel()

		if ctx.Err() == nil {
			if aliveErr := r.probe(ctx, sess); aliveErr != nil {
				fatal := &SessionError{Run: run, Fatal: true, Err: fmt.Errorf("%w: %w", aliveErr, cause)}
				outcomes = append(outcomes, r.finish(span, failed(run, fatal, time.Since(start))))
				r.opt.Logger.Error("shared browser session lost", "run", run, "error", aliveErr)
				return r.abandon(outcomes, run+1, func(n int) error {
					return &SessionError{Run: n, Fatal: true, Err: ErrSessionLost}
				}), fatal
			}
		}
		outcomes = append(outcomes, r.finish(span, failed(run, cause, time.Since(start))))
	}
	return outcomes, nil
}

// abandon records a failure for every run from first onwards without
// attempting it.
func (r *Runner) abandon(outcomes []Outcome, first int, cause func(run int) error) []Outcome {
	for run := first; run <= r.opt.Runs; run++ {
		r.opt.Observer.RunStarted(run)
		o := failed(run, cause(run), 0)
		r.opt.Observer.RunFinished(o)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (r *Runner) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opt.RunTimeout > 0 {
		return context.WithTimeout(ctx, r.opt.RunTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) probe(ctx context.Context, sess session.Session) error {
	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()
	return sess.Alive(probeCtx)
}

// release closes sess on a context detached from cancellation so that an
// interrupted execution still tears its browsers down.
func (r *Runner) release(sess session.Session, run int) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opt.CloseTimeout)
	defer cancel()
	if err := sess.Close(ctx); err != nil {
		r.opt.Logger.Warn("browser session close failed", "run", run, "error", err)
	}
}

func (r *Runner) classifyLaunch(parent, runCtx context.Context, run int, err error) error {
	switch {
	case parent.Err() != nil:
		return cancelled(run, err)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return &MeasurementError{Run: run, Kind: KindTimeout, Err: fmt.Errorf("browser launch exceeded %s: %w", r.opt.RunTimeout, err)}
	default:
		return &SessionError{Run: run, Err: err}
	}
}

func (r *Runner) classify(parent, runCtx context.Context, run int, err error) error {
	if parent.Err() != nil {
		return cancelled(run, err)
	}
	var merr *MeasurementError
	isMeasurement := errors.As(err, &merr)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		if isMeasurement && merr.Kind == KindTimeout {
			return err
		}
		return &MeasurementError{Run: run, Kind: KindTimeout, Err: fmt.Errorf("run exceeded %s: %w", r.opt.RunTimeout, err)}
	}
	var serr *SessionError
	if isMeasurement || errors.As(err, &serr) {
		return err
	}
	return &MeasurementError{Run: run, Kind: KindTransport, Err: err}
}

func cancelled(run int, err error) error {
	return &MeasurementError{Run: run, Kind: KindCancelled, Err: err}
}

func (r *Runner) finish(span trace.Span, o Outcome) Outcome {
	if o.Result != nil {
		r.opt.Logger.Info("run completed",
			"run", o.Run,
			"duration", o.Result.Duration,
			"performance", o.Result.Performance,
		)
		tracing.EndSpan(span, nil,
			attribute.Float64("perfrun.performance", o.Result.Performance),
			attribute.Float64("perfrun.lcp_ms", o.Result.LCP),
		)
	} else {
		r.opt.Logger.Warn("run failed",
			"run", o.Run,
			"duration", o.Failure.Duration,
			"error", o.Failure.Cause,
		)
		tracing.EndSpan(span, o.Failure.Cause)
	}
	r.opt.Observer.RunFinished(o)
	return o
}
