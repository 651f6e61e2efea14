package runner

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/torosent/perfrun/internal/session"
)

// Measurer performs one measurement on an acquired session.
// Implementations return a *MeasurementError for failed runs.
type Measurer interface {
	Measure(ctx context.Context, run int, sess session.Session) (RunResult, error)
}

// Observer is notified as runs start and finish. Calls may arrive from
// several goroutines in concurrent mode.
type Observer interface {
	RunStarted(run int)
	RunFinished(o Outcome)
}

const (
	defaultCloseTimeout = 10 * time.Second
	defaultProbeTimeout = 5 * time.Second
	defaultMaxInFlight  = 4
)

// Options configure the Runner.
type Options struct {
	Target         string
	Runs           int
	Mode           Mode
	Topology       Topology
	MaxInFlight    int                         // concurrent cap, clamped to Runs
	RunTimeout     time.Duration               // per-run limit including launch (0 means none)
	LaunchRate     int                         // session launches per second (0 means unlimited)
	CloseTimeout   time.Duration               // bound for releasing a session
	Launcher       session.Launcher            // required
	Measurer       Measurer                    // required
	Observer       Observer                    // optional
	Logger         *slog.Logger                // optional, defaults to slog.Default()
	Tracer         trace.Tracer                // optional
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Runs <= 0 {
		o.Runs = 1
	}
	if o.Mode == "" {
		o.Mode = ModeSequential
	}
	if o.Topology == "" {
		o.Topology = TopologyPerRun
	}
	if o.Mode == ModeSequential {
		o.MaxInFlight = 1
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = defaultMaxInFlight
	}
	if o.MaxInFlight > o.Runs {
		o.MaxInFlight = o.Runs
	}
	if o.RunTimeout < 0 {
		o.RunTimeout = 0
	}
	if o.LaunchRate < 0 {
		o.LaunchRate = 0
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = defaultCloseTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one spaces launches evenly instead of releasing rps at once.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type nopObserver struct{}

func (nopObserver) RunStarted(int)      {}
func (nopObserver) RunFinished(Outcome) {}
