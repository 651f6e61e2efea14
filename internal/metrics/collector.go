package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/perfrun/internal/runner"
)

// Collector tracks runs as they start and finish. It implements
// runner.Observer.
type Collector struct {
	mu          sync.Mutex
	hist        *hdrhistogram.Histogram
	total       int
	started     int
	succeeded   int
	failed      int
	inFlight    map[int]time.Time
	minDuration time.Duration
	maxDuration time.Duration
	sumDuration time.Duration
	failures    map[string]int
	performance []float64
	lcp         []float64
	start       time.Time
}

// Snapshot is a point-in-time view of a Collector.
type Snapshot struct {
	Total        int            `json:"total"`
	Started      int            `json:"started"`
	InFlight     int            `json:"in_flight"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	Elapsed      time.Duration  `json:"-"`
	MinDuration  time.Duration  `json:"-"`
	MaxDuration  time.Duration  `json:"-"`
	MeanDuration time.Duration  `json:"-"`
	P50Duration  time.Duration  `json:"-"`
	P90Duration  time.Duration  `json:"-"`
	Failures     map[string]int `json:"failures,omitempty"`

	// Metric values of successful runs in completion order.
	Performance []float64 `json:"-"`
	LCP         []float64 `json:"-"`

	// JSON-friendly millisecond fields.
	ElapsedMs      float64 `json:"elapsed_ms"`
	MeanDurationMs float64 `json:"mean_run_ms"`
	P90DurationMs  float64 `json:"p90_run_ms"`
}

// Done returns the number of finished runs.
func (s Snapshot) Done() int {
	return s.Succeeded + s.Failed
}

// NewCollector returns a Collector expecting total runs.
func NewCollector(total int) *Collector {
	// Track run durations from 1ms up to 1h with 3 significant figures.
	h := hdrhistogram.New(1, 3_600_000, 3)
	return &Collector{
		hist:     h,
		total:    total,
		inFlight: make(map[int]time.Time),
		failures: make(map[string]int),
		start:    time.Now(),
	}
}

// RunStarted marks run as in flight.
func (c *Collector) RunStarted(run int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
	c.inFlight[run] = time.Now()
}

// RunFinished records the outcome of a run.
func (c *Collector) RunFinished(o runner.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, o.Run)

	var d time.Duration
	if o.Result != nil {
		c.succeeded++
		d = o.Result.Duration
		c.performance = append(c.performance, o.Result.Performance)
		c.lcp = append(c.lcp, o.Result.LCP)
	} else if o.Failure != nil {
		c.failed++
		d = o.Failure.Duration
		c.failures[FailureReason(o.Failure.Cause)]++
	}
	if d <= 0 {
		return
	}

	ms := d.Milliseconds()
	if ms < c.hist.LowestTrackableValue() {
		ms = c.hist.LowestTrackableValue()
	}
	if ms > c.hist.HighestTrackableValue() {
		ms = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(ms)
	c.sumDuration += d
	if c.minDuration == 0 || d < c.minDuration {
		c.minDuration = d
	}
	if d > c.maxDuration {
		c.maxDuration = d
	}
}

// Snapshot computes the current view.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Total:       c.total,
		Started:     c.started,
		InFlight:    len(c.inFlight),
		Succeeded:   c.succeeded,
		Failed:      c.failed,
		Elapsed:     time.Since(c.start),
		MinDuration: c.minDuration,
		MaxDuration: c.maxDuration,
		Performance: append([]float64(nil), c.performance...),
		LCP:         append([]float64(nil), c.lcp...),
	}
	if n := c.hist.TotalCount(); n > 0 {
		s.MeanDuration = c.sumDuration / time.Duration(n)
		s.P50Duration = time.Duration(c.hist.ValueAtQuantile(50)) * time.Millisecond
		s.P90Duration = time.Duration(c.hist.ValueAtQuantile(90)) * time.Millisecond
	}
	if len(c.failures) > 0 {
		s.Failures = make(map[string]int, len(c.failures))
		for k, v := range c.failures {
			s.Failures[k] = v
		}
	}

	s.ElapsedMs = float64(s.Elapsed) / float64(time.Millisecond)
	s.MeanDurationMs = float64(s.MeanDuration) / float64(time.Millisecond)
	s.P90DurationMs = float64(s.P90Duration) / float64(time.Millisecond)
	return s
}
