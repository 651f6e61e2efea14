package metrics

import (
	"errors"
	"math"
	"slices"

	"github.com/torosent/perfrun/internal/runner"
)

// ErrNoSuccessfulRuns is reported when an execution produced nothing to
// aggregate.
var ErrNoSuccessfulRuns = errors.New("no successful runs: aggregate metrics unavailable")

// Spread describes how one metric varied across runs.
type Spread struct {
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Median float64 `json:"median" yaml:"median"`
	P90    float64 `json:"p90" yaml:"p90"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
}

// Summary is the aggregate of the successful runs of one execution. It is
// only meaningful when HasData reports true.
type Summary struct {
	RunCount       int     `json:"run_count" yaml:"run_count"`
	AvgPerformance float64 `json:"avg_performance" yaml:"avg_performance"`
	AvgLCP         float64 `json:"avg_lcp_ms" yaml:"avg_lcp_ms"`
	AvgTBT         float64 `json:"avg_tbt_ms" yaml:"avg_tbt_ms"`
	AvgCLS         float64 `json:"avg_cls" yaml:"avg_cls"`

	Performance Spread `json:"performance" yaml:"performance"`
	LCP         Spread `json:"lcp_ms" yaml:"lcp_ms"`
	TBT         Spread `json:"tbt_ms" yaml:"tbt_ms"`
	CLS         Spread `json:"cls" yaml:"cls"`
}

// HasData reports whether at least one run contributed to the summary.
func (s Summary) HasData() bool {
	return s.RunCount > 0
}

// Err returns ErrNoSuccessfulRuns for an empty summary.
func (s Summary) Err() error {
	if !s.HasData() {
		return ErrNoSuccessfulRuns
	}
	return nil
}

// Metric returns the average and spread of a metric by name: performance,
// lcp, tbt or cls.
func (s Summary) Metric(name string) (avg float64, spread Spread, ok bool) {
	switch name {
	case "performance":
		return s.AvgPerformance, s.Performance, true
	case "lcp":
		return s.AvgLCP, s.LCP, true
	case "tbt":
		return s.AvgTBT, s.TBT, true
	case "cls":
		return s.AvgCLS, s.CLS, true
	}
	return 0, Spread{}, false
}

// Aggregate reduces results to a Summary. It does not modify results and
// returns the same Summary for the same input.
func Aggregate(results []runner.RunResult) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	values := func(pick func(runner.RunResult) float64) []float64 {
		out := make([]float64, len(results))
		for i, r := range results {
			out[i] = pick(r)
		}
		return out
	}

	perf := values(func(r runner.RunResult) float64 { return r.Performance })
	lcp := values(func(r runner.RunResult) float64 { return r.LCP })
	tbt := values(func(r runner.RunResult) float64 { return r.TBT })
	cls := values(func(r runner.RunResult) float64 { return r.CLS })

	return Summary{
		RunCount:       len(results),
		AvgPerformance: mean(perf),
		AvgLCP:         mean(lcp),
		AvgTBT:         mean(tbt),
		AvgCLS:         mean(cls),
		Performance:    spread(perf),
		LCP:            spread(lcp),
		TBT:            spread(tbt),
		CLS:            spread(cls),
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// spread works on a sorted copy: the median of an even sample is the mean
// of the two middle values and p90 is the nearest-rank value.
func spread(xs []float64) Spread {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	n := len(sorted)

	avg := mean(xs)
	var sq float64
	for _, x := range sorted {
		sq += (x - avg) * (x - avg)
	}

	s := Spread{
		Min:    sorted[0],
		Max:    sorted[n-1],
		P90:    sorted[nearestRank(n, 0.90)-1],
		StdDev: math.Sqrt(sq / float64(n)),
	}
	if n%2 == 1 {
		s.Median = sorted[n/2]
	} else {
		s.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return s
}

func nearestRank(n int, q float64) int {
	return min(max(int(math.Ceil(q*float64(n))), 1), n)
}
