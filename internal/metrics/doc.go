// Package metrics reduces measurement runs to summary statistics.
//
// [Aggregate] is a pure reduction over the successful runs of one execution:
//
//	summary := metrics.Aggregate(exec.Results())
//	if err := summary.Err(); err != nil {
//		// metrics.ErrNoSuccessfulRuns: report "no data", never zeros
//	}
//	fmt.Printf("%.1f\n", summary.AvgPerformance*100)
//
// Averages are exact arithmetic means. Each metric also carries a [Spread]
// whose median and p90 come from an HDR histogram.
//
// # Collector
//
// [Collector] observes runs while they execute and is what the progress line
// and the dashboard read from. It implements runner.Observer and is safe for
// concurrent use:
//
//	collector := metrics.NewCollector(cfg.Runs)
//	opts.Observer = collector
//	...
//	snap := collector.Snapshot()
//
// # Failure labels
//
// [FailureReason] maps a run failure to a short, stable label such as
// "timeout" or "invalid report", used for grouping on every output surface.
package metrics
