// Package runner provides the multi-run audit engine for perfrun.
//
// A [Runner] performs N independent measurement runs against one target and
// returns an [Execution] whose outcomes are ordered by run index, whatever
// order the runs actually finished in. Each outcome is either a [RunResult]
// or a [RunFailure]; one failing run never stops its siblings.
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Target:   "https://example.com",
//		Runs:     5,
//		Mode:     runner.ModeSequential,
//		Topology: runner.TopologyPerRun,
//		Launcher: session.NewChromeLauncher(session.ChromeConfig{}),
//		Measurer: runner.NewExecutor(target, lighthouse, store),
//	})
//	exec, err := r.Run(ctx)
//
// # Topologies
//
//   - [TopologyPerRun]: every run launches and closes its own browser. A
//     browser crash only affects the run that owned it.
//   - [TopologyShared]: one browser serves every run. Launch overhead is paid
//     once, but losing the browser fails all remaining runs and Run returns a
//     fatal [*SessionError]. Shared sessions only support sequential mode.
//
// # Modes
//
//   - [ModeSequential]: run i+1 starts after run i has finished.
//   - [ModeConcurrent]: runs are submitted to a bounded pool of MaxInFlight
//     workers. Simultaneous audits contend for CPU and network, so timing
//     metrics are inflated compared to sequential runs.
//
// # Middleware
//
// Measurers can be wrapped:
//   - [WithLogging]: log failed attempts
//   - [WithRetry]: retry transport failures with backoff
//
// # Error Handling
//
// Failures carry a [*MeasurementError] (provider, report shape, timeout or
// persistence problems) or a [*SessionError] (browser launch or loss):
//
//	var merr *runner.MeasurementError
//	if errors.As(f.Cause, &merr) && merr.Kind == runner.KindShape {
//		fmt.Println("report was missing a metric:", merr.Err)
//	}
package runner
