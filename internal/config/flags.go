package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "perfrun --url <address> [flags]",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target and run plan
	flags.StringP("url", "u", "", "Page address to audit")
	flags.String("target", "", "Alias for --url")
	_ = flags.MarkHidden("target")
	flags.IntP("iterations", "i", DefaultRuns, "Number of audit runs")
	flags.BoolP("parallel", "p", false, "Run audits concurrently (faster but less accurate)")
	flags.String("mode", string(ModeSequential), "Execution mode: 'sequential' or 'concurrent'")
	flags.String("topology", string(TopologyPerRun), "Browser session topology: 'per-run' or 'shared'")
	flags.Int("max-in-flight", DefaultMaxInFlight, "Maximum concurrent runs in concurrent mode")
	flags.Duration("run-timeout", DefaultRunTimeout, "Per-run timeout including browser launch (0 disables)")
	flags.Int("retries", 0, "Number of retries per run")
	flags.Int("launch-rate", 0, "Browser launches per second (0 means unlimited)")

	// Output flags
	flags.BoolP("export", "e", false, "Export per-run results to a CSV file")
	flags.String("export-path", DefaultExportPath, "CSV export path, relative to the output directory")
	flags.StringP("output-dir", "o", ".", "Directory for raw reports and exports")
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.String("summary-file", "", "Write the summary to a .json or .yaml file, relative to the output directory")
	flags.String("html-output", "", "Generate an HTML report at this path, relative to the output directory")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("env-file", "", "Path to a .env file with PERFRUN_* variables")

	// Browser and provider flags
	flags.String("chrome-path", "", "Chrome binary (defaults to the first one found in PATH)")
	flags.StringSlice("chrome-flags", nil, "Extra Chrome flags (repeatable)")
	flags.Duration("chrome-startup-timeout", DefaultStartupTimeout, "How long to wait for Chrome's DevTools endpoint")
	flags.String("lighthouse-path", DefaultLighthousePath, "Lighthouse CLI binary")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Performance budgets (repeatable, e.g., 'performance:avg >= 0.9')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the environment and config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	for _, name := range []string{"target", "url"} {
		if fs.Changed(name) {
			val, err := fs.GetString(name)
			if err != nil {
				return err
			}
			cfg.TargetURL = strings.TrimSpace(val)
		}
	}
	if fs.Changed("iterations") {
		val, err := fs.GetInt("iterations")
		if err != nil {
			return err
		}
		cfg.Runs = val
	}
	if fs.Changed("mode") {
		val, err := fs.GetString("mode")
		if err != nil {
			return err
		}
		cfg.Mode = Mode(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("parallel") {
		val, err := fs.GetBool("parallel")
		if err != nil {
			return err
		}
		if val {
			cfg.Mode = ModeConcurrent
		} else if !fs.Changed("mode") {
			cfg.Mode = ModeSequential
		}
	}
	if fs.Changed("topology") {
		val, err := fs.GetString("topology")
		if err != nil {
			return err
		}
		cfg.Topology = Topology(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("max-in-flight") {
		val, err := fs.GetInt("max-in-flight")
		if err != nil {
			return err
		}
		cfg.MaxInFlight = val
	}
	if fs.Changed("run-timeout") {
		val, err := fs.GetDuration("run-timeout")
		if err != nil {
			return err
		}
		cfg.RunTimeout = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("launch-rate") {
		val, err := fs.GetInt("launch-rate")
		if err != nil {
			return err
		}
		cfg.LaunchRate = val
	}

	if fs.Changed("export") {
		val, err := fs.GetBool("export")
		if err != nil {
			return err
		}
		cfg.Export = val
	}
	if fs.Changed("export-path") {
		val, err := fs.GetString("export-path")
		if err != nil {
			return err
		}
		cfg.ExportPath = strings.TrimSpace(val)
	}
	if fs.Changed("output-dir") {
		val, err := fs.GetString("output-dir")
		if err != nil {
			return err
		}
		cfg.OutputDir = strings.TrimSpace(val)
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("summary-file") {
		val, err := fs.GetString("summary-file")
		if err != nil {
			return err
		}
		cfg.SummaryFile = strings.TrimSpace(val)
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}

	if fs.Changed("chrome-path") {
		val, err := fs.GetString("chrome-path")
		if err != nil {
			return err
		}
		cfg.Browser.Path = strings.TrimSpace(val)
	}
	if fs.Changed("chrome-flags") {
		val, err := fs.GetStringSlice("chrome-flags")
		if err != nil {
			return err
		}
		cfg.Browser.Flags = val
	}
	if fs.Changed("chrome-startup-timeout") {
		val, err := fs.GetDuration("chrome-startup-timeout")
		if err != nil {
			return err
		}
		cfg.Browser.StartupTimeout = val
	}
	if fs.Changed("lighthouse-path") {
		val, err := fs.GetString("lighthouse-path")
		if err != nil {
			return err
		}
		cfg.Lighthouse.Path = strings.TrimSpace(val)
	}

	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}
