package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Mode selects how runs are scheduled.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeConcurrent Mode = "concurrent"
)

// Topology selects how browser sessions are acquired across runs.
type Topology string

const (
	TopologyPerRun Topology = "per-run"
	TopologyShared Topology = "shared"
)

const (
	DefaultRuns           = 3
	DefaultMaxInFlight    = 4
	DefaultRunTimeout     = 2 * time.Minute
	DefaultStartupTimeout = 30 * time.Second
	DefaultExportPath     = "summary.csv"
	DefaultLighthousePath = "lighthouse"
)

type Config struct {
	TargetURL   string           `mapstructure:"target"`
	Runs        int              `mapstructure:"runs"`
	Mode        Mode             `mapstructure:"mode"`
	Topology    Topology         `mapstructure:"topology"`
	MaxInFlight int              `mapstructure:"max_in_flight"`
	RunTimeout  time.Duration    `mapstructure:"run_timeout"`
	Retries     int              `mapstructure:"retries"`
	LaunchRate  int              `mapstructure:"launch_rate"`
	Export      bool             `mapstructure:"export"`
	ExportPath  string           `mapstructure:"export_path"`
	OutputDir   string           `mapstructure:"output_dir"`
	JSONOutput  bool             `mapstructure:"json_output"`
	SummaryFile string           `mapstructure:"summary_file"`
	HTMLOutput  string           `mapstructure:"html_output"`
	Dashboard   bool             `mapstructure:"dashboard"`
	LogLevel    string           `mapstructure:"log_level"`
	Thresholds  []string         `mapstructure:"thresholds"`
	Browser     BrowserConfig    `mapstructure:"browser"`
	Lighthouse  LighthouseConfig `mapstructure:"lighthouse"`
	Tracing     TracingConfig    `mapstructure:"tracing"`
	ConfigFile  string           `mapstructure:"-"`
	EnvFile     string           `mapstructure:"-"`
}

type BrowserConfig struct {
	Path           string        `mapstructure:"path"`            // Chrome binary, empty means search PATH
	Flags          []string      `mapstructure:"flags"`           // Extra command-line flags
	StartupTimeout time.Duration `mapstructure:"startup_timeout"` // Wait for the DevTools endpoint
}

type LighthouseConfig struct {
	Path       string   `mapstructure:"path"`
	Categories []string `mapstructure:"categories"`
	ExtraArgs  []string `mapstructure:"extra_args"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether an exporter endpoint is configured, either directly
// or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	if strings.TrimSpace(t.Endpoint) != "" {
		return true
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// Concurrent reports whether runs may overlap.
func (c Config) Concurrent() bool {
	return c.Mode == ModeConcurrent
}

// EffectiveInFlight is the number of runs allowed in flight at once.
func (c Config) EffectiveInFlight() int {
	if !c.Concurrent() {
		return 1
	}
	n := c.MaxInFlight
	if n <= 0 {
		n = DefaultMaxInFlight
	}
	if c.Runs > 0 && n > c.Runs {
		n = c.Runs
	}
	return n
}

// ExportFile resolves the CSV export path against the output directory.
func (c Config) ExportFile() string {
	p := c.ExportPath
	if p == "" {
		p = DefaultExportPath
	}
	return c.inOutputDir(p)
}

// SummaryPath resolves SummaryFile against the output directory, or returns
// "" when no summary file was requested.
func (c Config) SummaryPath() string {
	if c.SummaryFile == "" {
		return ""
	}
	return c.inOutputDir(c.SummaryFile)
}

// HTMLPath resolves HTMLOutput like SummaryPath.
func (c Config) HTMLPath() string {
	if c.HTMLOutput == "" {
		return ""
	}
	return c.inOutputDir(c.HTMLOutput)
}

func (c Config) inOutputDir(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.OutputDir, p)
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if issue := validateTarget(c.TargetURL); issue != "" {
		issues = append(issues, issue)
	}

	if c.Runs < 1 {
		issues = append(issues, "runs must be >= 1")
	}
	switch c.Mode {
	case ModeSequential, ModeConcurrent:
	default:
		issues = append(issues, fmt.Sprintf("mode must be 'sequential' or 'concurrent', got %q", c.Mode))
	}
	switch c.Topology {
	case TopologyPerRun, TopologyShared:
	default:
		issues = append(issues, fmt.Sprintf("topology must be 'per-run' or 'shared', got %q", c.Topology))
	}
	// One Chrome instance cannot host two Lighthouse audits at the same time.
	if c.Topology == TopologyShared && c.Mode == ModeConcurrent {
		issues = append(issues, "topology 'shared' cannot be combined with concurrent mode: lighthouse cannot audit concurrently on one browser")
	}

	if c.MaxInFlight < 1 {
		issues = append(issues, "max_in_flight must be >= 1")
	}
	if c.RunTimeout < 0 {
		issues = append(issues, "run_timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.LaunchRate < 0 {
		issues = append(issues, "launch_rate must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if c.SummaryFile != "" {
		switch strings.ToLower(filepath.Ext(c.SummaryFile)) {
		case ".json", ".yaml", ".yml":
		default:
			issues = append(issues, fmt.Sprintf("summary_file must end in .json, .yaml or .yml, got %q", c.SummaryFile))
		}
	}
	if c.Browser.StartupTimeout < 0 {
		issues = append(issues, "browser: startup_timeout must be >= 0")
	}
	if strings.TrimSpace(c.Lighthouse.Path) == "" {
		issues = append(issues, "lighthouse: path is required")
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTarget(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Sprintf("target %q is not a valid URL: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("target %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Sprintf("target %q has no host", raw)
	}
	return ""
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
