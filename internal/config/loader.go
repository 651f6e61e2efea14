package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PERFRUN"

// envKeys are the settings that may be supplied as PERFRUN_* variables.
// Nested keys map to underscores, e.g. browser.path -> PERFRUN_BROWSER_PATH.
var envKeys = []string{
	"target",
	"runs",
	"mode",
	"topology",
	"max_in_flight",
	"run_timeout",
	"retries",
	"launch_rate",
	"export",
	"export_path",
	"output_dir",
	"summary_file",
	"log_level",
	"browser.path",
	"lighthouse.path",
	"tracing.endpoint",
	"tracing.protocol",
	"tracing.insecure",
}

// Loader handles loading configuration from files, the environment and
// command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments, the environment and configuration files
// to produce a Config. The result is not validated.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	envFile := flagSet.Lookup("env-file").Value.String()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("env file: %w", err)
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	cfgViper.SetEnvPrefix(envPrefix)
	cfgViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range envKeys {
		if err := cfgViper.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Runs:        DefaultRuns,
		Mode:        ModeSequential,
		Topology:    TopologyPerRun,
		MaxInFlight: DefaultMaxInFlight,
		RunTimeout:  DefaultRunTimeout,
		ExportPath:  DefaultExportPath,
		OutputDir:   ".",
		LogLevel:    "info",
		ConfigFile:  configPath,
		EnvFile:     envFile,
		Browser: BrowserConfig{
			StartupTimeout: DefaultStartupTimeout,
		},
		Lighthouse: LighthouseConfig{
			Path:       DefaultLighthousePath,
			Categories: []string{"performance"},
		},
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Mode = Mode(strings.ToLower(string(cfg.Mode)))
	cfg.Topology = Topology(strings.ToLower(string(cfg.Topology)))
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file or the environment
// to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target", "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "runs", "iterations"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("runs: %w", err)
		}
		cfg.Runs = val
	}

	if raw, ok := lookupSetting(settings, "parallel"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("parallel: %w", err)
		}
		if val {
			cfg.Mode = ModeConcurrent
		}
	}

	if raw, ok := lookupSetting(settings, "mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		if val = strings.TrimSpace(val); val != "" {
			cfg.Mode = Mode(strings.ToLower(val))
		}
	}

	if raw, ok := lookupSetting(settings, "topology"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("topology: %w", err)
		}
		if val = strings.TrimSpace(val); val != "" {
			cfg.Topology = Topology(strings.ToLower(val))
		}
	}

	if raw, ok := lookupSetting(settings, "maxinflight", "max_in_flight", "max-in-flight"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("maxInFlight: %w", err)
		}
		cfg.MaxInFlight = val
	}

	if raw, ok := lookupSetting(settings, "runtimeout", "run_timeout", "run-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("runTimeout: %w", err)
		}
		cfg.RunTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "launchrate", "launch_rate", "launch-rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("launchRate: %w", err)
		}
		cfg.LaunchRate = val
	}

	if raw, ok := lookupSetting(settings, "export"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		cfg.Export = val
	}

	if raw, ok := lookupSetting(settings, "exportpath", "export_path", "export-path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("exportPath: %w", err)
		}
		cfg.ExportPath = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "outputdir", "output_dir", "output-dir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("outputDir: %w", err)
		}
		cfg.OutputDir = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "summaryfile", "summary_file", "summary-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("summaryFile: %w", err)
		}
		cfg.SummaryFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "browser", "chrome"); ok {
		if err := parseBrowserConfig(raw, &cfg.Browser); err != nil {
			return fmt.Errorf("browser: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "lighthouse"); ok {
		if err := parseLighthouseConfig(raw, &cfg.Lighthouse); err != nil {
			return fmt.Errorf("lighthouse: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := parseTracingConfig(raw, &cfg.Tracing); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func parseBrowserConfig(value interface{}, browser *BrowserConfig) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		browser.Path = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "flags"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("flags: %w", err)
		}
		browser.Flags = val
	}
	if raw, ok := lookupSetting(settings, "startuptimeout", "startup_timeout", "startup-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("startup_timeout: %w", err)
		}
		browser.StartupTimeout = dur
	}
	return nil
}

func parseLighthouseConfig(value interface{}, lh *LighthouseConfig) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		lh.Path = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "categories"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("categories: %w", err)
		}
		lh.Categories = val
	}
	if raw, ok := lookupSetting(settings, "extraargs", "extra_args", "extra-args"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("extra_args: %w", err)
		}
		lh.ExtraArgs = val
	}
	return nil
}

func parseTracingConfig(value interface{}, tc *TracingConfig) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	return nil
}
