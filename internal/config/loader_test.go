package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestBlankEnvironmentValuesAreUnset(t *testing.T) {
	if n, err := asInt("  "); err != nil || n != 0 {
		t.Errorf("asInt(blank) = %d, %v; want 0, nil", n, err)
	}
	if b, err := asBool(""); err != nil || b {
		t.Errorf("asBool(blank) = %v, %v; want false, nil", b, err)
	}
	if d, err := asDuration(" "); err != nil || d != 0 {
		t.Errorf("asDuration(blank) = %v, %v; want 0, nil", d, err)
	}
	if f, err := asFloat64(" 0.5 "); err != nil || f != 0.5 {
		t.Errorf("asFloat64(\" 0.5 \") = %v, %v; want 0.5, nil", f, err)
	}
}

func TestAsDurationFractionalSeconds(t *testing.T) {
	got, err := asDuration(1.5)
	if err != nil {
		t.Fatalf("asDuration() error = %v", err)
	}
	if got != 1500*time.Millisecond {
		t.Errorf("asDuration(1.5) = %v, want 1.5s", got)
	}
}

func TestAsIntRejectsGarbage(t *testing.T) {
	if _, err := asInt("three"); err == nil {
		t.Error("asInt(\"three\") should fail")
	}
}

func TestAsStringSliceSplitsCommaSeparated(t *testing.T) {
	got, err := asStringSlice("--no-sandbox, --disable-gpu")
	if err != nil {
		t.Fatalf("asStringSlice() error = %v", err)
	}
	if len(got) != 2 || got[0] != "--no-sandbox" || got[1] != "--disable-gpu" {
		t.Errorf("asStringSlice() = %v, want [--no-sandbox --disable-gpu]", got)
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := &Config{}
	settings := map[string]interface{}{
		"url":         "https://example.com",
		"iterations":  5,
		"parallel":    true,
		"run_timeout": "90s",
		"browser": map[string]interface{}{
			"path":            "/usr/bin/chromium",
			"flags":           []interface{}{"--no-sandbox"},
			"startup_timeout": "10s",
		},
		"lighthouse": map[string]interface{}{
			"path":       "/opt/lighthouse",
			"extra_args": []interface{}{"--throttling-method=devtools"},
		},
		"tracing": map[string]interface{}{
			"endpoint":    "localhost:4317",
			"sample_rate": 0.5,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.TargetURL != "https://example.com" {
		t.Errorf("TargetURL = %q, want https://example.com", cfg.TargetURL)
	}
	if cfg.Runs != 5 {
		t.Errorf("Runs = %d, want 5", cfg.Runs)
	}
	if cfg.Mode != ModeConcurrent {
		t.Errorf("Mode = %q, want concurrent", cfg.Mode)
	}
	if cfg.RunTimeout != 90*time.Second {
		t.Errorf("RunTimeout = %v, want 90s", cfg.RunTimeout)
	}
	if cfg.Browser.Path != "/usr/bin/chromium" {
		t.Errorf("Browser.Path = %q, want /usr/bin/chromium", cfg.Browser.Path)
	}
	if len(cfg.Browser.Flags) != 1 || cfg.Browser.Flags[0] != "--no-sandbox" {
		t.Errorf("Browser.Flags = %v, want [--no-sandbox]", cfg.Browser.Flags)
	}
	if cfg.Browser.StartupTimeout != 10*time.Second {
		t.Errorf("Browser.StartupTimeout = %v, want 10s", cfg.Browser.StartupTimeout)
	}
	if cfg.Lighthouse.Path != "/opt/lighthouse" {
		t.Errorf("Lighthouse.Path = %q, want /opt/lighthouse", cfg.Lighthouse.Path)
	}
	if len(cfg.Lighthouse.ExtraArgs) != 1 {
		t.Errorf("Lighthouse.ExtraArgs = %v, want one entry", cfg.Lighthouse.ExtraArgs)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("Tracing.Endpoint = %q, want localhost:4317", cfg.Tracing.Endpoint)
	}
	if cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing.SampleRate = %v, want 0.5", cfg.Tracing.SampleRate)
	}
}

func TestApplyConfigSettingsModeWinsOverParallel(t *testing.T) {
	cfg := &Config{Mode: ModeSequential}
	settings := map[string]interface{}{
		"parallel": true,
		"mode":     "sequential",
	}
	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}
	if cfg.Mode != ModeSequential {
		t.Errorf("Mode = %q, want sequential", cfg.Mode)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := &Config{
		Runs:     3,
		Mode:     ModeSequential,
		Topology: TopologyPerRun,
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"-u", "https://example.com/",
		"-i", "7",
		"-p",
		"-e",
		"--chrome-flags=--no-sandbox",
		"--chrome-flags=--disable-gpu",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.TargetURL != "https://example.com/" {
		t.Errorf("TargetURL = %q, want https://example.com/", cfg.TargetURL)
	}
	if cfg.Runs != 7 {
		t.Errorf("Runs = %d, want 7", cfg.Runs)
	}
	if cfg.Mode != ModeConcurrent {
		t.Errorf("Mode = %q, want concurrent", cfg.Mode)
	}
	if !cfg.Export {
		t.Error("Export = false, want true")
	}
	if len(cfg.Browser.Flags) != 2 {
		t.Errorf("Browser.Flags = %v, want 2 entries", cfg.Browser.Flags)
	}
}

func TestApplyFlagOverridesTargetAlias(t *testing.T) {
	cfg := &Config{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"--target", " https://example.org "}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}
	if cfg.TargetURL != "https://example.org" {
		t.Errorf("TargetURL = %q, want https://example.org", cfg.TargetURL)
	}
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader()
	args := []string{
		"--url=https://example.com",
		"--mode=concurrent",
		"--max-in-flight=2",
	}

	cfg, err := loader.Load(args)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://example.com" {
		t.Errorf("TargetURL = %q, want https://example.com", cfg.TargetURL)
	}
	if cfg.Mode != ModeConcurrent {
		t.Errorf("Mode = %q, want concurrent", cfg.Mode)
	}
	if cfg.EffectiveInFlight() != 2 {
		t.Errorf("EffectiveInFlight() = %d, want 2", cfg.EffectiveInFlight())
	}
}
