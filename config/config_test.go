package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDefaultSamplersCoverExpectedClasses(t *testing.T) {
	want := map[string]bool{
		"editor":          false,
		"extension-host":  false,
		"ai-model-local":  false,
		"ai-model-remote": false,
		"terminal":        false,
	}
	for _, sc := range DefaultSamplers() {
		if _, ok := want[sc.Class]; !ok {
			t.Errorf("unexpected default sampler class %q", sc.Class)
			continue
		}
		want[sc.Class] = true
	}
	for class, seen := range want {
		if !seen {
			t.Errorf("default samplers missing class %q", class)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lagmon.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: "0.0.0.0:9700"
log:
  level: debug
samplers:
  - class: editor
    interval: 5s
    name_contains: ["code"]
aggregator:
  window_minutes: 30
retention:
  days: 14
  archive_dir: /var/lib/lagmon/archive
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != "0.0.0.0:9700" {
		t.Errorf("Listen = %q, want 0.0.0.0:9700", cfg.Listen)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if len(cfg.Samplers) != 1 || cfg.Samplers[0].Interval != 5*time.Second {
		t.Errorf("Samplers = %+v, want one editor sampler at 5s", cfg.Samplers)
	}
	if cfg.Aggregator.WindowMinutes != 30 {
		t.Errorf("WindowMinutes = %d, want 30", cfg.Aggregator.WindowMinutes)
	}
	if cfg.Retention.Days != 14 {
		t.Errorf("Retention.Days = %d, want 14", cfg.Retention.Days)
	}

	// Unset fields pick up defaults.
	if cfg.Bus.Capacity != DefaultBusCapacity {
		t.Errorf("Bus.Capacity = %d, want default %d", cfg.Bus.Capacity, DefaultBusCapacity)
	}
	if cfg.Sink.BatchSize != DefaultBatchSize {
		t.Errorf("Sink.BatchSize = %d, want default %d", cfg.Sink.BatchSize, DefaultBatchSize)
	}
	if cfg.Retention.Schedule != DefaultRetentionSchedule {
		t.Errorf("Retention.Schedule = %q, want default %q", cfg.Retention.Schedule, DefaultRetentionSchedule)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("error = %v, want IsNotExist", err)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "listen: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("Load should fail on malformed yaml")
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := writeConfig(t, `
samplers:
  - class: spaceship
    interval: 1s
    name_contains: ["x"]
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load should reject an unknown component class")
	}
	if !strings.Contains(err.Error(), "spaceship") {
		t.Errorf("error %q should name the bad class", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bus.Capacity = -1
	cfg.Aggregator.Accuracy = 2.0
	cfg.Retention.Days = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}
	for _, want := range []string{"bus", "aggregator", "retention"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q section: %v", want, err)
		}
	}
}

func TestSamplerValidate(t *testing.T) {
	tests := []struct {
		name    string
		sampler SamplerConfig
		wantErr bool
	}{
		{
			"valid",
			SamplerConfig{Class: "editor", Interval: time.Second, NameContains: []string{"code"}},
			false,
		},
		{
			"cmdline pattern only",
			SamplerConfig{Class: "ai-model-remote", Interval: time.Second, CmdlineContains: []string{"copilot"}},
			false,
		},
		{
			"unknown class",
			SamplerConfig{Class: "nope", Interval: time.Second, NameContains: []string{"x"}},
			true,
		},
		{
			"zero interval",
			SamplerConfig{Class: "editor", NameContains: []string{"x"}},
			true,
		},
		{
			"no patterns",
			SamplerConfig{Class: "editor", Interval: time.Second},
			true,
		},
		{
			"negative cpu floor",
			SamplerConfig{Class: "editor", Interval: time.Second, NameContains: []string{"x"}, MinCPUPercent: -1},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sampler.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
