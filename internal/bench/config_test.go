package bench

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Workers != 4 || cfg.Tasks != 100 {
		t.Errorf("unexpected defaults: workers=%d tasks=%d", cfg.Workers, cfg.Tasks)
	}
	if cfg.Queues.Accelerator != 2 || cfg.Queues.CPU != 2 || cfg.Queues.Host != 0 {
		t.Errorf("unexpected queue defaults: %+v", cfg.Queues)
	}
	if cfg.BufferSize != 1000000 {
		t.Errorf("BufferSize = %d, want 1000000", cfg.BufferSize)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative tasks", func(c *Config) { c.Tasks = -1 }},
		{"negative cpu queues", func(c *Config) { c.Queues.CPU = -1 }},
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }},
		{"zero iterations", func(c *Config) { c.Iterations = 0 }},
		{"negative timeout", func(c *Config) { c.AcquireTimeout = -time.Second }},
		{"negative interval", func(c *Config) { c.ProgressInterval = -time.Second }},
		{"bad policy", func(c *Config) { c.FailurePolicy = "retry" }},
		{"bad kernel", func(c *Config) { c.Kernel = "fft" }},
		{"bad platform", func(c *Config) { c.Platform = "vulkan" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfigValidateAllowsZeroTasks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tasks = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero tasks should be valid: %v", err)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	tests := map[string]FailurePolicy{
		"":         ContinueOnError,
		"continue": ContinueOnError,
		"ABORT":    AbortOnError,
	}
	for in, want := range tests {
		got, err := ParseFailurePolicy(in)
		if err != nil {
			t.Errorf("ParseFailurePolicy(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseFailurePolicy(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseFailurePolicy("retry"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
