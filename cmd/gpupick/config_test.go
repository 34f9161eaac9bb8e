package main

import (
	"errors"
	"flag"
	"path/filepath"
	"testing"

	"github.com/gogpu/gpupick/nearest"
)

func TestValidateConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(&cfg); err != nil {
		t.Errorf("ValidateConfig() error = %v, want nil", err)
	}
}

func TestValidateConfig_InvalidSurface(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	if err := ValidateConfig(&cfg); err != ErrInvalidSurface {
		t.Errorf("ValidateConfig() error = %v, want %v", err, ErrInvalidSurface)
	}

	cfg = DefaultConfig()
	cfg.Height = -1
	if err := ValidateConfig(&cfg); err != ErrInvalidSurface {
		t.Errorf("ValidateConfig() with negative height error = %v, want %v", err, ErrInvalidSurface)
	}
}

func TestValidateConfig_Sentinels(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"points", func(c *Config) { c.Points = 0 }, ErrInvalidPoints},
		{"capacity", func(c *Config) { c.Capacity = 0 }, ErrInvalidCapacity},
		{"batch rows", func(c *Config) { c.BatchRows = -5 }, ErrInvalidBatchRows},
		{"threshold", func(c *Config) { c.Threshold = 0 }, ErrInvalidThreshold},
		{"png scale", func(c *Config) { c.PNGScale = 0 }, ErrInvalidScale},
		{"data format", func(c *Config) { c.Data = "points.csv" }, ErrInvalidFormat},
		{"generate format", func(c *Config) { c.Generate = "out.json" }, ErrInvalidFormat},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := ValidateConfig(&cfg); err != tt.want {
				t.Errorf("ValidateConfig() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateConfig_Strategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = "kd-tree"
	if err := ValidateConfig(&cfg); !errors.Is(err, nearest.ErrUnknownStrategy) {
		t.Errorf("ValidateConfig() error = %v, want %v", err, nearest.ErrUnknownStrategy)
	}
}

func TestValidateConfig_Lang(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lang = "not a tag!"
	if err := ValidateConfig(&cfg); err == nil {
		t.Error("ValidateConfig() error = nil, want language error")
	}
}

func TestLoadConfig_EnvThenFlags(t *testing.T) {
	t.Setenv("GPUPICK_WIDTH", "320")
	t.Setenv("GPUPICK_HEIGHT", "240")
	t.Setenv("GPUPICK_STRATEGY", "depth")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"), []string{"-height", "200", "-verify"})
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Width != 320 {
		t.Errorf("Width = %d, want 320 from environment", cfg.Width)
	}
	if cfg.Height != 200 {
		t.Errorf("Height = %d, want 200 from flag", cfg.Height)
	}
	if !cfg.Verify {
		t.Error("Verify = false, want true from flag")
	}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Strategy != nearest.DepthTest {
		t.Errorf("Strategy = %v, want %v", opts.Strategy, nearest.DepthTest)
	}
	if cfg.Capacity != 1<<20 {
		t.Errorf("Capacity = %d, want default %d", cfg.Capacity, 1<<20)
	}
}

func TestLoadConfig_BadFlag(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"), []string{"-no-such-flag"})
	if err == nil {
		t.Error("LoadConfig() error = nil, want unknown flag error")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"), []string{"-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("LoadConfig(-h) error = %v, want flag.ErrHelp", err)
	}
}

func TestDataFormat(t *testing.T) {
	tests := map[string]string{
		"a.arrow":      "arrow",
		"a.ARROWS":     "arrow",
		"b.ipc":        "arrow",
		"c.parquet":    "parquet",
		"d.csv":        "",
		"no-extension": "",
	}
	for path, want := range tests {
		if got := dataFormat(path); got != want {
			t.Errorf("dataFormat(%q) = %q, want %q", path, got, want)
		}
	}
}
