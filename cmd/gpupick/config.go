package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/nearest"
)

// envPrefix namespaces every environment variable, e.g. GPUPICK_WIDTH.
const envPrefix = "GPUPICK"

// Config validation errors
var (
	ErrInvalidSurface   = errors.New("width and height must be positive")
	ErrInvalidPoints    = errors.New("points must be positive")
	ErrInvalidCapacity  = errors.New("capacity must hold at least one point")
	ErrInvalidBatchRows = errors.New("batch_rows must be positive")
	ErrInvalidThreshold = errors.New("threshold must be positive")
	ErrInvalidScale     = errors.New("png_scale must be at least 1")
	ErrInvalidFormat    = errors.New("data files must end in .arrow or .parquet")
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
)

// Config is read from GPUPICK_* variables (after an optional .env file) and
// then overridden by command-line flags.
type Config struct {
	Backend    string  `envconfig:"BACKEND"`
	Width      int     `envconfig:"WIDTH" default:"800"`
	Height     int     `envconfig:"HEIGHT" default:"600"`
	PixelRatio float64 `envconfig:"PIXEL_RATIO" default:"1"`

	Strategy       string  `envconfig:"STRATEGY" default:"tree"`
	Cutoff         float64 `envconfig:"CUTOFF" default:"0"` // 0 means the strategy default
	MaxTextureSide int     `envconfig:"MAX_TEXTURE_SIDE" default:"4096"`
	Threshold      float64 `envconfig:"THRESHOLD" default:"2"`

	Data      string `envconfig:"DATA"` // .arrow or .parquet; empty generates points
	Generate  string `envconfig:"GENERATE"`
	Points    int    `envconfig:"POINTS" default:"100000"`
	Capacity  int    `envconfig:"CAPACITY" default:"1048576"`
	BatchRows int    `envconfig:"BATCH_ROWS" default:"10000"`
	Seed      uint64 `envconfig:"SEED" default:"1"`

	Picks  int  `envconfig:"PICKS" default:"10"`
	Verify bool `envconfig:"VERIFY" default:"false"`

	PNG       string `envconfig:"PNG"`
	PNGScale  int    `envconfig:"PNG_SCALE" default:"1"`
	Visualize bool   `envconfig:"VISUALIZE" default:"false"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Lang        string `envconfig:"NUMBER_LOCALE" default:"en"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Width:          800,
		Height:         600,
		PixelRatio:     1,
		Strategy:       "tree",
		MaxTextureSide: nearest.DefaultMaxTextureSide,
		Threshold:      2,
		Points:         100000,
		Capacity:       1 << 20,
		BatchRows:      10000,
		Seed:           1,
		Picks:          10,
		PNGScale:       1,
		LogLevel:       "info",
		Lang:           "en",
	}
}

// LoadConfig loads envFile (missing is fine), applies GPUPICK_* variables,
// then parses args over the result.
func LoadConfig(envFile string, args []string) (Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg := DefaultConfig()
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	fset := flag.NewFlagSet("gpupick", flag.ContinueOnError)
	fset.StringVar(&cfg.Backend, "backend", cfg.Backend, "device backend (wgpu, software); empty picks the best available")
	fset.IntVar(&cfg.Width, "width", cfg.Width, "surface width in device pixels")
	fset.IntVar(&cfg.Height, "height", cfg.Height, "surface height in device pixels")
	fset.Float64Var(&cfg.PixelRatio, "pixel-ratio", cfg.PixelRatio, "device pixels per logical pixel")
	fset.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "nearest-point strategy (depth, tree)")
	fset.Float64Var(&cfg.Cutoff, "cutoff", cfg.Cutoff, "search cutoff in data units (0 = strategy default)")
	fset.IntVar(&cfg.MaxTextureSide, "max-texture-side", cfg.MaxTextureSide, "largest tree reduction texture side")
	fset.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "pick acceptance distance in data units")
	fset.StringVar(&cfg.Data, "data", cfg.Data, "dataset file (.arrow or .parquet); empty generates points")
	fset.StringVar(&cfg.Generate, "generate", cfg.Generate, "write a generated dataset to this .arrow or .parquet file and exit")
	fset.IntVar(&cfg.Points, "points", cfg.Points, "number of generated points")
	fset.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "maximum points the GPU buffers hold")
	fset.IntVar(&cfg.BatchRows, "batch-rows", cfg.BatchRows, "rows per streamed batch")
	fset.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for generated points and picks")
	fset.IntVar(&cfg.Picks, "picks", cfg.Picks, "number of random picks to run")
	fset.BoolVar(&cfg.Verify, "verify", cfg.Verify, "check every pick against a CPU scan")
	fset.StringVar(&cfg.PNG, "png", cfg.PNG, "write the final surface to this PNG file")
	fset.IntVar(&cfg.PNGScale, "png-scale", cfg.PNGScale, "integer upscale factor for -png")
	fset.BoolVar(&cfg.Visualize, "visualize", cfg.Visualize, "draw the reducer's first pass for the domain center onto the surface before -png")
	fset.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fset.StringVar(&cfg.Lang, "lang", cfg.Lang, "BCP 47 tag for number formatting")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ErrInvalidSurface
	}
	if _, err := nearest.ParseStrategy(cfg.Strategy); err != nil {
		return err
	}
	if cfg.Points <= 0 {
		return ErrInvalidPoints
	}
	if cfg.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if cfg.BatchRows <= 0 {
		return ErrInvalidBatchRows
	}
	if cfg.Threshold <= 0 {
		return ErrInvalidThreshold
	}
	if cfg.PNGScale < 1 {
		return ErrInvalidScale
	}
	for _, path := range []string{cfg.Data, cfg.Generate} {
		if path != "" && dataFormat(path) == "" {
			return ErrInvalidFormat
		}
	}
	if _, err := gpupick.ParseLevel(cfg.LogLevel); err != nil {
		return ErrInvalidLogLevel
	}
	if _, err := language.Parse(cfg.Lang); err != nil {
		return fmt.Errorf("lang %q: %w", cfg.Lang, err)
	}
	return nil
}

// Options returns the reducer options described by cfg.
func (cfg *Config) Options() (nearest.Options, error) {
	s, err := nearest.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nearest.Options{}, err
	}
	return nearest.Options{
		Strategy:       s,
		Cutoff:         float32(cfg.Cutoff),
		MaxTextureSide: cfg.MaxTextureSide,
	}, nil
}

func dataFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow", ".arrows", ".ipc":
		return "arrow"
	case ".parquet":
		return "parquet"
	}
	return ""
}
