package gpupick

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

// ErrUnknownLevel is returned by ParseLevel.
var ErrUnknownLevel = errors.New("gpupick: unknown log level")

var (
	silent  = slog.New(slog.DiscardHandler)
	current atomic.Pointer[slog.Logger]
)

// SetLogger sets the logger shared by gpupick and its sub-packages.
// Nothing is logged until it is called; nil restores that default.
//
// Levels:
//   - [slog.LevelDebug]: chunk uploads, texture reconfiguration, draws, passes
//   - [slog.LevelInfo]: device selection, dataset loading
//   - [slog.LevelWarn]: skipped backends, pick mismatches, release errors
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	current.Store(l)
}

// Logger returns the shared logger. It never returns nil.
func Logger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return silent
}

// NewTextLogger returns a text logger writing records at or above level
// to w, tagged with the library name.
func NewTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})).With("lib", "gpupick")
}

// ParseLevel maps debug, info, warn (or warning) and error, in any case,
// to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}
