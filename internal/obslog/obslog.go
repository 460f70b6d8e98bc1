// Package obslog installs the process-wide structured logger.
package obslog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the process-wide logger. Mirrors the log section of
// internal/config.GlobalConfig.
type Config struct {
	Level  string       `mapstructure:"level"`  // debug | info | warn | error
	Format string       `mapstructure:"format"` // json | text
	File   *FileConfig  `mapstructure:"file"`   // nil disables file output
}

// FileConfig configures the rotating file sink.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Init installs slog.Default() per cfg. It always logs to stdout;
// cfg.File additionally fans out to a rotating file via lumberjack.
func Init(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("obslog: %w", err)
	}

	writers := []io.Writer{os.Stdout}
	if cfg.File != nil && cfg.File.Path != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}
	out := io.MultiWriter(writers...)

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		return fmt.Errorf("obslog: unsupported log format %q (must be json or text)", cfg.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
