package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	Level          string // debug, info, warn, error
	Format         string // json, pretty
	FileEnabled    bool
	FilePath       string // logs directory path
	RotationSize   int    // MB
	RetentionDays  int
	ServiceName    string
	ServiceVersion string
}

// Init initializes the global logger
func Init(cfg Config) error {
	logger, err := New(cfg, os.Stderr)
	if err != nil {
		return err
	}
	log.Logger = logger

	log.Debug().
		Str("level", cfg.Level).
		Str("format", cfg.Format).
		Bool("file_enabled", cfg.FileEnabled).
		Msg("Logger initialized")

	return nil
}

// New builds a logger writing to console plus the rotating files when enabled
func New(cfg Config, console io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer

	if cfg.Format == "pretty" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: "15:04:05",
		})
	} else {
		writers = append(writers, console)
	}

	if cfg.FileEnabled {
		if err := os.MkdirAll(cfg.FilePath, 0755); err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to create log directory: %w", err)
		}

		writers = append(writers, rotatingFile(cfg, "app.log", 10))

		// error.log keeps ERROR and above only
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: rotatingFile(cfg, "error.log", 10)},
			Level:  zerolog.ErrorLevel,
		})
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.ServiceVersion != "" {
		ctx = ctx.Str("version", cfg.ServiceVersion)
	}
	return ctx.Logger(), nil
}

func rotatingFile(cfg Config, name string, backups int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.FilePath, name),
		MaxSize:    cfg.RotationSize,
		MaxAge:     cfg.RetentionDays,
		MaxBackups: backups,
		Compress:   true,
	}
}

// NewQueryLogger creates a logger for database queries
func NewQueryLogger(logPath string, rotationSize int, retentionDays int) zerolog.Logger {
	return newFileLogger(logPath, "query.log", "query", rotationSize, retentionDays)
}

// NewAccessLogger creates a logger for HTTP access logs
func NewAccessLogger(logPath string, rotationSize int, retentionDays int) zerolog.Logger {
	return newFileLogger(logPath, "access.log", "access", rotationSize, retentionDays)
}

func newFileLogger(logPath, name, kind string, rotationSize, retentionDays int) zerolog.Logger {
	if logPath == "" {
		return log.Logger
	}

	if err := os.MkdirAll(logPath, 0755); err != nil {
		log.Warn().Err(err).Str("type", kind).Msg("Failed to create log directory, using default logger")
		return log.Logger
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(logPath, name),
		MaxSize:    rotationSize,
		MaxAge:     retentionDays,
		MaxBackups: 5,
		Compress:   true,
	}

	return zerolog.New(file).With().
		Timestamp().
		Str("type", kind).
		Logger()
}
