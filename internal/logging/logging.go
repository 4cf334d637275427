// Package logging sets up the program logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggingConfig holds logger setup values.
type LoggingConfig struct {
	LogFilePath string
	MaxSizeMB   int
	MaxBackups  int
	Console     io.Writer
	Program     string
	DebugLevel  int
}

// ProgramLogger is a leveled printf-style logger.
type ProgramLogger struct {
	zl    zerolog.Logger
	debug atomic.Int32
	file  io.Closer
}

// SetupLogging builds a ProgramLogger writing to the console and, if set, a rotated log file.
func SetupLogging(cfg LoggingConfig) (*ProgramLogger, error) {
	var writers []io.Writer

	if cfg.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        cfg.Console,
			TimeFormat: time.DateTime,
		})
	}

	var closer io.Closer
	if cfg.LogFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFilePath,
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, lj)
		closer = lj
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("program", cfg.Program).
		Logger()

	pl := &ProgramLogger{zl: zl, file: closer}
	pl.SetDebugLevel(cfg.DebugLevel)
	return pl, nil
}

// Discard returns a logger that writes nowhere.
func Discard() *ProgramLogger {
	return &ProgramLogger{zl: zerolog.Nop()}
}

// SetDebugLevel sets the highest debug level printed by D (0-5).
func (pl *ProgramLogger) SetDebugLevel(level int) {
	pl.debug.Store(int32(min(max(level, 0), 5)))
}

// Close flushes and closes the log file, if any.
func (pl *ProgramLogger) Close() error {
	if pl.file == nil {
		return nil
	}
	return pl.file.Close()
}

// I logs info.
func (pl *ProgramLogger) I(format string, args ...any) {
	pl.zl.Info().Msgf(format, args...)
}

// S logs a success.
func (pl *ProgramLogger) S(format string, args ...any) {
	pl.zl.Info().Bool("success", true).Msgf(format, args...)
}

// W logs a warning.
func (pl *ProgramLogger) W(format string, args ...any) {
	pl.zl.Warn().Msgf(format, args...)
}

// E logs an error.
func (pl *ProgramLogger) E(format string, args ...any) {
	pl.zl.Error().Msgf(format, args...)
}

// P logs without a level.
func (pl *ProgramLogger) P(format string, args ...any) {
	pl.zl.Log().Msgf(format, args...)
}

// D logs debug output when level is at or below the configured debug level.
func (pl *ProgramLogger) D(level int, format string, args ...any) {
	if int32(level) > pl.debug.Load() {
		return
	}
	pl.zl.Debug().Int("level", level).Msgf(format, args...)
}
