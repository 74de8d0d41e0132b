// Package logging wires log/slog for the server: a text handler on stderr and
// a JSON handler on a weekly rotating file. stdout is never written to, it
// carries the MCP stdio transport.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/giygas/priorauth-checker/config"
)

type LoggingService struct {
	Logger *slog.Logger
	file   *RotatingLogger
}

var DefaultLoggingService *LoggingService

// Options controls how InitLogger builds the handlers
type Options struct {
	Env            config.Environment
	Level          string
	Verbose        bool
	LogDir         string // empty disables the file handler
	RetentionWeeks int
	MaxFileSize    int64
	Console        io.Writer // defaults to os.Stderr
}

// OptionsFromConfig maps the loaded configuration to logger options
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	}
	if cfg.FileLoggingEnabled() {
		opts.LogDir = cfg.LogDir
	}
	return opts
}

// InitLogger initializes the global logger instance and sets it as the slog
// default. When the log file cannot be opened it falls back to console only
// and returns the error so the caller can report it.
func InitLogger(opts Options) error {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	service := &LoggingService{Logger: slog.New(consoleHandler)}

	var fileErr error
	if opts.LogDir != "" {
		rl := NewRotatingLogger(opts.LogDir, opts.RetentionWeeks, opts.MaxFileSize)
		if fileErr = rl.Open(); fileErr == nil {
			fileHandler := slog.NewJSONHandler(rl, &slog.HandlerOptions{
				Level: GetFileLogLevel(),
			})
			service.file = rl
			service.Logger = slog.New(&multiHandler{
				handlers: []slog.Handler{consoleHandler, fileHandler},
			})
		}
	}

	DefaultLoggingService = service
	slog.SetDefault(service.Logger)

	if fileErr != nil {
		service.Logger.Error("Failed to initialize rotating log file, logging to console only", "error", fileErr)
	}
	return fileErr
}

// Close flushes and closes the rotating log file, if any
func Close() error {
	if DefaultLoggingService == nil || DefaultLoggingService.file == nil {
		return nil
	}
	return DefaultLoggingService.file.Close()
}

// GetConsoleLogLevel picks the console level for an environment. Tests stay
// quiet unless verbose, whatever LOG_LEVEL says.
func GetConsoleLogLevel(env config.Environment, logLevel string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if strings.TrimSpace(logLevel) != "" {
		return parseLogLevel(logLevel)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the file handler level, the file keeps everything
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.Default()
	}
	return DefaultLoggingService.Logger
}

// DefaultLogger returns the configured logger, or slog's default before
// InitLogger runs
func DefaultLogger() *slog.Logger {
	return logger()
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}

// With returns a logger carrying the given attributes, used to tag every
// line of one tool invocation
func With(args ...any) *slog.Logger {
	return logger().With(args...)
}
