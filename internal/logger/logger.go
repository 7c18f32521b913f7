package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level         zapcore.Level
	ConsoleOutput bool
	Console       io.Writer
	FileOutput    bool
	Filename      string
	MaxSize       int // megabytes
	MaxAge        int // days
	MaxBackups    int
	Compress      bool
	JSONFormat    bool
}

const (
	DefaultFilename   = "logs/voicepost.log"
	DefaultMaxSize    = 100
	DefaultMaxAge     = 30
	DefaultMaxBackups = 10
)

type Option func(*Config)

// WithLevel accepts zap level names; anything unknown means info.
func WithLevel(level string) Option {
	return func(c *Config) {
		var l zapcore.Level
		if err := l.Set(strings.ToLower(strings.TrimSpace(level))); err != nil {
			l = zapcore.InfoLevel
		}
		c.Level = l
	}
}

func WithConsoleOutput(enabled bool) Option {
	return func(c *Config) { c.ConsoleOutput = enabled }
}

// WithConsoleWriter redirects console output, stdout by default.
func WithConsoleWriter(w io.Writer) Option {
	return func(c *Config) { c.Console = w }
}

// WithFile enables rotated JSON file output at path. An empty path disables it.
func WithFile(path string) Option {
	return func(c *Config) {
		c.FileOutput = path != ""
		if path != "" {
			c.Filename = path
		}
	}
}

func WithJSONFormat(enabled bool) Option {
	return func(c *Config) { c.JSONFormat = enabled }
}

func WithRotationConfig(maxSize, maxAge, maxBackups int, compress bool) Option {
	return func(c *Config) {
		c.MaxSize = maxSize
		c.MaxAge = maxAge
		c.MaxBackups = maxBackups
		c.Compress = compress
	}
}

// InitForCLI logs human-readable lines to stderr so stdout stays free for
// command output.
func InitForCLI(level string) (*zap.Logger, error) {
	return New(
		WithLevel(level),
		WithConsoleOutput(true),
		WithConsoleWriter(os.Stderr),
		WithJSONFormat(false),
	)
}

// InitForAPI logs JSON to stdout and, when logFile is set, to a rotated file.
func InitForAPI(level, logFile string) (*zap.Logger, error) {
	return New(
		WithLevel(level),
		WithConsoleOutput(true),
		WithJSONFormat(true),
		WithFile(logFile),
	)
}

func New(opts ...Option) (*zap.Logger, error) {
	config := &Config{
		Level:         zapcore.InfoLevel,
		ConsoleOutput: true,
		Console:       os.Stdout,
		Filename:      DefaultFilename,
		MaxSize:       DefaultMaxSize,
		MaxAge:        DefaultMaxAge,
		MaxBackups:    DefaultMaxBackups,
		Compress:      true,
	}
	for _, opt := range opts {
		opt(config)
	}

	var cores []zapcore.Core

	if config.ConsoleOutput {
		var encoder zapcore.Encoder
		if config.JSONFormat {
			jsonConfig := zap.NewProductionEncoderConfig()
			jsonConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			jsonConfig.StacktraceKey = ""
			encoder = zapcore.NewJSONEncoder(jsonConfig)
		} else {
			consoleConfig := zap.NewDevelopmentEncoderConfig()
			consoleConfig.EncodeTime = zapcore.RFC3339TimeEncoder
			consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			consoleConfig.EncodeCaller = zapcore.ShortCallerEncoder
			encoder = zapcore.NewConsoleEncoder(consoleConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(config.Console), config.Level))
	}

	if config.FileOutput {
		if err := os.MkdirAll(filepath.Dir(config.Filename), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		fileEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			TimeKey:      "ts",
			LevelKey:     "level",
			NameKey:      "logger",
			CallerKey:    "caller",
			MessageKey:   "msg",
			EncodeLevel:  zapcore.LowercaseLevelEncoder,
			EncodeTime:   zapcore.ISO8601TimeEncoder,
			EncodeCaller: zapcore.ShortCallerEncoder,
		})
		cores = append(cores, zapcore.NewCore(
			fileEncoder,
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   config.Filename,
				MaxSize:    config.MaxSize,
				MaxAge:     config.MaxAge,
				MaxBackups: config.MaxBackups,
				Compress:   config.Compress,
			}),
			config.Level,
		))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("no output configured for logger")
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
