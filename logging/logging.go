// Package logging builds the zap loggers used across yolocam.
package logging

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"testing"
)

// NewLoggerConfig returns the console logger config, Info level and above
// with colored levels and no stack traces
func NewLoggerConfig() zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// New returns a named logger writing to stdout at the given level, one of
// debug, info, warn or error.  JSON output is used when json is set.
func New(name, level string, json bool) (*zap.SugaredLogger, error) {

	cfg := NewLoggerConfig()

	lvl, err := zapcore.ParseLevel(level)

	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg.Level.SetLevel(lvl)

	if json {
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}

	logger, err := cfg.Build()

	if err != nil {
		return nil, fmt.Errorf("error building logger: %w", err)
	}

	return logger.Named(name).Sugar(), nil
}

// NewObservedTestLogger returns a Debug level logger that records its
// entries in memory for tests to inspect
func NewObservedTestLogger(tb testing.TB) (*zap.SugaredLogger, *observer.ObservedLogs) {

	core, logs := observer.New(zap.DebugLevel)
	tb.Cleanup(func() {
		_ = core.Sync()
	})

	return zap.New(core).Sugar(), logs
}
