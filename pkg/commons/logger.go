// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rapidaai/motioncam/pkg/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the structured logger passed to every component.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatalf(template string, args ...interface{})

	// Benchmark logs how long an operation took since start.
	Benchmark(operation string, start time.Time)
	Sync() error
}

type loggerOptions struct {
	name        string
	path        string
	level       string
	environment utils.Environment
	console     bool
	maxSizeMB   int
	maxBackups  int
	maxAgeDays  int
}

// Option configures NewApplicationLogger.
type Option func(*loggerOptions)

// Name sets the logger name and the log file base name.
func Name(name string) Option {
	return func(o *loggerOptions) { o.name = name }
}

// Path sets the directory of the rotated log file. Empty disables the file sink.
func Path(path string) Option {
	return func(o *loggerOptions) { o.path = path }
}

// Level sets the minimum level: debug, info, warn or error.
func Level(level string) Option {
	return func(o *loggerOptions) { o.level = level }
}

// Environment selects the console encoder flavour.
func Environment(env utils.Environment) Option {
	return func(o *loggerOptions) { o.environment = env }
}

// Console toggles the stderr sink.
func Console(enabled bool) Option {
	return func(o *loggerOptions) { o.console = enabled }
}

type applicationLogger struct {
	*zap.SugaredLogger
}

// NewApplicationLogger builds a zap logger with a console core and a rotated
// JSON file core.
func NewApplicationLogger(opts ...Option) (Logger, error) {
	o := &loggerOptions{
		name:        "motioncam",
		level:       "info",
		environment: utils.DEVELOPMENT,
		console:     true,
		maxSizeMB:   50,
		maxBackups:  5,
		maxAgeDays:  14,
	}
	for _, opt := range opts {
		opt(o)
	}

	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(o.level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.level, err)
	}
	enabler := zap.NewAtomicLevelAt(level)

	var cores []zapcore.Core
	if o.console {
		encCfg := zap.NewDevelopmentEncoderConfig()
		if o.environment == utils.PRODUCTION {
			encCfg = zap.NewProductionEncoderConfig()
		}
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			enabler,
		))
	}

	if !utils.IsEmpty(o.path) {
		if err := os.MkdirAll(o.path, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(o.path, o.name+".log"),
			MaxSize:    o.maxSizeMB,
			MaxBackups: o.maxBackups,
			MaxAge:     o.maxAgeDays,
			Compress:   true,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileCfg),
			zapcore.AddSync(rotator),
			enabler,
		))
	}

	if len(cores) == 0 {
		cores = append(cores, zapcore.NewNopCore())
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named(o.name)
	return &applicationLogger{SugaredLogger: base.Sugar()}, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &applicationLogger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *applicationLogger) Benchmark(operation string, start time.Time) {
	l.Debugw("benchmark", "operation", operation, "took", time.Since(start))
}
