// Package logging provides the proxy's structured logger: zap cores over
// console and an optionally rotated file, selected by the --log-level flag.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where log records go and how verbose they are.
type Config struct {
	Level string // off|error|warn|info|debug|trace, per spec §6

	JSON bool // true selects the JSON encoder (production), false the colorized console encoder

	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds a *zap.Logger tee'ing console and (optionally) a rotated file
// sink, mirroring the teacher's console+file core assembly. Unlike the
// teacher's DynamicLogger, levels are fixed at construction: this proxy has
// no hot-reloadable config to switch levels against. An unknown level
// returns an error together with an info-level logger.
func New(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		fallback := cfg
		fallback.Level = "info"
		l, _ := New(fallback)
		return l, err
	}
	if level == offLevel {
		return zap.NewNop(), nil
	}

	atomicLevel := zap.NewAtomicLevelAt(level)
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(cfg.JSON), zapcore.Lock(os.Stdout), atomicLevel),
	}

	if cfg.FilePath != "" {
		cores = append(cores, zapcore.NewCore(fileEncoder(cfg.JSON), fileWriter(cfg), atomicLevel))
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	return zap.New(core), nil
}

// offLevel is a sentinel below zapcore's lowest real level, used to signal
// "--log-level off" without special-casing every call site.
const offLevel = zapcore.Level(-2)

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "", "info":
		return zap.InfoLevel, nil
	case "off":
		return offLevel, nil
	case "trace", "debug":
		return zap.DebugLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("logging: unknown level %q", level)
	}
}

func consoleEncoder(asJSON bool) zapcore.Encoder {
	if asJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

func fileEncoder(asJSON bool) zapcore.Encoder {
	if asJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

func fileWriter(cfg Config) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    firstNonZero(cfg.MaxSizeMB, 100),
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

func firstNonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// NewDefault returns a console-only, info-level logger for use before CLI
// flags have been parsed.
func NewDefault() *zap.Logger {
	l, _ := New(Config{Level: "info"})
	return l
}
