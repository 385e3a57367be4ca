/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func initLogger(cfg *Config) error {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(logDate)
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zcfg.DisableStacktrace = true

	level, err := zapcore.ParseLevel(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.logLevel, err)
	}
	if cfg.verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level.SetLevel(level)

	lgr, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	zap.ReplaceGlobals(lgr)

	return nil
}

func syncLogger() {
	_ = zap.L().Sync()
}

// logf writes a request log line, shown with --verbose.
func logf(format string, args ...any) {
	zap.S().Debugf(format, args...)
}
