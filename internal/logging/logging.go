// Package logging builds the process-wide zap logger every component
// receives via constructor injection.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger for the given level ("debug", "info", "warn",
// "error") and environment ("local" gets a console encoder, anything
// else gets JSON).
func New(level, environment string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	var cfg zap.Config
	if strings.EqualFold(environment, "local") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: building logger: %w", err)
	}
	return logger, nil
}
