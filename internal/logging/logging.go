// Package logging builds the zap loggers used throughout the store.
package logging

import "go.uber.org/zap"

// New builds a production logger in "production" mode and a more verbose
// development logger otherwise.
func New(mode string) (*zap.Logger, error) {
	if mode == "production" {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		return cfg.Build()
	}
	cfg := zap.NewDevelopmentConfig()
	return cfg.Build()
}

// Nop returns a logger that discards everything, for tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}
