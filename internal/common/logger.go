package common

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

const (
	// DevelopmentEnvironment logs human readable text at debug level.
	DevelopmentEnvironment = "development"
	// ProductionEnvironment logs JSON at info level.
	ProductionEnvironment = "production"
)

// NewLogger returns a slog logger writing through a zap core chosen by
// environment, and a function flushing that core.
func NewLogger(environment string) (*slog.Logger, func(), error) {
	var (
		z   *zap.Logger
		err error
	)
	if environment == ProductionEnvironment {
		z, err = zap.NewProduction()
	} else {
		z, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not build zap logger: %w", err)
	}
	return slog.New(zapslog.NewHandler(z.Core())), func() { _ = z.Sync() }, nil
}

// SetupLogging installs the environment's logger as the slog default.
func SetupLogging(environment string) (func(), error) {
	logger, sync, err := NewLogger(environment)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return sync, nil
}
