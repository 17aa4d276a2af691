// Package common provides shared utilities for command implementations.
package common

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/jonesrussell/finfetch/internal/config"
	"github.com/jonesrussell/finfetch/internal/logger"
)

// CommandDeps holds common dependencies for all commands.
// Use this instead of context.Value for type-safe dependency injection.
type CommandDeps struct {
	Logger logger.Interface
	Config *config.Config
}

// Validate ensures all required dependencies are present.
func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}

// CheckpointPath resolves the checkpoint file location. A relative path is
// kept inside the download directory so the state travels with the data.
func (d CommandDeps) CheckpointPath() string {
	path := d.Config.Downloads.CheckpointFile
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.Config.Downloads.Directory, path)
}

// NewCommandDeps creates CommandDeps by loading config and creating the
// logger from the global Viper state.
func NewCommandDeps() (CommandDeps, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	log, logErr := logger.New(cfg.Logger)
	if logErr != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", logErr)
	}

	deps := CommandDeps{
		Logger: log,
		Config: cfg,
	}

	if validateErr := deps.Validate(); validateErr != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", validateErr)
	}

	return deps, nil
}
