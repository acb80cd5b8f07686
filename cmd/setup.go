package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/composers/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes config.toml from the template when missing, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.Load(configPath, cmd.String("env-file")); err != nil {
				r.logger.Warn("failed to load created config, using current settings", "error", err)
			} else {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Database ready: %s\n", r.config.Database.Path)
	if err := r.config.Validate(); err != nil {
		r.writePlainln("Before running 'composers serve':")
		r.writePlain("  %v\n", err)
	}
	return nil
}
