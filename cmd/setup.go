package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/navaarsync/navaar/internal/shared"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to configuration file",
	Value:   "config.toml",
}

// setupCommand initializes the config file and database schema.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Flags: []cli.Flag{configFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			configPath := cmd.String("config")

			var config *shared.Config
			if _, err := os.Stat(configPath); err == nil {
				if config, err = shared.LoadConfig(configPath); err != nil {
					r.logger.Warn("failed to load config, using defaults", "error", err)
					config = shared.DefaultConfig()
				}
			} else {
				r.logger.Info("config file not found, creating from template", "path", configPath)
				if err := shared.CreateConfigFile(configPath); err != nil {
					r.logger.Warn("failed to create config file, using defaults", "error", err)
					config = shared.DefaultConfig()
				} else {
					r.logger.Info("config file created", "path", configPath)
					if config, err = shared.LoadConfig(configPath); err != nil {
						r.logger.Warn("failed to load created config, using defaults", "error", err)
						config = shared.DefaultConfig()
					}
				}
			}

			r.logger.Info("initializing database", "path", config.Database.Path)

			db, err := shared.NewDatabase(config.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to create database: %w", err)
			}
			defer db.Close()

			shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

			r.logger.Info("running database migrations")
			if err := shared.RunMigrations(db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			r.logger.Infof("setup complete for database: %v", config.Database.Path)
			return nil
		},
	}
}
