package main

import (
	"context"
	"fmt"
	"os"

	"github.com/RudraShekhare/face-attendance-system/internal/app"
	"github.com/RudraShekhare/face-attendance-system/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "facectl",
	Short: "Operate the face attendance system from the command line",
	Long: `facectl registers people from a camera, encodes the dataset into the
face gallery, runs live recognition and manages the attendance log.

The configuration is read from --config, CONFIG_PATH or ./configs/config.yaml.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadApp loads the configuration and initializes every service.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := app.NewLogger(&cfg.Log, "facectl")
	return app.New(ctx, cfg, log)
}
