package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/logger"
)

type rootOptions struct {
	dataDir    string
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "engine",
		Short:        "Watch a job board feed and announce new postings",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (default $JOBWATCH_DATA_DIR or .)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default <data-dir>/config.yml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(newServeCmd(opts), newCrawlCmd(opts), newListingsCmd(opts))
	return cmd
}

// runtime is the loaded configuration and logger shared by every command.
type runtime struct {
	cfg     config.Config
	cfgPath string
	log     *zap.Logger
}

func loadRuntime(opts *rootOptions) (*runtime, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.envFile, err)
	}

	dataDir := opts.dataDir
	if dataDir == "" {
		dataDir = os.Getenv(config.EnvPrefix + "DATA_DIR")
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	cfgPath := opts.configPath
	if cfgPath == "" {
		p, err := config.EnsureUserConfig(dataDir, filepath.Join("config", config.DefaultFileName))
		if err != nil {
			return nil, fmt.Errorf("config bootstrap failed: %w", err)
		}
		cfgPath = p
	}

	cfg, err := loadConfig(cfgPath, dataDir)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, cfgPath: cfgPath, log: log}, nil
}

// loadConfig reads, overlays and validates the config file. Warnings are
// not fatal.
func loadConfig(path, dataDir string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if cfg.App.DataDir == "" || cfg.App.DataDir == "." {
		cfg.App.DataDir = dataDir
	}
	if err := config.OverlayEnv(&cfg); err != nil {
		return cfg, err
	}

	cfg, res := config.NormalizeAndValidate(cfg)
	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, "config warning:", w)
	}
	return cfg, res.Err()
}
