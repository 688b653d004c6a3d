package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mmcdole/viking-faceauth/pkg/logging"
)

var (
	version     = "dev" // Will be set during build
	cfgFile     string
	showVersion bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "vkauth",
	Short:         "Password and face authentication service",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `vkauth - password and face authentication service

Accounts always have a password. A face credential can be enrolled after
re-entering the password; face login then compares a live sample against it
and callers fall back to the password when it fails.

Configuration file may be JSON or YAML (.yaml/.yml):
{
    "listen_addr": "0.0.0.0",
    "port": 8080,
    "users_dir": "/var/lib/vkauth/users",
    "user_cache_time": 60,
    "threshold": 0.6,
    "keypoint_count": 478,
    "landmark_url": "http://127.0.0.1:9000",
    "status_dir": "/var/lib/vkauth/status",
    "access_log_path": "/var/log/vkauth/access.log",
    "app_log_path": "/var/log/vkauth/app.log",
    "log_level": "info"
}

Use "database_url" (or VKAUTH_DATABASE_URL) instead of "users_dir" to keep
credentials in PostgreSQL. A .env file in the working directory is loaded
first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Fprintf(cmd.OutOrStdout(), "vkauth %s\n", version)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(func() {
		// .env is optional
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version information")
}

// loadConfig loads --config and initializes logging from it
func loadConfig() (*Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("config file is required (use --config)")
	}

	path, err := filepath.Abs(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var config Config
	if err := LoadConfig(path, &config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logging.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(logging.Config{
		AccessLogPath: config.AccessLogPath,
		AppLogPath:    config.AppLogPath,
		Level:         level,
		MaxSize:       config.LogMaxSize,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return &config, nil
}
