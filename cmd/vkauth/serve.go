package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmcdole/viking-faceauth/pkg/httpserver"
	"github.com/mmcdole/viking-faceauth/pkg/logging"
	"github.com/mmcdole/viking-faceauth/pkg/status"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authentication HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		defer logging.Close()

		ctx := cmd.Context()
		auth, closeStore, err := newAuthenticator(ctx, config)
		if err != nil {
			return err
		}
		defer closeStore()

		server, err := httpserver.New(httpserver.Config{
			ListenAddr:   config.ListenAddr,
			Port:         config.Port,
			MaxBodyBytes: config.MaxBodyBytes,
		}, auth)
		if err != nil {
			return fmt.Errorf("failed to create HTTP server: %w", err)
		}

		var statusWriter *status.Writer
		if config.StatusDir != "" {
			statusWriter, err = status.New(config.StatusDir, time.Duration(config.StatusInterval)*time.Second, version)
			if err != nil {
				return err
			}
			statusWriter.SetMetricsProvider(server)
			if err := statusWriter.WriteStartFile(); err != nil {
				logging.App.Warn("Failed to write start status", "error", err)
			}
			statusWriter.StartHeartbeat()
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		logging.App.Info("vkauth started", "version", version, "address", config.ListenAddr, "port", config.Port)

		reason := "signal"
		select {
		case <-ctx.Done():
		case err = <-errCh:
			reason = "server_error"
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logging.App.Error("Shutdown failed", "error", shutdownErr)
		}

		if statusWriter != nil {
			if stopErr := statusWriter.Shutdown(reason); stopErr != nil {
				logging.App.Warn("Failed to write stop status", "error", stopErr)
			}
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
