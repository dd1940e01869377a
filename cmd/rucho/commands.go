package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rumpus/rucho/internal/config"
	"github.com/rumpus/rucho/internal/logging"
	"github.com/rumpus/rucho/internal/observability"
	"github.com/rumpus/rucho/internal/server"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "rucho",
		Short:         "HTTP echo server with chaos injection and request metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./rucho.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newConfigCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the echo server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.Log)
	defer func() { _ = logger.Sync() }()

	if cfg.File != "" {
		logger.Info("loaded config", zap.String("file", cfg.File))
	}

	access := logging.NewAccessLogger(cfg.Log, cfg.Server.Prefix, logger)
	defer func() { _ = access.Close() }()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracer(cfg.Tracing.ServiceName, os.Stdout)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	srv, err := server.New(cfg, logger, server.WithAccessLogger(access.Logger))
	if err != nil {
		return err
	}
	if e := srv.Engine(); e != nil {
		logger.Info("chaos enabled", zap.Any("config", e.Config()))
	}
	if cfg.Server.Upstream != "" {
		logger.Info("proxying to upstream", zap.String("upstream", cfg.Server.Upstream))
	}

	return srv.Run(ctx)
}

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			chaosCfg, err := cfg.ChaosConfig()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				File    string              `json:"file,omitempty"`
				Server  config.ServerConfig `json:"server"`
				Log     config.LogConfig    `json:"log"`
				Chaos   any                 `json:"chaos"`
				Tracing bool                `json:"tracing"`
			}{cfg.File, cfg.Server, cfg.Log, chaosCfg, cfg.Tracing.Enabled})
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rucho %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
