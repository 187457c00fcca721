package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lcx/gatesvr/config"
	"github.com/lcx/gatesvr/gateway"
	"github.com/lcx/gatesvr/log"
)

func serveCmd() *cobra.Command {
	var (
		configDir string
		env       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Long: `Run the gateway until SIGINT or SIGTERM.

Reads logger.yaml and gatesvr.yaml from the config directory (and its
<env> subdirectory). Both files are watched; the login password, the
receive rates and the log settings apply without a restart.

Examples:
  gatesvr serve
  gatesvr serve --config-dir /etc/gatesvr --env production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configDir, env)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config-dir", "c", "./configs", "Directory holding the yaml files")
	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment subdirectory")

	return cmd
}

func runServe(configDir, env string) error {
	cm := config.GetInstance()
	defer config.ResetInstance()
	cm.SetBasePath(configDir)
	cm.SetEnvironment(env)

	if err := log.InitializeWithConfigManager(cm); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Refresh()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", version).Str("configDir", configDir).Str("env", env).Msg("gatesvr starting")
	return gateway.Run(ctx, cm)
}
