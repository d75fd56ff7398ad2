package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightwire/knxlogic/pkg/config"
	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/opsurface"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the logic runtime daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		rt, err := bootstrap(cfg)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}

		ops := opsurface.New(cfg.HTTPAddr)
		ops.Start()

		logger := log.WithComponent("cmd")
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("knxlogic serving")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ops.Stop(ctx); err != nil {
			logger.Warn().Err(err).Msg("operational surface shutdown error")
		}

		return rt.shutdown()
	},
}
