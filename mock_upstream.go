package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/bagaking/youcom-proxy/config"
	"github.com/bagaking/youcom-proxy/mockupstream"
	"github.com/bagaking/youcom-proxy/telemetry"
)

func newMockUpstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-upstream",
		Short: "Run a deterministic fake upstream for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			apiKey, _ := cmd.Flags().GetString("api-key")
			field, _ := cmd.Flags().GetString("body-field")
			delay, _ := cmd.Flags().GetDuration("delay")

			logger, closer, err := telemetry.NewLogger(config.LoggingConfig{Level: "info", Format: "text"})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer closer.Close()

			gin.SetMode(gin.ReleaseMode)
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := &mockupstream.Server{
				APIKey:    apiKey,
				BodyField: field,
				Delay:     delay,
				Logger:    logger,
			}
			return s.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().String("addr", ":9090", "Listen address")
	cmd.Flags().String("api-key", "", "Require this X-API-Key value, empty accepts any")
	cmd.Flags().String("body-field", "query", "Request field that carries the prompt")
	cmd.Flags().Duration("delay", 5*time.Second, "Delay applied to [slow] prompts")
	return cmd
}
