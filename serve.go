package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/bagaking/youcom-proxy/config"
	"github.com/bagaking/youcom-proxy/proxy"
	"github.com/bagaking/youcom-proxy/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy server",
		RunE:  runServe,
	}
	addServeFlags(cmd)
	return cmd
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 0, "Listen port (overrides config and PORT)")
	cmd.Flags().String("upstream-url", "", "Upstream endpoint (overrides config and UPSTREAM_URL)")
}

// loadConfig 按 .env -> YAML -> 环境变量 -> 命令行参数 的顺序加载配置
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if url, _ := cmd.Flags().GetString("upstream-url"); url != "" {
		cfg.Upstream.URL = url
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := []proxy.Option{
		proxy.WithLogger(logger),
		proxy.WithTracer(tracer),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, proxy.WithMetrics(telemetry.NewMetrics()))
	}

	p, err := proxy.New(cfg, opts...)
	if err != nil {
		return err
	}
	logger.Info("youcom-proxy starting", "version", version)
	return p.Start(ctx)
}
