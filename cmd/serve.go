package main

import (
	"chatrelay/internal/api"
	"chatrelay/internal/api/handler/v1handler"
	"chatrelay/internal/config"
	"chatrelay/internal/relay"
	"chatrelay/pkg/alert"
	"chatrelay/pkg/content"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/metrics"
	"chatrelay/pkg/tracing"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func setupTracing(ctx context.Context, cfg *config.Config) *tracing.Tracer {
	tracer, err := tracing.New(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Environment,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal(ctx, "could not set up tracing", zap.Error(err))
	}
	if tracer.Enabled() {
		logger.Info(ctx, "tracing enabled", zap.String("endpoint", cfg.Tracing.Endpoint))
	} else {
		logger.Info(ctx, "tracing disabled, no OTLP endpoint configured")
	}

	return tracer
}

func setupAlerts(ctx context.Context, cfg *config.Config) (*alert.Dispatcher, bool) {
	webhook := alert.NewWebhook(&http.Client{Timeout: cfg.Alert.Timeout}, cfg.Alert.WebhookURL, cfg.Environment)
	if !webhook.Enabled() {
		logger.Warn(ctx, "alert webhook not configured, alerts are only logged")
	}

	return alert.NewDispatcher(webhook, cfg.Alert.QueueSize, cfg.Alert.Timeout), webhook.Enabled()
}

func setupServer(ctx context.Context, deps api.Deps, cfg *config.Config) func(ctx context.Context) {
	server, err := api.NewServer(deps, api.NewOptions(cfg))
	if err != nil {
		logger.Fatal(ctx, "could not create webserver", zap.Error(err))
	}

	go func() {
		logger.Info(ctx, "starting webserver...", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

// watchConfig applies log level changes from the config file without a restart.
func watchConfig(ctx context.Context, cfg *config.Config, configPath string) {
	if _, err := os.Stat(configPath); err != nil {
		logger.Debug(ctx, "config file not found, not watching", zap.String("path", configPath))

		return
	}

	go func() {
		err := config.Watch(ctx, configPath, config.DefaultDebounce, func(next *config.Config) {
			if next.LogLevel == "" || next.LogLevel == cfg.LogLevel {
				return
			}
			if err := logger.SetLevel(next.LogLevel); err != nil {
				logger.Warn(ctx, "could not apply log level", zap.Error(err))

				return
			}
			cfg.LogLevel = next.LogLevel
			logger.Info(ctx, "log level changed", zap.String("level", next.LogLevel))
		})
		if err != nil {
			logger.Warn(ctx, "config watcher stopped", zap.Error(err))
		}
	}()
}

func serveCommand(cfg *config.Config, configPath string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the chat relay and its HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info(ctx, "starting chat relay",
				zap.String("environment", cfg.Environment),
				zap.Stringer("log_level", logger.Level()))

			collector, err := metrics.New()
			if err != nil {
				logger.Fatal(ctx, "could not create metrics collector", zap.Error(err))
			}
			tracer := setupTracing(ctx, cfg)
			alerts, alertsEnabled := setupAlerts(ctx, cfg)

			trusted, err := trustedDomains(ctx, cfg.Content.TrustedDomainsFile)
			if err != nil {
				logger.Fatal(ctx, "could not load trusted domains", zap.Error(err))
			}
			pipeline := content.NewPipeline(trusted)

			hub := relay.NewHub(relay.Deps{
				Pipeline: pipeline,
				Metrics:  collector,
				Tracer:   tracer,
			}, relay.NewOptions(cfg))
			go hub.Run(ctx)

			stopWebserver := setupServer(ctx, api.Deps{
				Deps: v1handler.Deps{
					Pipeline:    pipeline,
					Alerts:      alerts,
					Environment: cfg.Environment,
				},
				Relay:   hub,
				Metrics: collector,
				Alerts:  alerts,
			}, cfg)

			watchConfig(ctx, cfg, configPath)

			if alertsEnabled {
				tracingState := "Deshabilitado"
				if tracer.Enabled() {
					tracingState = "Habilitado"
				}
				alerts.Send(alert.New(alert.LevelInfo, "🚀 Servidor chatrelay iniciado correctamente",
					alert.Field{Name: "Dirección", Value: cfg.HTTP.Addr},
					alert.Field{Name: "Versión Go", Value: runtime.Version()},
					alert.Field{Name: "Tracing", Value: tracingState},
				))
			}

			// wait for interrupt
			<-ctx.Done()
			logger.Info(context.Background(), "shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)
			if err := hub.Shutdown(cfg.GracefulShutdownTimeout); err != nil {
				logger.Warn(shutdownCtx, "relay did not stop cleanly", zap.Error(err))
			}
			if err := alerts.Close(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "could not flush alerts", zap.Error(err))
			}
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "could not flush traces", zap.Error(err))
			}
			if err := collector.Shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "could not stop metrics", zap.Error(err))
			}
		},
	}

	return cmd
}
