// Package main provides the CLI entrypoint for the chat relay.
// It wires subcommands (serve, validate, domains), loads configuration, and initializes logging.
package main

import (
	"chatrelay/internal/config"
	"chatrelay/pkg/content"
	"chatrelay/pkg/logger"
	"context"
	"flag"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// trustedDomains returns the allow-list configured for the content pipeline:
// the domains file when one is set, the built-in list otherwise.
func trustedDomains(ctx context.Context, path string) (*content.TrustedDomains, error) {
	if path == "" {
		return content.DefaultTrustedDomains(), nil
	}

	trusted, err := content.LoadTrustedDomains(path)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "loaded trusted domains", zap.String("path", path), zap.Int("count", trusted.Len()))

	return trusted, nil
}

// main sets up the root Cobra command, loads configuration and logging, and
// registers subcommands before executing the CLI.
func main() {
	rootCmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "WebSocket chat relay with message validation and sanitization",
	}

	// there is no way to access flags before command execution in cobra.
	// configPath here is parsed using the standard flags package.
	// following line is just added to prevent errors when Cobra is parsing the flags.
	rootCmd.PersistentFlags().StringP("config", "c", "config.yml", "Config File Path")

	configPath := flag.String("c", "config.yml", "The config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("could not load config file: ", err)
	}

	logger.Setup(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "captured panic, exiting...", zap.Any("panic", p))
			_ = logger.Get(ctx).Sync()

			panic(p)
		}
	}()

	rootCmd.AddCommand(
		serveCommand(cfg, *configPath),
		validateCommand(cfg),
		domainsCommand(cfg),
	)

	err = rootCmd.Execute()
	_ = logger.Get(ctx).Sync()
	if err != nil {
		os.Exit(1) //nolint: gocritic
	}
}
