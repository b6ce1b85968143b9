package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/mwenda/keysage/internal/config"
	"github.com/mwenda/keysage/internal/gateway/cli"
)

var chatConfigPath string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat prompt",
	RunE:  runChat,
}

func init() {
	// Register --config on both root and chat so that
	// `keysage --config path` and `keysage chat --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, chatCmd} {
		cmd.Flags().StringVar(&chatConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	}
}

// runChat starts the interactive CLI prompt against the assistant pipeline.
func runChat(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := config.Load(goutils.Env("KEYSAGE_CONFIG", chatConfigPath))
	if err != nil {
		return err
	}

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := cli.NewGateway(sc.Pipeline, logger)
	if err := gw.Start(ctx); err != nil {
		logger.Error("chat gateway exited with error", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return gw.Stop(shutdownCtx)
}
