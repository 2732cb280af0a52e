package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/erika/internal/config"
	signalpkg "github.com/Veraticus/erika/internal/signal"
)

func newRunCmd(v *viper.Viper, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to signal-cli and answer messages (the default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), v, stderr)
		},
	}
}

func runBot(ctx context.Context, v *viper.Viper, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := config.NewLogger(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	persona, err := config.LoadPersona(cfg.Bot.PersonaFile)
	if err != nil {
		return fmt.Errorf("invalid persona: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("erika starting",
		slog.String("version", version),
		slog.String("account", signalpkg.MaskAccount(cfg.Signal.Account)),
		slog.String("socket", cfg.Signal.Socket))

	a, err := newApp(ctx, cfg, persona, logger)
	if err != nil {
		return err
	}
	return a.run(ctx)
}
