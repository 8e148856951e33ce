package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"example.com/healthsync/internal/app"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/logging"
)

var (
	userFlag string
	rootCmd  = &cobra.Command{
		Use:          "healthctl",
		Short:        "Operator CLI for the healthsync store",
		SilenceUsage: true,
	}
)

// session bundles what every store-backed subcommand needs.
type session struct {
	cfg      config.Config
	log      zerolog.Logger
	backend  *app.Backend
	services *app.Services
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{Service: cfg.ServiceName + "-ctl", Level: cfg.LogLevel, Pretty: true})
	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:      cfg,
		log:      logger,
		backend:  backend,
		services: app.NewServices(backend.Store, cfg, logger),
	}, nil
}

func (s *session) Close() { s.backend.Close() }

func requireUser() error {
	if userFlag == "" {
		return fmt.Errorf("--user required")
	}
	return nil
}

func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return day, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User ID the command acts for")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
