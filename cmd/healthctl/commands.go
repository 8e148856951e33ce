package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/healthsync/db/migrations"
	"example.com/healthsync/internal/auth"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/ingest/fitfile"
	"example.com/healthsync/internal/pipeline"
)

func init() {
	// token
	var scopes string
	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.Sign(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, userFlag, strings.Split(scopes, ","), ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&scopes, "scopes", auth.ScopeHealthRead+","+auth.ScopeHealthWrite, "Comma separated scopes")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)

	// migrate
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if s.backend.Pool == nil {
				return fmt.Errorf("migrate requires the postgres store")
			}
			return migrations.Apply(cmd.Context(), s.backend.Pool)
		},
	})

	// import-fit
	var syncInline bool
	importCmd := &cobra.Command{
		Use:   "import-fit FILE...",
		Short: "Import Garmin FIT activity files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			report := map[string]any{}
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				summary, stored, err := fitfile.Import(cmd.Context(), s.services.Records, userFlag, f, s.log)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}

				results := make([]pipeline.Result, 0, len(stored))
				if syncInline {
					for _, activity := range stored {
						result, err := s.services.Syncer.Sync(cmd.Context(), userFlag, activity.ID)
						if err != nil {
							return fmt.Errorf("sync %s: %w", activity.ID, err)
						}
						results = append(results, result)
					}
				}
				report[path] = map[string]any{"summary": summary, "synced": results}
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	importCmd.Flags().BoolVar(&syncInline, "sync", false, "Run duplicate detection and TSS inline instead of waiting for the consumer")
	rootCmd.AddCommand(importCmd)

	// recalc-tss
	var recalcDays int
	recalcCmd := &cobra.Command{
		Use:   "recalc-tss",
		Short: "Recalculate TSS for a user's recent activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if recalcDays <= 0 {
				recalcDays = s.cfg.TSSRecalcDays
			}
			return printJSON(cmd.OutOrStdout(), s.services.TSS.RecalculateAll(cmd.Context(), userFlag, recalcDays))
		},
	}
	recalcCmd.Flags().IntVar(&recalcDays, "days", 0, "Trailing window in days (defaults to TSS_RECALC_DAYS)")
	rootCmd.AddCommand(recalcCmd)

	// scan
	var scanDays int
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a user's recent activities for duplicates and apply the decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			summary, err := s.services.Syncer.Scan(cmd.Context(), userFlag, scanDays)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	scanCmd.Flags().IntVar(&scanDays, "days", 30, "Trailing window in days")
	rootCmd.AddCommand(scanCmd)

	// readiness
	var date string
	readinessCmd := &cobra.Command{
		Use:   "readiness",
		Short: "Compute training load and automatic readiness for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			day, err := parseDay(date)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			load, err := s.services.Loads.Compute(cmd.Context(), userFlag, day)
			if err != nil {
				return err
			}
			readiness, err := s.services.Readiness.Auto(cmd.Context(), userFlag, day)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"training_load": load,
				"readiness":     readiness,
			})
		},
	}
	readinessCmd.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD (defaults to today, UTC)")
	rootCmd.AddCommand(readinessCmd)
}
