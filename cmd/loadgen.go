package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/trials/internal/loadgen"
	"github.com/okian/trials/pkg/logger"
)

func newLoadgenCmd() *cobra.Command {
	cfg := loadgen.DefaultConfig()
	var logFile string
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Drive a running API through the attempt lifecycle and verify the leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithOptions(logger.Options{File: logFile}); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			cfg.Logger = logger.Named("loadgen")
			_, err := loadgen.Run(cmd.Context(), cfg)
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	fl.IntVar(&cfg.NumAthletes, "athletes", cfg.NumAthletes, "athletes to create, one attempt each")
	fl.IntVar(&cfg.TopN, "top", cfg.TopN, "leaderboard entries to fetch")
	fl.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent workers")
	fl.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	fl.DurationVar(&cfg.ProcessTimeout, "process-timeout", cfg.ProcessTimeout, "wait for results to be applied")
	fl.StringVar(&cfg.ReviewerID, "reviewer", cfg.ReviewerID, "reviewer id used for assessments")
	fl.StringVar(&cfg.OutputFile, "output", "", "write the generated plan as JSON")
	fl.StringVar(&logFile, "log", "", "also log to this file")
	fl.BoolVar(&cfg.Verbose, "verbose", false, "log the leaderboard rows")
	return cmd
}
