package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	app "github.com/okian/trials/internal/app"
	"github.com/okian/trials/internal/config"
	"github.com/okian/trials/pkg/logger"
)

type submitFlags struct {
	user     string
	name     string
	testType string
}

func newSubmitCmd() *cobra.Command {
	var f submitFlags
	cmd := &cobra.Command{
		Use:   "submit --user ID --test-type TYPE FILE",
		Short: "Upload a local video as a new attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return submitFile(ctx, cfg, log, f, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.user, "user", "", "athlete user id")
	cmd.Flags().StringVar(&f.name, "name", "", "athlete display name")
	cmd.Flags().StringVar(&f.testType, "test-type", "", "test type, e.g. vertical-jump")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("test-type")
	return cmd
}

// submitFile runs ingestion for one file and waits for the analysis trigger.
func submitFile(ctx context.Context, cfg *config.Config, log logger.Logger, f submitFlags, path string, out io.Writer) error {
	video, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer func() { _ = video.Close() }()

	deps, err := buildAdapters(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build adapters: %w", err)
	}
	svc := newService(cfg, deps, log.Named("service"))
	defer svc.Stop()

	a, err := svc.Submit(ctx, app.Submission{
		UserID:   f.user,
		Username: f.name,
		TestType: f.testType,
		Filename: filepath.Base(path),
		Video:    video,
	})
	var cerr *app.CommitError
	if errors.As(err, &cerr) {
		// The video is stored; one more record attempt reuses it.
		log.Warn(ctx, "record not created, retrying with stored video",
			logger.String("videoUrl", cerr.VideoURL),
			logger.Error(cerr.Err),
		)
		a, err = svc.CommitUpload(ctx, app.Commit{
			UserID:   f.user,
			Username: f.name,
			TestType: f.testType,
			VideoURL: cerr.VideoURL,
		})
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\t%s\t%s\n", a.ID, a.Status, a.VideoURL)
	return err
}
