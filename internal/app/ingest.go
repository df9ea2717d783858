package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/okian/trials/internal/adapters/notify"
	"github.com/okian/trials/internal/adapters/objectstore"
	"github.com/okian/trials/internal/adapters/repository"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/pkg/logger"
	"github.com/okian/trials/pkg/metrics"
)

const defaultContentType = "video/mp4"

// Submission is a video handed in by an athlete.
type Submission struct {
	UserID string
	// Username is the display name forwarded to the analysis worker.
	Username string
	TestType string
	Filename string
	Video    io.Reader
}

// Commit describes an already uploaded video that still needs its record.
type Commit struct {
	UserID   string
	Username string
	TestType string
	VideoURL string
}

// Submit uploads the video and creates an in-progress attempt for it. An
// upload failure creates nothing. A record failure after upload returns a
// *CommitError carrying the stored video URL.
func (s *Service) Submit(ctx context.Context, sub Submission) (model.TestAttempt, error) {
	start := s.now()
	tt, err := validateOwner(sub.UserID, sub.TestType)
	if err != nil {
		return model.TestAttempt{}, err
	}
	if sub.Video == nil {
		return model.TestAttempt{}, fmt.Errorf("%w: missing video", ErrInvalidSubmission)
	}

	body, err := io.ReadAll(io.LimitReader(sub.Video, s.maxVideoBytes+1))
	if err != nil {
		return model.TestAttempt{}, fmt.Errorf("%w: read video: %w", ErrInvalidSubmission, err)
	}
	switch {
	case len(body) == 0:
		return model.TestAttempt{}, fmt.Errorf("%w: empty video", ErrInvalidSubmission)
	case int64(len(body)) > s.maxVideoBytes:
		return model.TestAttempt{}, fmt.Errorf("%w: video exceeds %d bytes", ErrInvalidSubmission, s.maxVideoBytes)
	}

	key := objectstore.Key(sub.UserID, start, sub.Filename)
	contentType := detectContentType(body, sub.Filename)
	url, err := s.objects.Upload(ctx, key, body, contentType)
	if err != nil {
		metrics.RecordUploadFailure()
		metrics.RecordErrorByComponent("ingest", "upload")
		s.logger.Error(ctx, "video upload failed",
			logger.String("userId", sub.UserID),
			logger.String("key", key),
			logger.Error(err),
		)
		return model.TestAttempt{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	a, err := s.commit(ctx, sub.UserID, sub.Username, tt, url)
	if err != nil {
		return model.TestAttempt{}, err
	}
	metrics.RecordIngestLatency(float64(s.now().Sub(start).Microseconds()) / 1000)
	return a, nil
}

// CommitUpload creates the record for a video that is already stored and
// fires the analysis trigger, exactly as the tail of Submit does.
func (s *Service) CommitUpload(ctx context.Context, c Commit) (model.TestAttempt, error) {
	tt, err := validateOwner(c.UserID, c.TestType)
	if err != nil {
		return model.TestAttempt{}, err
	}
	if strings.TrimSpace(c.VideoURL) == "" {
		return model.TestAttempt{}, fmt.Errorf("%w: missing videoUrl", ErrInvalidSubmission)
	}
	return s.commit(ctx, c.UserID, c.Username, tt, c.VideoURL)
}

func validateOwner(userID, testType string) (model.TestType, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: missing userId", ErrInvalidSubmission)
	}
	tt, err := model.ParseTestType(testType)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	return tt, nil
}

func (s *Service) commit(ctx context.Context, userID, username string, tt model.TestType, videoURL string) (model.TestAttempt, error) {
	a := model.TestAttempt{
		ID:        s.newID(),
		UserID:    userID,
		TestType:  tt,
		VideoURL:  videoURL,
		Status:    model.StatusInProgress,
		CreatedAt: s.now().UTC(),
	}

	var err error
	for attempt := 0; attempt <= s.commitRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordCommitRetry()
			if !s.pause(ctx, s.commitBackoff*time.Duration(attempt)) {
				err = ctx.Err()
				break
			}
		}
		err = s.store.CreateAttempt(ctx, a)
		// A retry that finds its own record means an earlier try landed.
		if err == nil || (attempt > 0 && errors.Is(err, repository.ErrAlreadyExists)) {
			err = nil
			break
		}
		s.logger.Warn(ctx, "attempt record create failed",
			logger.String("attemptId", a.ID),
			logger.Int("try", attempt+1),
			logger.Error(err),
		)
	}
	if err != nil {
		metrics.RecordCommitFailure()
		metrics.RecordErrorByComponent("ingest", "commit")
		s.logger.Error(ctx, "attempt record not created, video orphaned",
			logger.String("videoUrl", videoURL),
			logger.Error(err),
		)
		return model.TestAttempt{}, &CommitError{VideoURL: videoURL, Err: err}
	}

	metrics.RecordAttemptSubmitted(string(tt))
	s.logger.Info(ctx, "attempt created",
		logger.String("attemptId", a.ID),
		logger.String("userId", userID),
		logger.String("testType", string(tt)),
	)
	s.notifyAsync(ctx, a, username)
	return a, nil
}

func (s *Service) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// notifyAsync fires the analysis trigger. Failures are logged and counted
// only; the attempt stays in-progress.
func (s *Service) notifyAsync(ctx context.Context, a model.TestAttempt, username string) { //nolint:gocritic // hugeParam: copied into the goroutine
	msg := notify.Message{
		AttemptID: a.ID,
		VideoURL:  a.VideoURL,
		TestType:  string(a.TestType),
		UserID:    a.UserID,
		Username:  username,
	}
	nctx := context.WithoutCancel(ctx)

	s.notifying.Add(1)
	go func() {
		defer s.notifying.Done()
		tctx, cancel := context.WithTimeout(nctx, s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(tctx, msg); err != nil {
			metrics.RecordNotification(s.notifierName, "failed")
			metrics.RecordErrorByComponent("notify", s.notifierName)
			s.logger.Warn(tctx, "analysis trigger failed",
				logger.String("attemptId", msg.AttemptID),
				logger.String("notifier", s.notifierName),
				logger.Error(err),
			)
			return
		}
		metrics.RecordNotification(s.notifierName, "sent")
		s.logger.Debug(tctx, "analysis trigger sent", logger.String("attemptId", msg.AttemptID))
	}()
}

// detectContentType sniffs the body, then falls back to the file
// extension, then to video/mp4.
func detectContentType(body []byte, filename string) string {
	if m := mimetype.Detect(body); strings.HasPrefix(m.String(), "video/") {
		return m.String()
	}
	if byExt := mime.TypeByExtension("." + objectstore.Ext(filename)); strings.HasPrefix(byExt, "video/") {
		return byExt
	}
	return defaultContentType
}
