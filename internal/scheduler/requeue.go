package scheduler

import (
	"context"
	"time"

	"github.com/viewmaxx/backend/internal/logging"
	"github.com/viewmaxx/backend/pkg/models"
)

// Repository is the slice of the video repository the requeuer needs
type Repository interface {
	ListStuckVideos(ctx context.Context, olderThan time.Duration, limit int) ([]*models.Video, error)
}

// JobPublisher publishes transcode jobs to the worker queue
type JobPublisher interface {
	PublishTranscodeJob(ctx context.Context, job *models.TranscodeJob) error
}

// Requeuer re-publishes transcode jobs for uploads that have been stuck in
// processing. A publish failure at upload time leaves a video record with no
// job behind it; the worker also drops jobs when it crashes mid-transcode.
// Either way the video sits in processing until this loop picks it up.
type Requeuer struct {
	repo      Repository
	publisher JobPublisher
	logger    *logging.Logger

	interval time.Duration
	stuckAge time.Duration
	batch    int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRequeuer creates a requeuer that scans every interval for videos stuck
// in processing longer than stuckAge
func NewRequeuer(repo Repository, publisher JobPublisher, logger *logging.Logger, interval, stuckAge time.Duration) *Requeuer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Requeuer{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		stuckAge:  stuckAge,
		batch:     100,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the scan loop
func (r *Requeuer) Start() {
	go r.loop()
	r.logger.Infof("Requeuer started (interval: %s, stuck after: %s)", r.interval, r.stuckAge)
}

// Stop stops the scan loop
func (r *Requeuer) Stop() {
	r.cancel()
	r.logger.Info("Requeuer stopped")
}

func (r *Requeuer) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.RequeueStuck(r.ctx); err != nil {
				r.logger.ErrorWithErr("Requeue scan failed", err)
			} else if n > 0 {
				r.logger.Infof("Requeued %d stuck videos", n)
			}
		}
	}
}

// RequeueStuck publishes a fresh transcode job for every stuck video and
// returns how many were requeued. Publish failures stop the batch; the next
// scan retries from the top.
func (r *Requeuer) RequeueStuck(ctx context.Context) (int, error) {
	videos, err := r.repo.ListStuckVideos(ctx, r.stuckAge, r.batch)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, video := range videos {
		job := &models.TranscodeJob{
			VideoID:   video.ID,
			ObjectKey: video.OriginalURL,
			Filename:  video.Filename,
			Size:      video.Size,
		}

		if err := r.publisher.PublishTranscodeJob(ctx, job); err != nil {
			return requeued, err
		}

		r.logger.WithVideoID(video.ID).Info("Requeued stuck video")
		requeued++
	}

	return requeued, nil
}
