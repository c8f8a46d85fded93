package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/moodegoozy/sofra-core/pkg/logger"
)

const outboxRetentionDays = 30

type outboxRetentionRepo interface {
	DeletePublishedBefore(cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure the published-event cleanup job.
type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	Retention  int
}

// NewOutboxRetentionJob builds the job that trims published outbox events
// older than the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	repo      outboxRetentionRepo
	retention int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().AddDate(0, 0, -j.retention)
	deleted, err := j.repo.DeletePublishedBefore(cutoff)
	if err != nil {
		return fmt.Errorf("delete published outbox events: %w", err)
	}
	infoCtx := j.logg.WithFields(ctx, map[string]any{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
	j.logg.Info(infoCtx, "outbox retention sweep complete")
	return nil
}
