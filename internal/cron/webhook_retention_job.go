package cron

import (
	"context"
	"fmt"

	"github.com/practice-code/checkout-reconciler/pkg/logger"
	"github.com/practice-code/checkout-reconciler/pkg/metrics"
)

type webhookSweeper interface {
	Clean(ctx context.Context) (int64, error)
}

type WebhookRetentionJobParams struct {
	Logger  *logger.Logger
	Sweeper webhookSweeper
	Metrics *metrics.CronJobMetrics
}

func NewWebhookRetentionJob(params WebhookRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	return &webhookRetentionJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		metrics: params.Metrics,
	}, nil
}

type webhookRetentionJob struct {
	logg    *logger.Logger
	sweeper webhookSweeper
	metrics *metrics.CronJobMetrics
}

func (j *webhookRetentionJob) Name() string { return "webhook-retention" }

func (j *webhookRetentionJob) Run(ctx context.Context) error {
	deleted, err := j.sweeper.Clean(ctx)
	if err != nil {
		return fmt.Errorf("webhook retention: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddDeleted(j.Name(), int(deleted))
	}
	logCtx := j.logg.WithField(ctx, "rows_deleted", deleted)
	j.logg.Info(logCtx, "webhook retention cleanup complete")
	return nil
}
