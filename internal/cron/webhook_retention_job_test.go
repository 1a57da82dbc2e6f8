package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/practice-code/checkout-reconciler/pkg/logger"
)

type fakeSweeper struct {
	deleted int64
	err     error
	calls   int
}

func (f *fakeSweeper) Clean(ctx context.Context) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func TestWebhookRetentionJobRunsSweep(t *testing.T) {
	sweeper := &fakeSweeper{deleted: 3}
	job, err := NewWebhookRetentionJob(WebhookRetentionJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
	})
	if err != nil {
		t.Fatalf("NewWebhookRetentionJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
}

func TestWebhookRetentionJobPropagatesError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("boom")}
	job, err := NewWebhookRetentionJob(WebhookRetentionJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
	})
	if err != nil {
		t.Fatalf("NewWebhookRetentionJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
