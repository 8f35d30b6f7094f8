package worker

import (
	"context"
	"time"

	"github.com/gitpulse/gitpulse/internal/service"
	"github.com/gitpulse/gitpulse/pkg/logger"
)

// SyncWorker runs the pipeline on a fixed interval. Every pass recomputes the
// lookback window from "now"; the idempotent load makes overlapping windows
// harmless.
type SyncWorker struct {
	pipeline *service.Pipeline
	interval time.Duration
}

func NewSyncWorker(pipeline *service.Pipeline, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		pipeline: pipeline,
		interval: interval,
	}
}

func (w *SyncWorker) Run(ctx context.Context) {
	if err := w.pipeline.Run(ctx); err != nil {
		logger.Error("initial pipeline run failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.pipeline.Run(ctx); err != nil {
				logger.Error("scheduled pipeline run failed: %v", err)
			}

		case <-ctx.Done():
			logger.Info("stopping sync worker")
			return
		}
	}
}
