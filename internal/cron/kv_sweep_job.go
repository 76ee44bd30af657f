package cron

import (
	"context"
	"fmt"

	"github.com/quickbite/quickbite-backend/pkg/logger"
)

// Sweeper drops expired entries from an in-process key-value store.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// NewKVSweepJob reclaims expired geocode cache entries, rate limit counters
// and session keys when state lives in process memory instead of Redis.
func NewKVSweepJob(logg *logger.Logger, store Sweeper) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	return &kvSweepJob{logg: logg, store: store}, nil
}

type kvSweepJob struct {
	logg  *logger.Logger
	store Sweeper
}

func (j *kvSweepJob) Name() string { return "kv-sweep" }

func (j *kvSweepJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := j.store.Sweep(ctx); n > 0 {
		j.logg.Debug(j.logg.WithField(ctx, "removed", n), "expired kv entries swept")
	}
	return nil
}
