package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/quickbite/quickbite-backend/pkg/logger"
)

const defaultIdleTimeout = 30 * time.Minute

// Evictor drops in-process session state untouched for longer than idle.
type Evictor interface {
	EvictIdle(ctx context.Context, idle time.Duration) int
}

// NewSessionEvictionJob sweeps idle cart stores and location sessions. Both
// persist their state, so eviction only frees memory and stops trackers.
func NewSessionEvictionJob(logg *logger.Logger, idle time.Duration, evictors map[string]Evictor) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(evictors) == 0 {
		return nil, fmt.Errorf("at least one evictor required")
	}
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	return &sessionEvictionJob{logg: logg, idle: idle, evictors: evictors}, nil
}

type sessionEvictionJob struct {
	logg     *logger.Logger
	idle     time.Duration
	evictors map[string]Evictor
}

func (j *sessionEvictionJob) Name() string { return "session-eviction" }

func (j *sessionEvictionJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	counts := make(map[string]any, len(j.evictors))
	total := 0
	for name, evictor := range j.evictors {
		n := evictor.EvictIdle(ctx, j.idle)
		counts[name] = n
		total += n
	}
	if total > 0 {
		j.logg.Info(j.logg.WithFields(ctx, counts), "idle sessions evicted")
	}
	return nil
}
