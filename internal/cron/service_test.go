package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/quickbite-backend/pkg/logger"
	"github.com/quickbite/quickbite-backend/pkg/metrics"
)

type testJob struct {
	name string
	err  error
	runs chan struct{}
}

func newTestJob(name string, err error) *testJob {
	return &testJob{name: name, err: err, runs: make(chan struct{}, 16)}
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs <- struct{}{}
	return t.err
}

func TestServiceRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	success := newTestJob("success", nil)
	failure := newTestJob("fail", errors.New("boom"))
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(success, failure),
		Metrics:  metrics.NewJobMetrics(reg),
	})
	require.NoError(t, err)

	service.RunOnce(context.Background())

	assert.Len(t, success.runs, 1)
	assert.Len(t, failure.runs, 1)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["job_success"])
	assert.True(t, names["job_failure"])
}

func TestServiceRunTicksUntilCanceled(t *testing.T) {
	job := newTestJob("tick", nil)
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	select {
	case <-job.runs:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("service did not stop")
	}
}

func TestNewServiceRequiresLogger(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
