package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRunsJob(t *testing.T) {
	s := NewScheduler(log.NewTestLogger())
	var runs atomic.Int32

	require.NoError(t, s.Schedule("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	s := NewScheduler(log.NewTestLogger())
	err := s.Schedule("bad", "every now and then", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRunNowLogsFailure(t *testing.T) {
	logger := log.NewTestLogger()
	s := NewScheduler(logger, WithJobTimeout(time.Second))

	s.RunNow("prune", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return errors.New("store offline")
	})

	assert.True(t, logger.AssertLoggedWithField(log.ErrorLevel, "Job failed", "job", "prune"))
}

func TestStopCancelsJobs(t *testing.T) {
	s := NewScheduler(log.NewTestLogger())
	s.Stop()

	var ctxErr error
	s.RunNow("late", func(ctx context.Context) error {
		ctxErr = ctx.Err()
		return nil
	})
	assert.ErrorIs(t, ctxErr, context.Canceled)
}
