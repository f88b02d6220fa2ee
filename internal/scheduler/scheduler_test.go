package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundsync/internal/logging"
)

func TestAddJobRejectsBadExpression(t *testing.T) {
	s := New(logging.Nop())
	err := s.AddJob("bad", "not a cron line", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestJobRunsAndTracksStatus(t *testing.T) {
	s := New(logging.Nop())

	var runs int32
	require.NoError(t, s.AddJob("tick", "* * * * * *", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 1
	}, 3*time.Second, 50*time.Millisecond)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "tick", jobs[0].Name)
	assert.NotEqual(t, JobStatusPending, jobs[0].Status)
}

func TestFailedJobRecordsError(t *testing.T) {
	s := New(logging.Nop())

	require.NoError(t, s.AddJob("boom", "* * * * * *", func(ctx context.Context) error {
		return errors.New("venue down")
	}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		jobs := s.Jobs()
		return len(jobs) == 1 && jobs[0].Status == JobStatusFailed
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, "venue down", s.Jobs()[0].LastError)
}

func TestOverlappingTriggersAreSkipped(t *testing.T) {
	s := New(logging.Nop())

	var concurrent, peak int32
	require.NoError(t, s.AddJob("slow", "* * * * * *", func(ctx context.Context) error {
		n := atomic.AddInt32(&concurrent, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt32(&concurrent, -1)

		select {
		case <-ctx.Done():
		case <-time.After(2500 * time.Millisecond):
		}
		return nil
	}))

	s.Start()
	time.Sleep(3 * time.Second)
	s.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestStopCancelsRunningJobs(t *testing.T) {
	s := New(logging.Nop())

	started := make(chan struct{}, 1)
	var cancelled atomic.Bool
	require.NoError(t, s.AddJob("longrunner", "* * * * * *", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}))

	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.True(t, cancelled.Load())
}
