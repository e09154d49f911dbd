package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDeliversTargetToHandler(t *testing.T) {
	got := make(chan string, 1)
	q := NewQueue("cleanup", func(_ context.Context, job Job) error {
		got <- job.Target
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j-1", Type: "purge", Target: "eval-9"}))
	select {
	case target := <-got:
		assert.Equal(t, "eval-9", target)
	case <-time.After(time.Second):
		t.Fatal("job never reached the handler")
	}
}

func TestQueueRejectsJobWithoutTarget(t *testing.T) {
	q := NewQueue("cleanup", func(context.Context, Job) error { return nil }, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	err := q.Enqueue(Job{ID: "j-1", Type: "purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no target")
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("cleanup", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "j-1", Target: "eval-9"})
	require.Error(t, err)
}

func TestQueueRetriesFailedJob(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("cleanup", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j-1", Type: "purge", Target: "eval-9"}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job was never retried")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
