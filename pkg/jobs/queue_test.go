package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 2)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-done:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.True(t, seen["a"] && seen["b"])
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var calls int32
	gaveUp := make(chan Job, 1)
	q := NewQueue("retry", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: 1, RetryDelay: 10 * time.Millisecond, GiveUp: func(j Job, _ error) { gaveUp <- j }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "x"}))

	select {
	case job := <-gaveUp:
		assert.Equal(t, "x", job.ID)
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("give up not reported")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueueRecoversHandlerPanic(t *testing.T) {
	gaveUp := make(chan error, 1)
	q := NewQueue("panic", func(context.Context, Job) error {
		panic("nil student")
	}, QueueConfig{GiveUp: func(_ Job, err error) { gaveUp <- err }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "p"}))

	select {
	case err := <-gaveUp:
		assert.Contains(t, err.Error(), "nil student")
	case <-time.After(2 * time.Second):
		t.Fatal("panic not reported")
	}
}

func TestQueueJobTimeout(t *testing.T) {
	result := make(chan error, 1)
	q := NewQueue("timeout", func(ctx context.Context, _ Job) error {
		<-ctx.Done()
		result <- ctx.Err()
		return nil
	}, QueueConfig{JobTimeout: 20 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "slow"}))

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job not bounded")
	}
}

func TestQueueEnqueueOutsideLifecycle(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{ID: "a"}), ErrQueueStopped)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{ID: "b"}), ErrQueueStopped)
}

func TestQueueFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(context.Context, Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "overflow"}), ErrQueueFull)
}

func TestQueueStopGivesUpUnfinishedJobs(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	gaveUp := make(chan Job, 3)
	q := NewQueue("shutdown", func(ctx context.Context, _ Job) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{Workers: 1, BufferSize: 4, GiveUp: func(j Job, err error) {
		assert.ErrorIs(t, err, ErrQueueStopped)
		gaveUp <- j
	}})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "buffered-1"}))
	require.NoError(t, q.Enqueue(Job{ID: "buffered-2"}))

	q.Stop()
	close(gaveUp)

	var ids []string
	for job := range gaveUp {
		ids = append(ids, job.ID)
	}
	assert.ElementsMatch(t, []string{"running", "buffered-1", "buffered-2"}, ids)
	assert.Zero(t, q.Pending())
}

func TestQueueStopGivesUpPendingRetry(t *testing.T) {
	failed := make(chan struct{}, 1)
	gaveUp := make(chan error, 1)
	q := NewQueue("pending-retry", func(context.Context, Job) error {
		failed <- struct{}{}
		return errors.New("advisor down")
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Hour, GiveUp: func(_ Job, err error) { gaveUp <- err }})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "r"}))
	<-failed
	q.Stop()

	select {
	case err := <-gaveUp:
		assert.ErrorIs(t, err, ErrQueueStopped)
	default:
		t.Fatal("pending retry not reported on stop")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, time.Second, backoff(time.Second, 1))
	assert.Equal(t, 4*time.Second, backoff(time.Second, 3))
	assert.Equal(t, maxBackoff, backoff(time.Second, 20))
}
