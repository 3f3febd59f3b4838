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

type outcomes struct {
	mu   sync.Mutex
	errs map[string]error
	done chan struct{}
	want int
}

func newOutcomes(want int) *outcomes {
	return &outcomes{errs: map[string]error{}, done: make(chan struct{}), want: want}
}

func (o *outcomes) record(job Job, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[job.ID] = err
	if len(o.errs) == o.want {
		close(o.done)
	}
}

func (o *outcomes) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}
}

func TestQueueRoutesByType(t *testing.T) {
	out := newOutcomes(2)
	q := NewQueue("test", QueueConfig{Workers: 2, OnDone: out.record})
	var notified, expired int32
	q.Handle("notify", func(context.Context, Job) error { atomic.AddInt32(&notified, 1); return nil })
	q.Handle("expire", func(context.Context, Job) error { atomic.AddInt32(&expired, 1); return nil })
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "notify"}))
	require.NoError(t, q.Enqueue(Job{ID: "2", Type: "expire"}))
	out.wait(t)

	assert.Equal(t, int32(1), atomic.LoadInt32(&notified))
	assert.Equal(t, int32(1), atomic.LoadInt32(&expired))
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	out := newOutcomes(1)
	q := NewQueue("test", QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond, OnDone: out.record})
	var calls int32
	q.Handle("flaky", func(context.Context, Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "flaky"}))
	out.wait(t)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.NoError(t, out.errs["1"])
}

func TestQueuePermanentErrorIsNotRetried(t *testing.T) {
	out := newOutcomes(2)
	q := NewQueue("test", QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond, OnDone: out.record})
	var calls int32
	q.Handle("bad", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("malformed payload"))
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "bad"}))
	require.NoError(t, q.Enqueue(Job{ID: "2", Type: "unknown"}))
	out.wait(t)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.ErrorIs(t, out.errs["2"], ErrNoHandler)
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("test", QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "1"}))
}

func TestEnqueueAfterStopAlwaysFails(t *testing.T) {
	var handled int32
	q := NewQueue("test", QueueConfig{Workers: 2})
	q.Handle("notify", func(context.Context, Job) error { atomic.AddInt32(&handled, 1); return nil })
	q.Start(context.Background())
	q.Stop()

	for i := 0; i < 200; i++ {
		err := q.Enqueue(Job{Type: "notify"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrQueueStopped)
	}
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int32(0), atomic.LoadInt32(&handled))
}

func TestEnqueueAfterParentCancelFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewQueue("test", QueueConfig{})
	q.Start(ctx)
	defer q.Stop()
	cancel()

	for i := 0; i < 50; i++ {
		assert.ErrorIs(t, q.Enqueue(Job{Type: "notify"}), context.Canceled)
	}
}

func TestStopDrainsBufferedJobs(t *testing.T) {
	out := newOutcomes(5)
	gate := make(chan struct{})
	q := NewQueue("test", QueueConfig{Workers: 1, OnDone: out.record})
	q.Handle("notify", func(context.Context, Job) error {
		<-gate
		return nil
	})
	q.Start(context.Background())

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "notify"}))
	}

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	require.Eventually(t, q.isStopping, time.Second, time.Millisecond)
	assert.Error(t, q.Enqueue(Job{ID: "late", Type: "notify"}))

	close(gate)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	out.wait(t)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		assert.NoError(t, out.errs[id], id)
	}
	assert.NotContains(t, out.errs, "late")
}

func TestStopReportsAbandonedRetries(t *testing.T) {
	out := newOutcomes(1)
	var calls int32
	q := NewQueue("test", QueueConfig{MaxRetries: 3, RetryDelay: time.Hour, OnDone: out.record})
	q.Handle("flaky", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("transient")
	})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "flaky"}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	q.Stop()

	out.wait(t)
	assert.Error(t, out.errs["1"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
