package worker

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

func TestExecuteTasksRunsEverything(t *testing.T) {
	p := NewPool(4)
	p.Start()
	defer p.Stop()

	var mu sync.Mutex
	seen := make(map[int]bool)
	tasks := make([]Task, 20)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) error {
			mu.Lock()
			seen[i] = true
			mu.Unlock()
			if i%5 == 0 {
				return errors.New("odd one out")
			}
			return nil
		}
	}

	skipped := p.ExecuteTasks(context.Background(), tasks)
	assert.Equal(t, 0, skipped)
	assert.Len(t, seen, 20)

	m := p.GetMetrics()
	assert.Equal(t, int64(20), m.TotalTasks)
	assert.Equal(t, int64(16), m.CompletedTasks)
	assert.Equal(t, int64(4), m.FailedTasks)
	assert.LessOrEqual(t, m.PeakWorkers, int64(4))
}

func TestExecuteTasksStopsOnCancel(t *testing.T) {
	p := NewPool(1)
	p.Start()
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var ran int32
	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			if atomic.AddInt32(&ran, 1) == 2 {
				cancel()
			}
			return nil
		}
	}

	skipped := p.ExecuteTasks(ctx, tasks)
	assert.Equal(t, 10, int(atomic.LoadInt32(&ran))+skipped)
	assert.Greater(t, skipped, 0)
	assert.Equal(t, int64(skipped), p.GetMetrics().SkippedTasks)
}

func TestTasksSeeCallerCancellation(t *testing.T) {
	p := NewPool(2)
	p.Start()
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		p.ExecuteTasks(ctx, []Task{func(taskCtx context.Context) error {
			<-taskCtx.Done()
			done <- taskCtx.Err()
			return taskCtx.Err()
		}})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("task did not observe cancellation")
	}
}

func TestTaskTimeout(t *testing.T) {
	p := NewPool(1)
	p.SetTaskTimeout(20 * time.Millisecond)
	p.Start()
	defer p.Stop()

	var got error
	p.ExecuteTasks(context.Background(), []Task{func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	}})
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(1)
	p.Start()
	p.Stop()
	p.Stop()

	assert.False(t, p.Submit(func(context.Context) error { return nil }))
	assert.Equal(t, 0, p.ExecuteTasks(context.Background(), nil))
	assert.Equal(t, 1, p.ExecuteTasks(context.Background(), []Task{func(context.Context) error { return nil }}))
}

func TestSharedPool(t *testing.T) {
	p := GetSharedPool()
	require.NotNil(t, p)
	assert.Same(t, p, GetSharedPool())
	assert.GreaterOrEqual(t, p.Size(), 1)
}
