package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubResult struct {
	err error
}

func (r *stubResult) GetError() error {
	return r.err
}

type stubJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *stubJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &stubResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &stubResult{err: errors.New("job error")}
	}
	return &stubResult{}
}

func TestNewPool_WorkerFloor(t *testing.T) {
	if p := NewPool(5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool(0); p.workers != 1 {
		t.Errorf("expected floor of 1 worker for 0, got %d", p.workers)
	}
	if p := NewPool(-3); p.workers != 1 {
		t.Errorf("expected floor of 1 worker for negative input, got %d", p.workers)
	}
}

func TestPool_ExecutesAllJobs(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())

	var executed int32
	count := 10
	for i := 0; i < count; i++ {
		pool.Submit(&stubJob{executed: &executed})
	}

	results := pool.Wait()

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if got := atomic.LoadInt32(&executed); got != int32(count) {
		t.Errorf("expected %d executions, got %d", count, got)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const workers = 3

	var mu sync.Mutex
	running, peak := 0, 0

	pool := NewPool(workers)
	pool.Start(context.Background())

	for i := 0; i < 12; i++ {
		pool.Submit(&trackingJob{
			onStart: func() {
				mu.Lock()
				running++
				if running > peak {
					peak = running
				}
				mu.Unlock()
			},
			onEnd: func() {
				mu.Lock()
				running--
				mu.Unlock()
			},
		})
	}
	pool.Wait()

	if peak > workers {
		t.Errorf("observed %d concurrent jobs, pool allows %d", peak, workers)
	}
}

type trackingJob struct {
	onStart func()
	onEnd   func()
}

func (j *trackingJob) Execute(_ context.Context) Result {
	j.onStart()
	time.Sleep(5 * time.Millisecond)
	j.onEnd()
	return &stubResult{}
}

func TestPool_ErrorsAreReturnedNotDropped(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())

	pool.Submit(&stubJob{shouldErr: true})
	pool.Submit(&stubJob{})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	errCount := 0
	for _, r := range results {
		if r.GetError() != nil {
			errCount++
		}
	}
	if errCount != 1 {
		t.Errorf("expected exactly 1 error result, got %d", errCount)
	}
}

func TestPool_ManyMoreJobsThanQueueCapacity(t *testing.T) {
	// Submitting far more jobs than the queue and results buffers hold must
	// not wedge the submitter: results are drained while submission runs.
	pool := NewPool(3)
	pool.Start(context.Background())

	var executed int32
	const count = 40

	done := make(chan []Result, 1)
	go func() {
		for i := 0; i < count; i++ {
			pool.Submit(&stubJob{executed: &executed, duration: time.Millisecond})
		}
		done <- pool.Wait()
	}()

	select {
	case results := <-done:
		if len(results) != count {
			t.Errorf("expected %d results, got %d", count, len(results))
		}
		if got := atomic.LoadInt32(&executed); got != int32(count) {
			t.Errorf("expected %d executions, got %d", count, got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("submit/wait did not complete")
	}
}

func TestPool_CallerCancellationReachesJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(1)
	pool.Start(ctx)

	job := &signalJob{started: make(chan struct{})}
	pool.Submit(job)
	<-job.started
	cancel()

	done := make(chan []Result, 1)
	go func() { done <- pool.Wait() }()

	select {
	case results := <-done:
		if len(results) != 1 {
			t.Fatalf("expected the canceled job's result, got %d results", len(results))
		}
		if !errors.Is(results[0].GetError(), context.Canceled) {
			t.Errorf("expected context.Canceled from the job, got %v", results[0].GetError())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("cancellation did not unblock the pool")
	}
}

// signalJob reports when it starts, then blocks until its context ends
type signalJob struct {
	started chan struct{}
}

func (j *signalJob) Execute(ctx context.Context) Result {
	close(j.started)
	<-ctx.Done()
	return &stubResult{err: ctx.Err()}
}

func TestPool_ShutdownStopsWorkers(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())
	pool.Submit(&stubJob{duration: time.Second})
	pool.Shutdown()
	// Shutdown returns only after workers exit; reaching here is the test.
}
