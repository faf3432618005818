package workers

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	cfg := DefaultPoolConfig("test")
	cfg.NumWorkers = 4
	p := NewPool(nil, cfg, nil)
	p.Start()
	defer p.Stop()

	var completed int64
	const n = 100
	for i := 0; i < n; i++ {
		if err := p.SubmitWait(TaskFunc(func() error {
			atomic.AddInt64(&completed, 1)
			return nil
		})); err != nil {
			t.Fatalf("SubmitWait: %v", err)
		}
	}

	if got := atomic.LoadInt64(&completed); got != n {
		t.Fatalf("completed = %d, want %d", got, n)
	}
}

func TestPoolRecoversFromPanickingTask(t *testing.T) {
	cfg := DefaultPoolConfig("test")
	cfg.NumWorkers = 1
	p := NewPool(nil, cfg, nil)
	p.Start()
	defer p.Stop()

	err := p.SubmitWait(TaskFunc(func() error {
		panic("boom")
	}))
	if err == nil {
		t.Fatalf("expected an error from a panicking task")
	}
	if _, ok := err.(*PanicError); !ok {
		t.Fatalf("expected *PanicError, got %T", err)
	}

	// Pool must still accept work after recovering.
	if err := p.SubmitWait(TaskFunc(func() error { return nil })); err != nil {
		t.Fatalf("pool did not recover: %v", err)
	}
}

func TestStopIsIdempotentAndRejectsFurtherWork(t *testing.T) {
	p := NewPool(nil, DefaultPoolConfig("test"), nil)
	p.Start()
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got: %v", err)
	}
	if err := p.Submit(TaskFunc(func() error { return nil })); err != ErrPoolStopped {
		t.Fatalf("expected ErrPoolStopped, got %v", err)
	}
	time.Sleep(time.Millisecond)
}
