package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_Size(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{4, 4},
	}
	for _, tt := range tests {
		p := New(tt.in)
		if p.Size() != tt.want {
			t.Errorf("New(%d).Size(): got %d, want %d", tt.in, p.Size(), tt.want)
		}
		p.Close()
	}
}

func TestRun(t *testing.T) {
	p := New(2)
	defer p.Close()

	got, err := Run(context.Background(), p, func() (string, error) { return "NE555", nil })
	if err != nil || got != "NE555" {
		t.Errorf("Run: got %q, %v; want NE555, nil", got, err)
	}

	cause := errors.New("decode failed")
	_, err = Run(context.Background(), p, func() (int, error) { return 0, cause })
	if !errors.Is(err, cause) {
		t.Errorf("Run error: got %v, want %v", err, cause)
	}
}

func TestRun_Panic(t *testing.T) {
	p := New(1)
	defer p.Close()

	_, err := Run(context.Background(), p, func() (int, error) { panic("boom") })

	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "boom" {
		t.Fatalf("expected *PanicError(boom), got %v", err)
	}

	// The slot must have been released.
	if got, err := Run(context.Background(), p, func() (int, error) { return 7, nil }); err != nil || got != 7 {
		t.Errorf("pool unusable after panic: %d, %v", got, err)
	}
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	const size, tasks = 2, 8
	p := New(size)
	defer p.Close()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Run(context.Background(), p, func() (struct{}, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			})
			if err != nil {
				t.Errorf("Run failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > size {
		t.Errorf("peak concurrency: got %d, want <= %d", got, size)
	}
}

func TestSubmit_WaitsForSlot(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	blocker, err := Submit(context.Background(), p, func() (int, error) {
		<-release
		return 1, nil
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := Submit(ctx, p, func() (int, error) { return 2, nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Submit on full pool: got %v, want deadline exceeded", err)
	}

	close(release)
	if v, err := blocker.Await(context.Background()); v != 1 || err != nil {
		t.Errorf("blocker: got %d, %v", v, err)
	}
}

func TestFuture_AwaitAbandon(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	var finished atomic.Bool
	f, err := Submit(context.Background(), p, func() (string, error) {
		<-release
		finished.Store(true)
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Await with cancelled context: got %v, want context.Canceled", err)
	}

	// The task was not interrupted and still completes.
	close(release)
	<-f.Done()
	if !finished.Load() {
		t.Error("task did not finish")
	}
	if v, err := f.Await(context.Background()); v != "done" || err != nil {
		t.Errorf("late Await: got %q, %v", v, err)
	}
}

func TestClose(t *testing.T) {
	p := New(2)

	release := make(chan struct{})
	if _, err := Submit(context.Background(), p, func() (int, error) {
		<-release
		return 0, nil
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a task was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the task finished")
	}

	if _, err := Submit(context.Background(), p, func() (int, error) { return 0, nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close: got %v, want ErrClosed", err)
	}
}
