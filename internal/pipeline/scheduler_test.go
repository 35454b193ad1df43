package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	job := func(context.Context) error { return nil }
	if _, err := NewScheduler("every tuesday", time.UTC, 0, job); err == nil {
		t.Error("invalid schedule accepted")
	}
	if _, err := NewScheduler("*/15 * * * *", time.UTC, 0, nil); err == nil {
		t.Error("nil job accepted")
	}
}

func TestSchedulerRunsImmediatelyAndStops(t *testing.T) {
	var runs atomic.Int32
	ran := make(chan struct{}, 1)
	job := func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("job context has no deadline")
		}
		runs.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
		return errors.New("ignored")
	}

	// Far-off schedule so only the initial run happens.
	s, err := NewScheduler("0 0 1 1 *", time.UTC, time.Minute, job)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}
	// The initial run happens before the cron loop starts.
	deadline := time.Now().Add(5 * time.Second)
	for s.Next().IsZero() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if next := s.Next(); next.Month() != time.January || next.Day() != 1 {
		t.Errorf("Next = %v", next)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
}

func TestSchedulerTickInheritsStartContext(t *testing.T) {
	var calls atomic.Int32
	ticked := make(chan struct{})
	tickErr := make(chan error, 1)
	job := func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return nil
		}
		if calls.Load() == 2 {
			close(ticked)
			select {
			case <-ctx.Done():
				tickErr <- ctx.Err()
			case <-time.After(5 * time.Second):
				tickErr <- nil
			}
		}
		return nil
	}

	s, err := NewScheduler("@every 1s", time.UTC, 0, job)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-ticked:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("scheduled tick did not run")
	}
	cancel()

	if err := <-tickErr; !errors.Is(err, context.Canceled) {
		t.Errorf("tick context err = %v, want %v", err, context.Canceled)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
