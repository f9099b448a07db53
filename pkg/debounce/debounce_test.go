package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_RunsAfterDelay(t *testing.T) {
	d := New(30 * time.Millisecond)
	done := make(chan time.Time, 1)

	start := time.Now()
	d.Schedule(func() { done <- time.Now() })

	if !d.Pending() {
		t.Error("Pending() = false right after Schedule")
	}

	select {
	case ran := <-done:
		if elapsed := ran.Sub(start); elapsed < 30*time.Millisecond {
			t.Errorf("task ran after %v, want >= 30ms", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}

	if d.Pending() {
		t.Error("Pending() = true after the task ran")
	}
}

func TestDebouncer_ScheduleReplaces(t *testing.T) {
	d := New(40 * time.Millisecond)
	var first, second atomic.Int32
	done := make(chan struct{})

	d.Schedule(func() { first.Add(1) })
	time.Sleep(10 * time.Millisecond)
	d.Schedule(func() {
		second.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("replacement task never ran")
	}
	time.Sleep(60 * time.Millisecond)

	if first.Load() != 0 {
		t.Errorf("replaced task ran %d times, want 0", first.Load())
	}
	if second.Load() != 1 {
		t.Errorf("replacement task ran %d times, want 1", second.Load())
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := New(20 * time.Millisecond)
	var ran atomic.Bool

	if d.Cancel() {
		t.Error("Cancel() with nothing pending = true")
	}

	d.Schedule(func() { ran.Store(true) })
	if !d.Cancel() {
		t.Error("Cancel() with a pending task = false")
	}

	time.Sleep(60 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled task ran")
	}
	if d.Pending() {
		t.Error("Pending() = true after Cancel")
	}
}

func TestNew_NegativeDelay(t *testing.T) {
	if got := New(-time.Second).Delay(); got != 0 {
		t.Errorf("Delay() = %v, want 0", got)
	}
}
