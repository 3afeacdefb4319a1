package clock

import (
	"context"
	"testing"
	"time"
)

func TestVirtualSleepAdvances(t *testing.T) {
	start := time.Unix(1000, 0)
	v := NewVirtual(start)

	if err := v.Sleep(context.Background(), 200*time.Millisecond); err != nil {
		t.Fatalf("Sleep failed: %v", err)
	}
	if got := v.Now().Sub(start); got != 200*time.Millisecond {
		t.Errorf("expected 200ms elapsed, got %v", got)
	}
}

func TestVirtualSleepCancelled(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := v.Sleep(ctx, time.Second); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !v.Now().Equal(time.Unix(0, 0)) {
		t.Error("cancelled sleep should not advance the clock")
	}
}

func TestRealSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Real{}.Sleep(ctx, time.Hour)
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancellation")
	}
}
