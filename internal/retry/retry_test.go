package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelay_Modes(t *testing.T) {
	cases := []struct {
		name  string
		p     Policy
		retry int
		want  time.Duration
	}{
		{"fixed", Policy{Mode: ModeFixed, Initial: time.Second, Max: 10 * time.Second}, 3, time.Second},
		{"linear", Policy{Mode: ModeLinear, Initial: time.Second, Max: 10 * time.Second}, 3, 3 * time.Second},
		{"linear capped", Policy{Mode: ModeLinear, Initial: 4 * time.Second, Max: 10 * time.Second}, 5, 10 * time.Second},
		{"exponential", Policy{Mode: ModeExponential, Initial: time.Second, Max: 60 * time.Second}, 4, 8 * time.Second},
		{"exponential capped", Policy{Mode: ModeExponential, Initial: time.Second, Max: 5 * time.Second}, 4, 5 * time.Second},
		{"zero retries", Policy{Mode: ModeLinear, Initial: time.Second}, 0, 0},
	}
	for _, c := range cases {
		if got := c.p.Delay(c.retry); got != c.want {
			t.Errorf("%s: Delay(%d) = %v, want %v", c.name, c.retry, got, c.want)
		}
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	p := Policy{Mode: ModeFixed, Initial: time.Millisecond, MaxRetries: 3}
	calls := 0
	err := Do(context.Background(), p, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) bool { return true })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	p := Policy{Mode: ModeFixed, Initial: time.Millisecond, MaxRetries: 3}
	calls := 0
	permanent := errors.New("permanent")
	err := Do(context.Background(), p, func() error {
		calls++
		return permanent
	}, func(error) bool { return false })
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	p := Policy{Mode: ModeFixed, Initial: time.Millisecond, MaxRetries: 2}
	calls := 0
	err := Do(context.Background(), p, func() error {
		calls++
		return errors.New("still failing")
	}, func(error) bool { return true })
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (original + 2 retries)", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	p := Policy{Mode: ModeFixed, Initial: time.Minute, MaxRetries: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, p, func() error { return errors.New("boom") }, func(error) bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
