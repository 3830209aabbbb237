package breaker

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestBreaker(threshold int, timeout time.Duration) (*Breaker, *time.Time) {
	b := New(Config{
		FailureThreshold: threshold,
		Timeout:          timeout,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestOpensAfterThresholdFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := b.Call("svc", func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d err = %v", i, err)
		}
	}
	if b.State("svc") != StateOpen {
		t.Fatalf("state = %v, want open", b.State("svc"))
	}

	calls := 0
	err := b.Call("svc", func() error { calls++; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if calls != 0 {
		t.Fatal("open circuit should not invoke the function")
	}
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	b.Call("svc", func() error { return errors.New("down") })
	if b.State("svc") != StateOpen {
		t.Fatal("circuit should be open")
	}

	*now = now.Add(61 * time.Second)
	if err := b.Call("svc", func() error { return nil }); err != nil {
		t.Fatalf("probe call: %v", err)
	}
	if b.State("svc") != StateClosed {
		t.Fatalf("state = %v, want closed after successful probe", b.State("svc"))
	}
}

func TestHalfOpenProbeReopensOnFailure(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	b.Call("svc", func() error { return errors.New("down") })

	*now = now.Add(61 * time.Second)
	b.Call("svc", func() error { return errors.New("still down") })
	if b.State("svc") != StateOpen {
		t.Fatalf("state = %v, want open after failed probe", b.State("svc"))
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	b.Call("svc", func() error { return errors.New("one") })
	b.Call("svc", func() error { return nil })
	b.Call("svc", func() error { return errors.New("two") })
	if b.State("svc") != StateClosed {
		t.Fatal("non-consecutive failures should not open the circuit")
	}
}

func TestServicesAreIsolated(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	b.Call("down", func() error { return errors.New("x") })
	if err := b.Call("up", func() error { return nil }); err != nil {
		t.Fatalf("healthy service affected: %v", err)
	}
	if b.State("up") != StateClosed {
		t.Fatal("healthy service circuit should stay closed")
	}
}
