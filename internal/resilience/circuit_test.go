package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTransient = NewTransientError(errors.New("overloaded"), 529)

func failing(_ context.Context) (int, error) { return 0, errTransient }
func passing(_ context.Context) (int, error) { return 1, nil }

func newTestBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", FailureThreshold: threshold, ResetTimeout: reset})
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	v, err := Execute(context.Background(), cb, passing)
	if err != nil || v != 1 {
		t.Fatalf("got %d, %v", v, err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	for range 3 {
		_, _ = Execute(context.Background(), cb, failing)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	_, err := Execute(context.Background(), cb, func(_ context.Context) (int, error) {
		t.Error("should not be called when open")
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_NonTransientDoesNotTrip(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	for range 5 {
		_, _ = Execute(context.Background(), cb, func(_ context.Context) (int, error) {
			return 0, errors.New("invalid request")
		})
	}
	if failures, state := cb.Counters(); failures != 0 || state != CircuitClosed {
		t.Errorf("expected closed with no failures, got %d %s", failures, state)
	}
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	_, _ = Execute(context.Background(), cb, failing)
	_, _ = Execute(context.Background(), cb, failing)
	_, _ = Execute(context.Background(), cb, passing)
	if failures, _ := cb.Counters(); failures != 0 {
		t.Errorf("expected counter reset, got %d", failures)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(1, 10*time.Second)
	_, _ = Execute(context.Background(), cb, failing)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	*now = now.Add(11 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	if _, err := Execute(context.Background(), cb, passing); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(1, 10*time.Second)
	_, _ = Execute(context.Background(), cb, failing)
	*now = now.Add(11 * time.Second)

	_, _ = Execute(context.Background(), cb, failing)
	if cb.State() != CircuitOpen {
		t.Errorf("expected reopened circuit, got %s", cb.State())
	}
}

func TestCircuitBreaker_CallerCancellationIgnored(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = Execute(ctx, cb, func(ctx context.Context) (int, error) {
		return 0, NewTransientError(ctx.Err(), 0)
	})
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb, _ := newTestBreaker(1000, time.Minute)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = Execute(context.Background(), cb, failing)
			} else {
				_, _ = Execute(context.Background(), cb, passing)
			}
		}(i)
	}
	wg.Wait()
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestCircuitState_String(t *testing.T) {
	if CircuitClosed.String() != "closed" || CircuitOpen.String() != "open" || CircuitHalfOpen.String() != "half-open" || CircuitState(9).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
