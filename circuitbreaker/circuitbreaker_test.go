package circuitbreaker

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New(Config{Name: "test", Threshold: threshold, Cooldown: cooldown, HalfOpenTimeout: 10 * time.Second})
	cb.now = clock.Now
	return cb, clock
}

func TestNew_Defaults(t *testing.T) {
	cb := New(Config{})

	if cb.threshold != 5 {
		t.Errorf("Expected default threshold 5, got %d", cb.threshold)
	}
	if cb.cooldown != time.Minute {
		t.Errorf("Expected default cooldown 1m, got %v", cb.cooldown)
	}
	if cb.halfOpenTimeout != 30*time.Second {
		t.Errorf("Expected default halfOpenTimeout 30s, got %v", cb.halfOpenTimeout)
	}
	if cb.name != "default" {
		t.Errorf("Expected default name 'default', got %q", cb.name)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected initial state CLOSED, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("Expected CLOSED after %d failures, got %s", i+1, cb.State())
		}
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected OPEN after threshold, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected Allow() to return false while OPEN")
	}
	if cb.TimeUntilRetry() != time.Minute {
		t.Errorf("Expected 1m until retry, got %v", cb.TimeUntilRetry())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	if cb.Failures() != 0 {
		t.Errorf("Expected failures reset to 0, got %d", cb.Failures())
	}

	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name    string
		succeed bool
		want    State
	}{
		{"probe succeeds", true, StateClosed},
		{"probe fails", false, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(1, time.Minute)
			cb.RecordFailure()

			clock.Advance(time.Minute)
			if !cb.Allow() {
				t.Fatal("Expected probe to be allowed after cooldown")
			}
			if cb.State() != StateHalfOpen {
				t.Fatalf("Expected HALF-OPEN, got %s", cb.State())
			}
			if cb.Allow() {
				t.Error("Expected second request to be blocked in HALF-OPEN")
			}

			if tt.succeed {
				cb.RecordSuccess()
			} else {
				cb.RecordFailure()
			}
			if cb.State() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenTimeout(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	cb.RecordFailure()

	clock.Advance(time.Minute)
	cb.Allow()

	clock.Advance(10 * time.Second)
	if cb.Allow() {
		t.Error("Expected Allow() false after half-open timeout")
	}
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after half-open timeout, got %s", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	cb.RecordFailure()
	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED after reset, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Error("Expected Allow() true after reset")
	}
	if cb.TimeUntilRetry() != 0 {
		t.Errorf("Expected 0 until retry, got %v", cb.TimeUntilRetry())
	}
}

func TestCircuitBreaker_StateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF-OPEN"},
		{State(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := New(Config{Threshold: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cb.Allow()
			if i%2 == 0 {
				cb.RecordFailure()
			} else {
				cb.RecordSuccess()
			}
			_ = cb.State()
		}(i)
	}
	wg.Wait()
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	transitions := make(chan Transition, 8)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New(Config{
		Name:          "token",
		Threshold:     2,
		Cooldown:      time.Minute,
		OnStateChange: func(tr Transition) { transitions <- tr },
	})
	cb.now = clock.Now

	next := func() Transition {
		t.Helper()
		select {
		case tr := <-transitions:
			return tr
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for state change")
			return Transition{}
		}
	}

	cb.RecordFailure()
	cb.RecordFailure()
	tr := next()
	if tr.From != StateClosed || tr.To != StateOpen {
		t.Errorf("Expected CLOSED -> OPEN, got %s -> %s", tr.From, tr.To)
	}
	if tr.Name != "token" || tr.Failures != 2 || tr.Cooldown != time.Minute {
		t.Errorf("Unexpected transition details: %+v", tr)
	}

	clock.Advance(time.Minute)
	cb.Allow()
	if tr := next(); tr.To != StateHalfOpen {
		t.Errorf("Expected HALF-OPEN, got %s", tr.To)
	}

	cb.RecordSuccess()
	if tr := next(); tr.From != StateHalfOpen || tr.To != StateClosed {
		t.Errorf("Expected HALF-OPEN -> CLOSED, got %s -> %s", tr.From, tr.To)
	}

	// Staying closed is not a transition.
	cb.RecordSuccess()
	select {
	case tr := <-transitions:
		t.Errorf("Unexpected transition %s -> %s", tr.From, tr.To)
	case <-time.After(50 * time.Millisecond):
	}
}
