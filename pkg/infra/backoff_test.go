package infra

import (
	"testing"
	"time"
)

func TestBackoffStaysWithinBounds(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 2*time.Second, 2.0)

	for i := 0; i < 20; i++ {
		wait := b.Next()
		if wait < 100*time.Millisecond {
			t.Fatalf("attempt %d: wait %v below minimum", i, wait)
		}
		// The cap plus maximum positive jitter bounds every wait.
		if wait > 2*time.Second+400*time.Millisecond {
			t.Fatalf("attempt %d: wait %v above jittered maximum", i, wait)
		}
	}
	if b.Attempts() != 20 {
		t.Fatalf("attempts = %d, want 20", b.Attempts())
	}
}

func TestBackoffGrows(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 10*time.Second, 2.0)

	b.Next()
	b.Next()
	b.Next()
	// After three steps the base delay is 800ms; even maximum negative
	// jitter keeps the fourth wait well above the first.
	wait := b.Next()
	if wait < 600*time.Millisecond {
		t.Fatalf("fourth wait %v, want growth beyond 600ms", wait)
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 10*time.Second, 2.0)

	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()

	if b.Attempts() != 0 {
		t.Fatalf("attempts after reset = %d, want 0", b.Attempts())
	}
	wait := b.Next()
	if wait > 120*time.Millisecond {
		t.Fatalf("first wait after reset = %v, want near the minimum", wait)
	}
}
