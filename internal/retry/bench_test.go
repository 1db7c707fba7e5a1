package retry

import (
	"fmt"
	"syscall"
	"testing"
	"time"
)

// BenchmarkBackoff_Delay measures computing one pause.
func BenchmarkBackoff_Delay(b *testing.B) {
	bo := DefaultBackoff()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bo.Delay(i%10 + 1)
	}
}

// BenchmarkCircuitBreaker_ClosedPath benchmarks the fast path when the
// circuit is closed and connections succeed.
func BenchmarkCircuitBreaker_ClosedPath(b *testing.B) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if cb.Allow() == nil {
			cb.Success()
		}
	}
}

// BenchmarkCircuitBreaker_OpenPath benchmarks rejection when open.
func BenchmarkCircuitBreaker_OpenPath(b *testing.B) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
		HalfOpenMax:  1,
	})
	// Trip the circuit.
	cb.Decide(fmt.Errorf("fail"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cb.Allow() //nolint:errcheck
	}
}

// BenchmarkAny measures a composed decision on the hot path.
func BenchmarkAny(b *testing.B) {
	d := Any(StopOnRefused(), StopUnlessRetryable(), Never())
	err := fmt.Errorf("dial: %w", syscall.ECONNRESET)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = d(err)
	}
}

// BenchmarkJitter measures the jitter helper without backoff overhead.
func BenchmarkJitter(b *testing.B) {
	d := 100 * time.Millisecond
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = addJitter(d)
	}
}
