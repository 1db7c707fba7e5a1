package metrics

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"goattempt/attempt"
)

// BenchmarkCollector_Attempt measures the overhead of recording one
// timed-out attempt (atomic operations plus the last-error lock).
func BenchmarkCollector_Attempt(b *testing.B) {
	c := New()
	rec := attempt.Record{Index: 1, Endpoint: "h:1", Started: time.Now(), Err: attempt.ErrTimedOut}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.AttemptStarted(rec)
		c.AttemptFinished(rec)
	}
}

// BenchmarkCollector_BytesSent measures byte-counter overhead.
func BenchmarkCollector_BytesSent(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.BytesSent(32768)
	}
}

// BenchmarkCollector_Snapshot measures the cost of taking a snapshot.
func BenchmarkCollector_Snapshot(b *testing.B) {
	c := New()
	c.SessionStarted(uuid.New(), "h:1")
	c.BytesSent(1024)
	c.RecordError("test")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Snapshot()
	}
}

// BenchmarkCollector_JSON measures JSON export overhead.
func BenchmarkCollector_JSON(b *testing.B) {
	c := New()
	c.SessionStarted(uuid.New(), "h:1")
	c.BytesSent(1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.JSON()
	}
}

// BenchmarkNilCollector verifies nil-safe no-ops have zero overhead.
func BenchmarkNilCollector(b *testing.B) {
	var c *Collector
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.AttemptStarted(attempt.Record{})
		c.BytesSent(32768)
		c.RecordError("test")
	}
}
