package ratelimit

import (
	"testing"
	"time"
)

func TestBurstThenDenied(t *testing.T) {
	l := NewInMemoryLimiter(1, time.Hour, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("viewer-1") {
			t.Fatalf("gesture %d should be allowed within burst", i+1)
		}
	}
	if l.Allow("viewer-1") {
		t.Fatal("gesture beyond burst should be denied")
	}
}

func TestViewersIsolated(t *testing.T) {
	l := NewInMemoryLimiter(1, time.Hour, 1)

	if !l.Allow("viewer-1") {
		t.Fatal("first gesture for viewer-1 should be allowed")
	}
	if !l.Allow("viewer-2") {
		t.Fatal("viewer-2 must not be throttled by viewer-1's gestures")
	}
	if l.Allow("viewer-1") {
		t.Fatal("viewer-1 should be throttled")
	}
}
