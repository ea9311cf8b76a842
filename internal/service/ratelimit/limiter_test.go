package ratelimit

import (
	"testing"
	"time"
)

func TestAllowBurstThenDeny(t *testing.T) {
	l := New()
	clock := time.Unix(0, 0)
	l.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if !l.Allow("cycle", 3, 1) {
			t.Fatalf("request %d inside burst should pass", i)
		}
	}
	if l.Allow("cycle", 3, 1) {
		t.Fatalf("request beyond burst should be denied")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	l := New()
	clock := time.Unix(0, 0)
	l.now = func() time.Time { return clock }

	if !l.Allow("cycle", 1, 2) {
		t.Fatalf("first request should pass")
	}
	if l.Allow("cycle", 1, 2) {
		t.Fatalf("bucket should be empty")
	}
	clock = clock.Add(time.Second)
	if !l.Allow("cycle", 1, 2) {
		t.Fatalf("refilled bucket should pass")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	clock := time.Unix(0, 0)
	l.now = func() time.Time { return clock }

	if !l.Allow("a", 1, 1) {
		t.Fatalf("key a should pass")
	}
	if l.Allow("a", 1, 1) {
		t.Fatalf("key a should be exhausted")
	}
	if !l.Allow("b", 1, 1) {
		t.Fatalf("key b must not share a bucket with a")
	}
}
