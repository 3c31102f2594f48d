// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rateguard

import (
	"sync"
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	g := New(3, 15*time.Minute, true)

	for i := 0; i < 3; i++ {
		if !g.Allow("1.2.3.4") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if g.Allow("1.2.3.4") {
		t.Error("fourth attempt should be denied")
	}
}

func TestDeniedAttemptsNotRecorded(t *testing.T) {
	g := New(2, time.Minute, true)

	g.Allow("k")
	g.Allow("k")
	for i := 0; i < 10; i++ {
		g.Allow("k")
	}
	if got := g.Remaining("k"); got != 0 {
		t.Errorf("expected 0 remaining, got %d", got)
	}
}

func TestKeysIndependent(t *testing.T) {
	g := New(1, time.Minute, true)

	if !g.Allow("a") {
		t.Error("first key should be allowed")
	}
	if !g.Allow("b") {
		t.Error("second key should be allowed")
	}
	if g.Allow("a") {
		t.Error("first key should now be denied")
	}
}

func TestWindowExpiry(t *testing.T) {
	g := New(2, 15*time.Minute, true)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }

	g.Allow("ip")
	g.Allow("ip")
	if g.Allow("ip") {
		t.Error("expected denial inside the window")
	}

	// Advance past the window
	current = current.Add(16 * time.Minute)
	if !g.Allow("ip") {
		t.Error("expected allow after the window expired")
	}
}

func TestDisabledGuardAllowsEverything(t *testing.T) {
	g := New(1, time.Minute, false)

	for i := 0; i < 100; i++ {
		if !g.Allow("ip") {
			t.Fatal("disabled guard must never deny")
		}
	}
	if got := g.Remaining("ip"); got != 1 {
		t.Errorf("disabled guard should report full remaining, got %d", got)
	}
}

func TestReset(t *testing.T) {
	g := New(1, time.Minute, true)

	g.Allow("ip")
	if g.Allow("ip") {
		t.Error("expected denial before reset")
	}
	g.Reset("ip")
	if !g.Allow("ip") {
		t.Error("expected allow after reset")
	}
}

func TestConcurrentAllow(t *testing.T) {
	g := New(50, time.Minute, true)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- g.Allow("shared")
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 50 {
		t.Errorf("expected exactly 50 allowed, got %d", count)
	}
}
