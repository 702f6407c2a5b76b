package seencache

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "seen.db"), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestMarkAndSeen(t *testing.T) {
	cache := openTestCache(t, Options{})

	seen, err := cache.Seen("https://gleam.io/abc")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatalf("expected unmarked link to be unseen")
	}

	if err := cache.Mark("https://gleam.io/abc"); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	seen, err = cache.Seen("https://gleam.io/abc")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Fatalf("expected marked link to be seen")
	}

	seen, err = cache.Seen("https://gleam.io/other")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatalf("expected different link to be unseen")
	}
}

func TestSeenExpiresAfterTTL(t *testing.T) {
	cache := openTestCache(t, Options{TTL: 50 * time.Millisecond})

	if err := cache.Mark("https://gleam.io/short-lived"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)

	seen, err := cache.Seen("https://gleam.io/short-lived")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatalf("expected expired link to be unseen")
	}
}

func TestCleanupRemovesExpiredEntries(t *testing.T) {
	cache := openTestCache(t, Options{TTL: 50 * time.Millisecond, CleanupInterval: time.Hour})

	if err := cache.Mark("https://gleam.io/stale"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)

	// Force the cadence check to consider cleanup due.
	cache.lastCleanup.Store(time.Now().Add(-2 * time.Hour).Unix())
	if err := cache.maybeCleanupExpired(time.Now()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	seen, err := cache.Seen("https://gleam.io/stale")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatalf("expected cleaned-up link to be unseen")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache

	if err := cache.Mark("https://gleam.io/x"); err != nil {
		t.Fatalf("Mark on nil cache: %v", err)
	}
	seen, err := cache.Seen("https://gleam.io/x")
	if err != nil {
		t.Fatalf("Seen on nil cache: %v", err)
	}
	if seen {
		t.Fatalf("nil cache should never report seen")
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close on nil cache: %v", err)
	}
}
