package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(time.Minute, 10)

	if _, _, ok := c.Get("/api/products"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("/api/products", 200, []byte(`[{"id":"p1"}]`))

	status, body, ok := c.Get("/api/products")
	if !ok {
		t.Fatal("expected hit")
	}
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if string(body) != `[{"id":"p1"}]` {
		t.Fatalf("body = %q", body)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(time.Minute, 10)
	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Set("/api/products", 200, []byte(`[]`))

	if _, _, ok := c.Get("/api/products"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(61 * time.Second)
	if _, _, ok := c.Get("/api/products"); ok {
		t.Fatal("expected miss after TTL")
	}

	// A stale read removes the entry.
	if got := c.Stats().Entries; got != 0 {
		t.Fatalf("Entries = %d, want 0", got)
	}
}

func TestFIFOEviction(t *testing.T) {
	c := New(time.Minute, 3)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("/api/products/p%d", i), 200, []byte("{}"))
	}

	// Touch the oldest entry; FIFO must still evict it, not the least
	// recently used one.
	if _, _, ok := c.Get("/api/products/p0"); !ok {
		t.Fatal("expected hit on p0")
	}

	c.Set("/api/products/p3", 200, []byte("{}"))

	if _, _, ok := c.Get("/api/products/p0"); ok {
		t.Fatal("oldest inserted entry should have been evicted")
	}
	for i := 1; i <= 3; i++ {
		if _, _, ok := c.Get(fmt.Sprintf("/api/products/p%d", i)); !ok {
			t.Fatalf("expected hit on p%d", i)
		}
	}
}

func TestSetReplacesExistingKey(t *testing.T) {
	c := New(time.Minute, 10)

	c.Set("/api/products", 200, []byte("old"))
	c.Set("/api/products", 200, []byte("new"))

	_, body, ok := c.Get("/api/products")
	if !ok || string(body) != "new" {
		t.Fatalf("Get = %q, %v, want new, true", body, ok)
	}
	if got := c.Stats().Entries; got != 1 {
		t.Fatalf("Entries = %d, want 1", got)
	}
}

func TestStatsCounters(t *testing.T) {
	c := New(time.Minute, 1)

	c.Get("/a")                   // miss
	c.Set("/a", 200, []byte("1")) // insert
	c.Get("/a")                   // hit
	c.Set("/b", 200, []byte("2")) // evicts /a
	c.Get("/a")                   // miss

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Fatalf("Hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Fatalf("Misses = %d, want 2", stats.Misses)
	}
	if stats.Evictions != 1 {
		t.Fatalf("Evictions = %d, want 1", stats.Evictions)
	}
	if stats.Entries != 1 {
		t.Fatalf("Entries = %d, want 1", stats.Entries)
	}
}

func TestClearKeepsCounters(t *testing.T) {
	c := New(time.Minute, 10)

	c.Set("/a", 200, []byte("1"))
	c.Get("/a")
	c.Clear()

	if _, _, ok := c.Get("/a"); ok {
		t.Fatal("expected miss after clear")
	}
	stats := c.Stats()
	if stats.Entries != 0 {
		t.Fatalf("Entries = %d, want 0", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Fatalf("Hits = %d, want counters preserved", stats.Hits)
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := New(time.Minute, 10)

	c.Set("/api/products", 200, []byte("list"))
	c.Set("/api/products/p1", 200, []byte("one"))
	c.Set("/api/health", 200, []byte("ok"))

	if removed := c.InvalidatePrefix("/api/products"); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, _, ok := c.Get("/api/health"); !ok {
		t.Fatal("unrelated entry should survive")
	}
	if _, _, ok := c.Get("/api/products"); ok {
		t.Fatal("prefixed entry should be gone")
	}
}
