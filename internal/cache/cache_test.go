package cache

import (
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := New(time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("unexpected hit")
	}

	c.Set("k", 42)
	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("got %v, %v", v, ok)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not dropped, len=%d", c.Len())
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := New(time.Minute)
	c.Set("rows/sheet-a/Bookings", 1)
	c.Set("rows/sheet-a/Tours", 2)
	c.Set("rows/sheet-b/Bookings", 3)

	c.Invalidate("rows/sheet-a/Tours")
	if _, ok := c.Get("rows/sheet-a/Tours"); ok {
		t.Fatal("invalidated key returned")
	}

	c.InvalidatePrefix("rows/sheet-a/")
	if _, ok := c.Get("rows/sheet-a/Bookings"); ok {
		t.Fatal("prefix invalidation missed a key")
	}
	if _, ok := c.Get("rows/sheet-b/Bookings"); !ok {
		t.Fatal("prefix invalidation was too broad")
	}
}
