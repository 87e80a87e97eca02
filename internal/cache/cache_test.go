package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"groceryDelivery/models"
)

func TestMemoryStore_Expiry(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("get = %q, %v", got, err)
	}
	now = now.Add(time.Minute)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryStore_NoTTLAndDelete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("v"), 0)
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = m.Delete(ctx, "k")
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryStore_IncrKeepsFirstExpiry(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := m.Incr(ctx, "c", time.Minute)
		if err != nil || n != want {
			t.Fatalf("incr = %d, %v; want %d", n, err, want)
		}
		now = now.Add(15 * time.Second)
	}
	now = now.Add(15 * time.Second)
	if n, _ := m.Incr(ctx, "c", time.Minute); n != 1 {
		t.Fatalf("counter should restart after the first expiry, got %d", n)
	}

	_ = m.Set(ctx, "s", []byte("abc"), 0)
	if _, err := m.Incr(ctx, "s", 0); err == nil {
		t.Fatal("incr on a non-integer should fail")
	}
}

func TestLocationCache_RoundTripAndOverwrite(t *testing.T) {
	ctx := context.Background()
	c := NewLocationCache(NewMemoryStore(), 0)

	if fix, err := c.AgentFix(ctx, 1); err != nil || fix != nil {
		t.Fatalf("expected empty cache, got %+v, %v", fix, err)
	}
	_ = c.SetAgentFix(ctx, 1, models.LocationFix{Lat: 1, Lng: 2, TimestampMs: 10})
	_ = c.SetAgentFix(ctx, 1, models.LocationFix{Lat: 3, Lng: 4, TimestampMs: 20})
	fix, err := c.AgentFix(ctx, 1)
	if err != nil || fix == nil {
		t.Fatalf("agent fix: %+v, %v", fix, err)
	}
	if fix.Lat != 3 || fix.Lng != 4 || fix.TimestampMs != 20 {
		t.Fatalf("expected latest fix, got %+v", fix)
	}

	_ = c.SetOrderFix(ctx, 9, *fix)
	if got, _ := c.OrderFix(ctx, 9); got == nil || got.Lat != 3 {
		t.Fatalf("order fix: %+v", got)
	}
	_ = c.ClearOrder(ctx, 9)
	if got, _ := c.OrderFix(ctx, 9); got != nil {
		t.Fatalf("expected cleared order fix")
	}
}

func TestLocationCache_MalformedEntryIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "agent:5", []byte("{not json"), 0)
	c := NewLocationCache(store, 0)
	fix, err := c.AgentFix(ctx, 5)
	if err != nil || fix != nil {
		t.Fatalf("expected malformed entry to read as absent, got %+v, %v", fix, err)
	}
}
