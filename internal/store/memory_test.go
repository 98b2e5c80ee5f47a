package store

import (
	"context"
	"testing"
	"time"

	"github.com/closlabs/flowgate/internal/fault"
)

var (
	t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func newLock(podID, itemID, itemType string, at time.Time, ttl time.Duration) *WipLock {
	expires := at.Add(ttl)
	return &WipLock{
		PodID:      podID,
		ItemID:     itemID,
		ItemType:   itemType,
		AcquiredBy: "dev",
		AcquiredAt: at,
		ExpiresAt:  &expires,
	}
}

func TestMemoryAcquireAndCount(t *testing.T) {
	m := NewMemoryLockStore()
	ctx := context.Background()

	if err := m.AcquireLock(ctx, newLock("Ratio", "a", "project", t0, 24*time.Hour)); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.AcquireLock(ctx, newLock("Ratio", "b", "project", t0, 24*time.Hour)); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.AcquireLock(ctx, newLock("Ratio", "c", "pull_request", t0, 24*time.Hour)); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	count, err := m.CountActive(ctx, "Ratio", "project", t1)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d", count)
	}
}

func TestMemoryDuplicateActiveConflicts(t *testing.T) {
	m := NewMemoryLockStore()
	ctx := context.Background()

	if err := m.AcquireLock(ctx, newLock("Ratio", "a", "project", t0, 24*time.Hour)); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	err := m.AcquireLock(ctx, newLock("Ratio", "a", "project", t1, 24*time.Hour))
	if !fault.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMemoryReplacesExpiredLock(t *testing.T) {
	m := NewMemoryLockStore()
	ctx := context.Background()

	if err := m.AcquireLock(ctx, newLock("Ratio", "a", "project", t0, time.Minute)); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// An hour later the first lock has expired; the key is free.
	if err := m.AcquireLock(ctx, newLock("Ratio", "a", "project", t1, time.Minute)); err != nil {
		t.Fatalf("re-acquire expired: %v", err)
	}
}

func TestMemoryReleaseIsIdempotent(t *testing.T) {
	m := NewMemoryLockStore()
	ctx := context.Background()

	if err := m.ReleaseLock(ctx, "Ratio", "missing", t0); err != nil {
		t.Fatalf("release missing: %v", err)
	}

	if err := m.AcquireLock(ctx, newLock("Ratio", "a", "project", t0, 24*time.Hour)); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.ReleaseLock(ctx, "Ratio", "a", t0); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := m.ReleaseLock(ctx, "Ratio", "a", t1); err != nil {
		t.Fatalf("second release: %v", err)
	}

	count, err := m.CountActive(ctx, "Ratio", "project", t1)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d", count)
	}
}

func TestMemoryActiveLocksAcrossPods(t *testing.T) {
	m := NewMemoryLockStore()
	ctx := context.Background()

	_ = m.AcquireLock(ctx, newLock("Ratio", "a", "project", t0, 24*time.Hour))
	_ = m.AcquireLock(ctx, newLock("Nanda", "b", "pull_request", t0, 24*time.Hour))
	_ = m.ReleaseLock(ctx, "Nanda", "b", t0)

	active, err := m.ActiveLocks(ctx, t1)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].PodID != "Ratio" {
		t.Fatalf("active = %+v", active)
	}
}

func TestActiveAt(t *testing.T) {
	lock := newLock("Ratio", "a", "project", t0, time.Hour)
	if !lock.ActiveAt(t0.Add(time.Minute)) {
		t.Fatal("fresh lock must be active")
	}
	if lock.ActiveAt(t0.Add(2 * time.Hour)) {
		t.Fatal("expired lock must be inactive")
	}

	released := t0.Add(time.Minute)
	lock.ReleasedAt = &released
	if lock.ActiveAt(t0.Add(time.Minute)) {
		t.Fatal("released lock must be inactive")
	}
}
