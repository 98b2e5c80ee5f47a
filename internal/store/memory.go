package store

import (
	"context"
	"sync"
	"time"

	"github.com/closlabs/flowgate/internal/fault"
)

// MemoryLockStore is a mutex-guarded LockStore used in tests.
type MemoryLockStore struct {
	mu    sync.Mutex
	locks map[string]*WipLock
}

func NewMemoryLockStore() *MemoryLockStore {
	return &MemoryLockStore{locks: make(map[string]*WipLock)}
}

func lockKey(podID, itemID string) string {
	return podID + "/" + itemID
}

func (m *MemoryLockStore) AcquireLock(ctx context.Context, lock *WipLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lockKey(lock.PodID, lock.ItemID)
	if existing, ok := m.locks[key]; ok && existing.ActiveAt(lock.AcquiredAt) {
		return fault.New(fault.Conflict, "active lock exists for %s/%s", lock.PodID, lock.ItemID)
	}
	cp := *lock
	m.locks[key] = &cp
	return nil
}

func (m *MemoryLockStore) ReleaseLock(ctx context.Context, podID, itemID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, ok := m.locks[lockKey(podID, itemID)]; ok && lock.ReleasedAt == nil {
		t := at
		lock.ReleasedAt = &t
	}
	return nil
}

func (m *MemoryLockStore) CountActive(ctx context.Context, podID, itemType string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, lock := range m.locks {
		if lock.PodID == podID && lock.ItemType == itemType && lock.ActiveAt(now) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryLockStore) LocksForPod(ctx context.Context, podID string) ([]*WipLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*WipLock
	for _, lock := range m.locks {
		if lock.PodID == podID {
			cp := *lock
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryLockStore) ActiveLocks(ctx context.Context, now time.Time) ([]*WipLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*WipLock
	for _, lock := range m.locks {
		if lock.ActiveAt(now) {
			cp := *lock
			out = append(out, &cp)
		}
	}
	return out, nil
}
