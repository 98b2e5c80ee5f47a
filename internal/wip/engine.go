// Package wip enforces per-pod work-in-progress ceilings over the lock
// census. The engine never blocks an acquisition on a full pod: limits
// are advisory, violations are detected after the fact and published
// for downstream enforcement.
package wip

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/closlabs/flowgate/internal/config"
	"github.com/closlabs/flowgate/internal/events"
	"github.com/closlabs/flowgate/internal/store"
)

type Engine struct {
	locks     store.LockStore
	limitsFor func(podID string) map[string]int
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewEngine(locks store.LockStore, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		locks:     locks,
		limitsFor: cfg.LimitsFor,
		ttl:       cfg.LockTTL(),
		now:       time.Now,
		logger:    logger,
	}
}

// limitFor resolves the ceiling for an item type within a pod. Lock
// rows carry singular type names while the limits table keys plurals,
// so the lookup falls back to the pluralized key. A missing entry
// means the type is unbounded.
func (e *Engine) limitFor(podID, itemType string) (int, bool) {
	limits := e.limitsFor(podID)
	if v, ok := limits[itemType]; ok {
		return v, true
	}
	if v, ok := limits[itemType+"s"]; ok {
		return v, true
	}
	return 0, false
}

// Acquire writes the lock and recounts the pod's census for the item
// type. The count is recomputed from the store on every call rather
// than kept as a running tally, so a lost event cannot skew it. When
// the fresh count exceeds the ceiling the exceeded event is returned
// for publication; the lock itself still stands.
func (e *Engine) Acquire(ctx context.Context, ev events.WipLockAcquired) (*events.Derived, error) {
	now := e.now()
	expires := now.Add(e.ttl)

	lock := &store.WipLock{
		PodID:      ev.PodID,
		ItemID:     ev.ItemID,
		ItemType:   ev.ItemType,
		AcquiredBy: ev.UserID,
		AcquiredAt: now,
		ExpiresAt:  &expires,
	}
	if err := e.locks.AcquireLock(ctx, lock); err != nil {
		return nil, err
	}

	count, err := e.locks.CountActive(ctx, ev.PodID, ev.ItemType, now)
	if err != nil {
		return nil, err
	}

	limit, bounded := e.limitFor(ev.PodID, ev.ItemType)
	if bounded && count > limit {
		e.logger.Warn("wip limit exceeded",
			"pod_id", ev.PodID, "item_type", ev.ItemType,
			"count", count, "limit", limit)
		return &events.Derived{
			Kind:   events.KindWipLimitExceeded,
			Source: events.SourceWipLimits,
			Detail: events.WipLimitExceeded{
				PodID:        ev.PodID,
				ItemType:     ev.ItemType,
				CurrentCount: count,
				Limit:        limit,
			},
		}, nil
	}
	return nil, nil
}

// Release marks the lock released and reports freed capacity when the
// pod drops back to or under its ceiling. Releasing an unknown lock is
// not an error; the census is recomputed either way.
func (e *Engine) Release(ctx context.Context, ev events.WipLockReleased) (*events.Derived, error) {
	now := e.now()
	if err := e.locks.ReleaseLock(ctx, ev.PodID, ev.ItemID, now); err != nil {
		return nil, err
	}

	count, err := e.locks.CountActive(ctx, ev.PodID, ev.ItemType, now)
	if err != nil {
		return nil, err
	}

	limit, bounded := e.limitFor(ev.PodID, ev.ItemType)
	if bounded && count <= limit {
		return &events.Derived{
			Kind:   events.KindWipCapacityAvailable,
			Source: events.SourceWipLimits,
			Detail: events.WipCapacityAvailable{
				PodID:        ev.PodID,
				ItemType:     ev.ItemType,
				CurrentCount: count,
				Limit:        limit,
				AvailableAt:  now,
			},
		}, nil
	}
	return nil, nil
}

// Census is a point-in-time view of one pod's active lock counts
// against its ceilings.
type Census struct {
	PodID      string                `json:"pod_id"`
	Counts     map[string]int        `json:"counts"`
	Limits     map[string]int        `json:"limits"`
	Violations []events.WipViolation `json:"violations"`
}

// Snapshot recounts a pod's active locks by item type and lists every
// type over its ceiling.
func (e *Engine) Snapshot(ctx context.Context, podID string) (*Census, error) {
	now := e.now()
	locks, err := e.locks.LocksForPod(ctx, podID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, l := range locks {
		if l.ActiveAt(now) {
			counts[l.ItemType]++
		}
	}

	census := &Census{
		PodID:      podID,
		Counts:     counts,
		Limits:     e.limitsFor(podID),
		Violations: []events.WipViolation{},
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		limit, bounded := e.limitFor(podID, t)
		if bounded && counts[t] > limit {
			census.Violations = append(census.Violations, events.WipViolation{
				ItemType:     t,
				CurrentCount: counts[t],
				Limit:        limit,
			})
		}
	}
	return census, nil
}

// Check audits a pod and emits a violations event when any item type
// is over its ceiling. Pods within limits produce nothing.
func (e *Engine) Check(ctx context.Context, podID string) (*events.Derived, error) {
	census, err := e.Snapshot(ctx, podID)
	if err != nil {
		return nil, err
	}
	if len(census.Violations) == 0 {
		return nil, nil
	}
	return &events.Derived{
		Kind:   events.KindWipViolationsDetected,
		Source: events.SourceWipLimits,
		Detail: events.WipViolationsDetected{
			PodID:      podID,
			Violations: census.Violations,
			DetectedAt: e.now(),
		},
	}, nil
}

// EnforceExceeded records a block marker for an exceeded pod and item
// type. The marker is a synthetic lock held by the system: it shares
// the lock table, carries its own type so it never counts toward
// limit checks, and expires with the standard TTL.
func (e *Engine) EnforceExceeded(ctx context.Context, ev events.WipLimitExceeded) (*events.Derived, error) {
	now := e.now()
	expires := now.Add(e.ttl)
	reason := fmt.Sprintf("WIP limit exceeded: %d/%d", ev.CurrentCount, ev.Limit)

	marker := &store.WipLock{
		PodID:      ev.PodID,
		ItemID:     fmt.Sprintf("%s%s_%s", ev.ItemType, store.BlockSuffix, uuid.NewString()[:8]),
		ItemType:   ev.ItemType + store.BlockSuffix,
		AcquiredBy: "system",
		AcquiredAt: now,
		ExpiresAt:  &expires,
		Reason:     reason,
	}
	if err := e.locks.AcquireLock(ctx, marker); err != nil {
		return nil, err
	}

	return &events.Derived{
		Kind:   events.KindWipLimitEnforced,
		Source: events.SourceWipLimits,
		Detail: events.WipLimitEnforced{
			PodID:     ev.PodID,
			ItemType:  ev.ItemType,
			Action:    "block_new_work",
			BlockedAt: now,
			Reason:    reason,
		},
	}, nil
}
