package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ItemType string

const (
	ItemIdea        ItemType = "idea"
	ItemProject     ItemType = "project"
	ItemPullRequest ItemType = "pull_request"
	ItemDeployment  ItemType = "deployment"
	ItemIssue       ItemType = "issue"
)

// BlockSuffix marks synthetic admission-block markers written by the
// WIP engine. They share the lock table and expire via TTL.
const BlockSuffix = "_block"

// WipLock is one unit of in-flight work, keyed by (pod_id, item_id).
type WipLock struct {
	PodID      string     `json:"pod_id"`
	ItemID     string     `json:"item_id"`
	ItemType   string     `json:"lock_type"`
	AcquiredBy string     `json:"acquired_by"`
	AcquiredAt time.Time  `json:"acquired_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// ActiveAt reports whether the lock counts toward WIP at a given
// instant: not released, and not past its expiry. Expiry is evaluated
// lazily at read time; nothing sweeps expired locks.
func (l *WipLock) ActiveAt(now time.Time) bool {
	if l.ReleasedAt != nil {
		return false
	}
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return false
	}
	return true
}

// LockStore is the key-value lock census. The uniqueness constraint on
// (pod_id, item_id) is the conflict enforcement point for acquisition.
type LockStore interface {
	// AcquireLock writes a new lock. It fails with a conflict fault if
	// an active lock already holds the key; released or expired rows
	// under the same key are replaced.
	AcquireLock(ctx context.Context, lock *WipLock) error
	// ReleaseLock sets the release timestamp. Releasing a missing or
	// already-released lock is a no-op, not an error.
	ReleaseLock(ctx context.Context, podID, itemID string, at time.Time) error
	// CountActive recomputes the active census for one pod and item
	// type by scanning the pod's locks.
	CountActive(ctx context.Context, podID, itemType string, now time.Time) (int, error)
	// LocksForPod returns every lock row for a pod, released and
	// expired included.
	LocksForPod(ctx context.Context, podID string) ([]*WipLock, error)
	// ActiveLocks returns all active locks across pods, for audits and
	// report aggregation.
	ActiveLocks(ctx context.Context, now time.Time) ([]*WipLock, error)
}

// --- Relational reporting types ---

type StageTransition struct {
	ID          uuid.UUID `json:"id"`
	ProjectName string    `json:"project_name"`
	FromStage   string    `json:"from_stage"`
	ToStage     string    `json:"to_stage"`
	CriteriaMet []string  `json:"criteria_met"`
	ApprovedAt  time.Time `json:"approved_at"`
	PodName     string    `json:"pod_name,omitempty"`
}

type Activity struct {
	ID          uuid.UUID              `json:"id"`
	Actor       string                 `json:"actor"`
	Action      string                 `json:"action"`
	ProjectName string                 `json:"project_name,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

type BlockedProject struct {
	Name         string    `json:"name"`
	CurrentStage string    `json:"current_stage"`
	PodName      string    `json:"pod_name"`
	LeadName     string    `json:"lead_name,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
	DaysBlocked  int       `json:"days_blocked"`
}

type DemoCandidate struct {
	Name         string    `json:"name"`
	CurrentStage string    `json:"current_stage"`
	PodName      string    `json:"pod_name"`
	DeployedURL  string    `json:"deployed_url,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PodSummary struct {
	PodName             string  `json:"pod_name"`
	TransitionsThisWeek int     `json:"transitions_this_week"`
	CompletedProjects   int     `json:"completed_projects"`
	TotalActiveProjects int     `json:"total_active_projects"`
	HealthScore         float64 `json:"health_score"`
}

// ReportStore serves the daily/weekly aggregator and the bookkeeping
// writes the processor performs on approved transitions and detected
// activity.
type ReportStore interface {
	RecordStageTransition(ctx context.Context, t *StageTransition) error
	TouchProject(ctx context.Context, name, podName string) error
	RecordActivity(ctx context.Context, a *Activity) error

	BlockedProjects(ctx context.Context) ([]*BlockedProject, error)
	ActiveImpediments(ctx context.Context) ([]*Activity, error)
	WeeklyTransitions(ctx context.Context) ([]*StageTransition, error)
	DemoCandidates(ctx context.Context) ([]*DemoCandidate, error)
	PodSummaries(ctx context.Context) ([]*PodSummary, error)
}

// Store is the full persistence surface backed by Postgres.
type Store interface {
	LockStore
	ReportStore
	Ping(ctx context.Context) error
	Close() error
}
