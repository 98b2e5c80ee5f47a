package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/closlabs/flowgate/internal/fault"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate bootstraps the schema from the embedded migrations. Safe to
// run on every start.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database for migration: %w", err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fault.Wrap(fault.TransientStore, err, "ping")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- LockStore ---

const lockColumns = `pod_id, item_id, item_type, acquired_by, acquired_at, released_at, expires_at, reason`

// AcquireLock inserts the lock, replacing a released or expired row
// under the same key in the same statement. Zero rows affected means
// an active lock holds the key: the uniqueness constraint, not an
// engine-side check, is what rejects the duplicate.
func (s *PostgresStore) AcquireLock(ctx context.Context, lock *WipLock) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO wip_locks (pod_id, item_id, item_type, acquired_by, acquired_at, expires_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pod_id, item_id) DO UPDATE SET
			item_type = EXCLUDED.item_type,
			acquired_by = EXCLUDED.acquired_by,
			acquired_at = EXCLUDED.acquired_at,
			released_at = NULL,
			expires_at = EXCLUDED.expires_at,
			reason = EXCLUDED.reason
		WHERE wip_locks.released_at IS NOT NULL
		   OR (wip_locks.expires_at IS NOT NULL AND wip_locks.expires_at <= EXCLUDED.acquired_at)`,
		lock.PodID, lock.ItemID, lock.ItemType, lock.AcquiredBy, lock.AcquiredAt, lock.ExpiresAt, nullString(lock.Reason),
	)
	if err != nil {
		return fault.Wrap(fault.TransientStore, err, "acquire lock %s/%s", lock.PodID, lock.ItemID)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.Conflict, "active lock exists for %s/%s", lock.PodID, lock.ItemID)
	}
	return nil
}

func (s *PostgresStore) ReleaseLock(ctx context.Context, podID, itemID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE wip_locks SET released_at = $3
		WHERE pod_id = $1 AND item_id = $2 AND released_at IS NULL`,
		podID, itemID, at,
	)
	if err != nil {
		return fault.Wrap(fault.TransientStore, err, "release lock %s/%s", podID, itemID)
	}
	return nil
}

func (s *PostgresStore) CountActive(ctx context.Context, podID, itemType string, now time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM wip_locks
		WHERE pod_id = $1 AND item_type = $2
		  AND released_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $3)`,
		podID, itemType, now,
	).Scan(&count)
	if err != nil {
		return 0, fault.Wrap(fault.TransientStore, err, "count active locks for %s/%s", podID, itemType)
	}
	return count, nil
}

func (s *PostgresStore) LocksForPod(ctx context.Context, podID string) ([]*WipLock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+lockColumns+` FROM wip_locks
		WHERE pod_id = $1
		ORDER BY acquired_at ASC`, podID)
	if err != nil {
		return nil, fault.Wrap(fault.TransientStore, err, "locks for pod %s", podID)
	}
	defer rows.Close()
	return scanLocks(rows)
}

func (s *PostgresStore) ActiveLocks(ctx context.Context, now time.Time) ([]*WipLock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+lockColumns+` FROM wip_locks
		WHERE released_at IS NULL AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY pod_id, acquired_at ASC`, now)
	if err != nil {
		return nil, fault.Wrap(fault.TransientStore, err, "active locks")
	}
	defer rows.Close()
	return scanLocks(rows)
}

func scanLocks(rows pgx.Rows) ([]*WipLock, error) {
	var locks []*WipLock
	for rows.Next() {
		l := &WipLock{}
		var reason sql.NullString
		if err := rows.Scan(
			&l.PodID, &l.ItemID, &l.ItemType, &l.AcquiredBy,
			&l.AcquiredAt, &l.ReleasedAt, &l.ExpiresAt, &reason,
		); err != nil {
			return nil, fault.Wrap(fault.TransientStore, err, "scan lock")
		}
		if reason.Valid {
			l.Reason = reason.String
		}
		locks = append(locks, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.TransientStore, err, "iterate locks")
	}
	return locks, nil
}

// --- ReportStore ---

func (s *PostgresStore) RecordStageTransition(ctx context.Context, t *StageTransition) error {
	criteriaJSON, _ := json.Marshal(t.CriteriaMet)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO stage_transitions (project_name, from_stage, to_stage, criteria_met, approved_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		t.ProjectName, nullString(t.FromStage), t.ToStage, criteriaJSON, t.ApprovedAt,
	).Scan(&t.ID)
	if err != nil {
		return fault.Wrap(fault.TransientStore, err, "record transition for %s", t.ProjectName)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO projects (name, pod_name, current_stage, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (name) DO UPDATE SET current_stage = $3, updated_at = NOW()`,
		t.ProjectName, nullString(t.PodName), t.ToStage,
	)
	if err != nil {
		return fault.Wrap(fault.TransientStore, err, "advance project %s", t.ProjectName)
	}
	return nil
}

func (s *PostgresStore) TouchProject(ctx context.Context, name, podName string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (name, pod_name, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET updated_at = NOW()`,
		name, nullString(podName),
	)
	if err != nil {
		return fault.Wrap(fault.TransientStore, err, "touch project %s", name)
	}
	return nil
}

func (s *PostgresStore) RecordActivity(ctx context.Context, a *Activity) error {
	detailsJSON, _ := json.Marshal(a.Details)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO activities (actor, action, project_name, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		a.Actor, a.Action, nullString(a.ProjectName), detailsJSON,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fault.Wrap(fault.TransientStore, err, "record activity %s", a.Action)
	}
	return nil
}

func (s *PostgresStore) BlockedProjects(ctx context.Context) ([]*BlockedProject, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.name, p.current_stage, COALESCE(p.pod_name, ''), COALESCE(pod.lead_name, ''), p.updated_at
		FROM projects p
		LEFT JOIN pods pod ON p.pod_name = pod.name
		WHERE p.updated_at < NOW() - INTERVAL '3 days'
		  AND p.current_stage != 'monitoring'
		ORDER BY p.updated_at ASC`)
	if err != nil {
		return nil, fault.Wrap(fault.TransientStore, err, "blocked projects")
	}
	defer rows.Close()

	var blocked []*BlockedProject
	now := time.Now()
	for rows.Next() {
		b := &BlockedProject{}
		if err := rows.Scan(&b.Name, &b.CurrentStage, &b.PodName, &b.LeadName, &b.LastUpdated); err != nil {
			return nil, fault.Wrap(fault.TransientStore, err, "scan blocked project")
		}
		b.DaysBlocked = int(now.Sub(b.LastUpdated).Hours() / 24)
		blocked = append(blocked, b)
	}
	return blocked, rows.Err()
}

func (s *PostgresStore) ActiveImpediments(ctx context.Context) ([]*Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor, action, COALESCE(project_name, ''), details, created_at
		FROM activities
		WHERE (action ILIKE '%impediment%' OR action ILIKE '%blocked%')
		  AND created_at > NOW() - INTERVAL '7 days'
		ORDER BY created_at DESC
		LIMIT 50`)
	if err != nil {
		return nil, fault.Wrap(fault.TransientStore, err, "active impediments")
	}
	defer rows.Close()

	var acts []*Activity
	for rows.Next() {
		a := &Activity{}
		var detailsJSON []byte
		if err := rows.Scan(&a.ID, &a.Actor, &a.Action, &a.ProjectName, &detailsJSON, &a.CreatedAt); err != nil {
			return nil, fault.Wrap(fault.TransientStore, err, "scan impediment")
		}
		if detailsJSON != nil {
			_ = json.Unmarshal(detailsJSON, &a.Details)
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

func (s *PostgresStore) WeeklyTransitions(ctx context.Context) ([]*StageTransition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT st.id, st.project_name, COALESCE(st.from_stage, ''), st.to_stage,
		       st.criteria_met, st.approved_at, COALESCE(p.pod_name, '')
		FROM stage_transitions st
		LEFT JOIN projects p ON st.project_name = p.name
		WHERE st.approved_at > NOW() - INTERVAL '7 days'
		ORDER BY st.approved_at DESC`)
	if err != nil {
		return nil, fault.Wrap(fault.TransientStore, err, "weekly transitions")
	}
	defer rows.Close()

	var transitions []*StageTransition
	for rows.Next() {
		t := &StageTransition{}
		var criteriaJSON []byte
		if err := rows.Scan(&t.ID, &t.ProjectName, &t.FromStage, &t.ToStage, &criteriaJSON, &t.ApprovedAt, &t.PodName); err != nil {
			return nil, fault.Wrap(fault.TransientStore, err, "scan transition")
		}
		if criteriaJSON != nil {
			_ = json.Unmarshal(criteriaJSON, &t.CriteriaMet)
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

func (s *PostgresStore) DemoCandidates(ctx context.Context) ([]*DemoCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, current_stage, COALESCE(pod_name, ''), COALESCE(deployed_url, ''), updated_at
		FROM projects
		WHERE current_stage IN ('deployment', 'monitoring')
		  AND updated_at > NOW() - INTERVAL '14 days'
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fault.Wrap(fault.TransientStore, err, "demo candidates")
	}
	defer rows.Close()

	var candidates []*DemoCandidate
	for rows.Next() {
		c := &DemoCandidate{}
		if err := rows.Scan(&c.Name, &c.CurrentStage, &c.PodName, &c.DeployedURL, &c.UpdatedAt); err != nil {
			return nil, fault.Wrap(fault.TransientStore, err, "scan demo candidate")
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (s *PostgresStore) PodSummaries(ctx context.Context) ([]*PodSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pod.name,
			COUNT(st.id) FILTER (WHERE st.approved_at > NOW() - INTERVAL '7 days'),
			COUNT(DISTINCT p.id) FILTER (WHERE p.current_stage = 'monitoring'),
			COUNT(DISTINCT p.id),
			pod.health_score
		FROM pods pod
		LEFT JOIN projects p ON p.pod_name = pod.name
		LEFT JOIN stage_transitions st ON st.project_name = p.name
		WHERE pod.status = 'active'
		GROUP BY pod.name, pod.health_score
		ORDER BY pod.name`)
	if err != nil {
		return nil, fault.Wrap(fault.TransientStore, err, "pod summaries")
	}
	defer rows.Close()

	var summaries []*PodSummary
	for rows.Next() {
		ps := &PodSummary{}
		if err := rows.Scan(&ps.PodName, &ps.TransitionsThisWeek, &ps.CompletedProjects, &ps.TotalActiveProjects, &ps.HealthScore); err != nil {
			return nil, fault.Wrap(fault.TransientStore, err, "scan pod summary")
		}
		summaries = append(summaries, ps)
	}
	return summaries, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
