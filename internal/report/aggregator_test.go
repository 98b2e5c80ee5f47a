package report

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/closlabs/flowgate/internal/config"
	"github.com/closlabs/flowgate/internal/events"
	"github.com/closlabs/flowgate/internal/store"
	"github.com/closlabs/flowgate/internal/wip"
)

type recordingBus struct {
	mu        sync.Mutex
	published map[string]int
}

func (b *recordingBus) Publish(subject string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string]int)
	}
	b.published[subject]++
	return nil
}

func (b *recordingBus) Subscribe(string, func(string, []byte)) error { return nil }
func (b *recordingBus) Close()                                       {}

type stubReports struct {
	blocked     []*store.BlockedProject
	impediments []*store.Activity
	transitions []*store.StageTransition
	candidates  []*store.DemoCandidate
	summaries   []*store.PodSummary
}

func (s *stubReports) RecordStageTransition(context.Context, *store.StageTransition) error {
	return nil
}
func (s *stubReports) TouchProject(context.Context, string, string) error { return nil }
func (s *stubReports) RecordActivity(context.Context, *store.Activity) error {
	return nil
}
func (s *stubReports) BlockedProjects(context.Context) ([]*store.BlockedProject, error) {
	return s.blocked, nil
}
func (s *stubReports) ActiveImpediments(context.Context) ([]*store.Activity, error) {
	return s.impediments, nil
}
func (s *stubReports) WeeklyTransitions(context.Context) ([]*store.StageTransition, error) {
	return s.transitions, nil
}
func (s *stubReports) DemoCandidates(context.Context) ([]*store.DemoCandidate, error) {
	return s.candidates, nil
}
func (s *stubReports) PodSummaries(context.Context) ([]*store.PodSummary, error) {
	return s.summaries, nil
}

func testAggregator(t *testing.T, reports *stubReports) (*Aggregator, *recordingBus, *wip.Engine) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.DiscardHandler)
	engine := wip.NewEngine(store.NewMemoryLockStore(), cfg, logger)
	bus := &recordingBus{}
	a := NewAggregator(reports, engine, bus, cfg, logger)
	a.now = func() time.Time {
		return time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)
	}
	return a, bus, engine
}

func TestDailyUnblock(t *testing.T) {
	reports := &stubReports{
		blocked: []*store.BlockedProject{
			{Name: "checkout", CurrentStage: "development", PodName: "Ratio", DaysBlocked: 4},
		},
		impediments: []*store.Activity{
			{Actor: "dev", Action: "impediment_raised", ProjectName: "checkout"},
		},
	}
	a, bus, engine := testAggregator(t, reports)

	_, err := engine.Acquire(context.Background(), events.WipLockAcquired{
		PodID: "Ratio", ItemID: "proj-1", ItemType: "project", UserID: "dev",
	})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	rep, err := a.DailyUnblock(context.Background())
	if err != nil {
		t.Fatalf("daily: %v", err)
	}

	if rep.Date != "2026-03-13" {
		t.Fatalf("date = %s", rep.Date)
	}
	if len(rep.BlockedProjects) != 1 || rep.BlockedProjects[0].Name != "checkout" {
		t.Fatalf("blocked = %+v", rep.BlockedProjects)
	}
	if len(rep.Impediments) != 1 {
		t.Fatalf("impediments = %+v", rep.Impediments)
	}

	// One census per configured pod, sorted by name.
	if len(rep.WipStatus) != 3 {
		t.Fatalf("wip status = %+v", rep.WipStatus)
	}
	if rep.WipStatus[0].PodID != "Meta" || rep.WipStatus[2].PodID != "Ratio" {
		t.Fatalf("pod order = %s, %s, %s", rep.WipStatus[0].PodID, rep.WipStatus[1].PodID, rep.WipStatus[2].PodID)
	}

	if bus.published[events.SubjectDailyUnblock()] != 1 {
		t.Fatalf("published = %+v", bus.published)
	}
}

func TestWeeklyDemo(t *testing.T) {
	reports := &stubReports{
		transitions: []*store.StageTransition{
			{ProjectName: "checkout", FromStage: "development", ToStage: "testing"},
		},
		candidates: []*store.DemoCandidate{
			{Name: "checkout", CurrentStage: "deployment", PodName: "Ratio"},
		},
		summaries: []*store.PodSummary{
			{PodName: "Ratio", TransitionsThisWeek: 1, HealthScore: 100},
		},
	}
	a, bus, _ := testAggregator(t, reports)

	rep, err := a.WeeklyDemo(context.Background())
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}

	if rep.WeekEnding != "2026-03-13" {
		t.Fatalf("week ending = %s", rep.WeekEnding)
	}
	if len(rep.Transitions) != 1 || len(rep.DemoCandidates) != 1 || len(rep.PodSummaries) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if bus.published[events.SubjectWeeklyDemo()] != 1 {
		t.Fatalf("published = %+v", bus.published)
	}
}
