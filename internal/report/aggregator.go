// Package report builds the daily unblock and weekly demo digests from
// the relational store and the live lock census, and publishes them on
// the rhythm subjects.
package report

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/closlabs/flowgate/internal/config"
	"github.com/closlabs/flowgate/internal/events"
	"github.com/closlabs/flowgate/internal/store"
	"github.com/closlabs/flowgate/internal/wip"
)

type DailyReport struct {
	Date            string                  `json:"date"`
	BlockedProjects []*store.BlockedProject `json:"blocked_projects"`
	Impediments     []*store.Activity       `json:"impediments"`
	WipStatus       []*wip.Census           `json:"wip_status"`
	GeneratedAt     time.Time               `json:"generated_at"`
}

type WeeklyReport struct {
	WeekEnding     string                   `json:"week_ending"`
	Transitions    []*store.StageTransition `json:"transitions"`
	DemoCandidates []*store.DemoCandidate   `json:"demo_candidates"`
	PodSummaries   []*store.PodSummary      `json:"pod_summaries"`
	GeneratedAt    time.Time                `json:"generated_at"`
}

type Aggregator struct {
	reports store.ReportStore
	engine  *wip.Engine
	bus     events.Client
	cfg     *config.Config
	logger  *slog.Logger
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewAggregator(reports store.ReportStore, engine *wip.Engine, bus events.Client, cfg *config.Config, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		reports: reports,
		engine:  engine,
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the rhythm loops. Intervals of zero disable the
// corresponding loop; manual triggers through the API still work.
func (a *Aggregator) Start(ctx context.Context) {
	if a.cfg.DailyInterval() > 0 {
		a.wg.Add(1)
		go a.loop(ctx, a.cfg.DailyInterval(), func(ctx context.Context) {
			if _, err := a.DailyUnblock(ctx); err != nil {
				a.logger.Error("daily report failed", "error", err)
			}
		})
	}
	if a.cfg.WeeklyInterval() > 0 {
		a.wg.Add(1)
		go a.loop(ctx, a.cfg.WeeklyInterval(), func(ctx context.Context) {
			if _, err := a.WeeklyDemo(ctx); err != nil {
				a.logger.Error("weekly report failed", "error", err)
			}
		})
	}
}

func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()
}

func (a *Aggregator) loop(ctx context.Context, interval time.Duration, run func(context.Context)) {
	defer a.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// DailyUnblock assembles the morning digest: projects stalled three or
// more days, recent impediment activity, and every pod's census
// against its ceilings.
func (a *Aggregator) DailyUnblock(ctx context.Context) (*DailyReport, error) {
	blocked, err := a.reports.BlockedProjects(ctx)
	if err != nil {
		return nil, err
	}
	impediments, err := a.reports.ActiveImpediments(ctx)
	if err != nil {
		return nil, err
	}

	var wipStatus []*wip.Census
	for _, pod := range a.podIDs() {
		census, err := a.engine.Snapshot(ctx, pod)
		if err != nil {
			return nil, err
		}
		wipStatus = append(wipStatus, census)
	}

	now := a.now().UTC()
	rep := &DailyReport{
		Date:            now.Format("2006-01-02"),
		BlockedProjects: blocked,
		Impediments:     impediments,
		WipStatus:       wipStatus,
		GeneratedAt:     now,
	}

	a.publish(events.SourceDailyRhythm, "Daily Unblock Report", events.SubjectDailyUnblock(), rep)
	a.logger.Info("daily unblock report generated",
		"blocked_projects", len(blocked), "impediments", len(impediments))
	return rep, nil
}

// WeeklyDemo assembles the Friday digest: the week's approved
// transitions, projects ready to demo, and per-pod summaries.
func (a *Aggregator) WeeklyDemo(ctx context.Context) (*WeeklyReport, error) {
	transitions, err := a.reports.WeeklyTransitions(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := a.reports.DemoCandidates(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := a.reports.PodSummaries(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	rep := &WeeklyReport{
		WeekEnding:     now.Format("2006-01-02"),
		Transitions:    transitions,
		DemoCandidates: candidates,
		PodSummaries:   summaries,
		GeneratedAt:    now,
	}

	a.publish(events.SourceWeeklyRhythm, "Weekly Demo Preparation", events.SubjectWeeklyDemo(), rep)
	a.logger.Info("weekly demo report generated",
		"transitions", len(transitions), "demo_candidates", len(candidates))
	return rep, nil
}

func (a *Aggregator) publish(source, detailType, subject string, detail interface{}) {
	if a.bus == nil {
		return
	}
	env, err := events.NewEnvelope(source, detailType, detail)
	if err != nil {
		a.logger.Error("failed to build report envelope", "subject", subject, "error", err)
		return
	}
	if err := a.bus.Publish(subject, env); err != nil {
		a.logger.Error("failed to publish report", "subject", subject, "error", err)
	}
}

func (a *Aggregator) podIDs() []string {
	pods := make([]string, 0, len(a.cfg.Wip.Limits))
	for pod := range a.cfg.Wip.Limits {
		pods = append(pods, pod)
	}
	sort.Strings(pods)
	return pods
}
