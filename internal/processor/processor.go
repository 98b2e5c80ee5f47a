// Package processor wires the bus subjects to the classifier, the
// stage gate evaluator, and the WIP engine. Each subscription consumes
// an envelope, runs the matching decision function, and publishes
// whatever derived events come back.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/closlabs/flowgate/internal/classify"
	"github.com/closlabs/flowgate/internal/events"
	"github.com/closlabs/flowgate/internal/fault"
	"github.com/closlabs/flowgate/internal/stagegate"
	"github.com/closlabs/flowgate/internal/store"
	"github.com/closlabs/flowgate/internal/wip"
)

type Processor struct {
	bus       events.Client
	reports   store.ReportStore
	evaluator *stagegate.Evaluator
	engine    *wip.Engine
	logger    *slog.Logger
	now       func() time.Time
}

func New(bus events.Client, reports store.ReportStore, evaluator *stagegate.Evaluator, engine *wip.Engine, logger *slog.Logger) *Processor {
	return &Processor{
		bus:       bus,
		reports:   reports,
		evaluator: evaluator,
		engine:    engine,
		logger:    logger,
		now:       time.Now,
	}
}

// SetupSubscriptions registers the bus subscriptions and reports any
// subject that failed to register. Without a bus the processor is
// inert; the HTTP surface still works.
func (p *Processor) SetupSubscriptions() error {
	if p.bus == nil {
		return nil
	}

	var errs []error
	subscribe := func(subject string, handler func(string, []byte)) {
		if err := p.bus.Subscribe(subject, handler); err != nil {
			p.logger.Error("failed to subscribe", "subject", subject, "error", err)
			errs = append(errs, fmt.Errorf("subscribe %s: %w", subject, err))
		}
	}

	// Raw GitHub envelopes, one subject per event type.
	subscribe(events.SubjectGitHubAll, func(subject string, data []byte) {
		p.handleGitHub(subject, data)
	})

	// Explicit transition requests from the API or other producers.
	subscribe(events.SubjectTransitionRequest, func(_ string, data []byte) {
		p.handleTransitionRequest(data)
	})

	// Lock traffic drives the census.
	subscribe(events.SubjectWipLockAcquired, func(_ string, data []byte) {
		p.handleLockAcquired(data)
	})
	subscribe(events.SubjectWipLockReleased, func(_ string, data []byte) {
		p.handleLockReleased(data)
	})

	// Exceeded events loop back for enforcement bookkeeping.
	subscribe(events.SubjectWipLimitExceeded(), func(_ string, data []byte) {
		p.handleLimitExceeded(data)
	})

	return errors.Join(errs...)
}

func (p *Processor) handleGitHub(subject string, data []byte) {
	eventsProcessed.WithLabelValues(subject).Inc()

	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		p.logger.Warn("invalid github envelope", "subject", subject, "error", err)
		faultsTotal.WithLabelValues(string(fault.Validation)).Inc()
		return
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(env.Detail, &payload); err != nil {
		p.logger.Warn("invalid github payload", "subject", subject, "error", err)
		faultsTotal.WithLabelValues(string(fault.Validation)).Inc()
		return
	}

	eventType := strings.TrimPrefix(subject, events.SubjectGitHubPrefix)
	derived := classify.Classify(eventType, payload, p.now().UTC())
	if derived == nil {
		return
	}

	p.publish(*derived)
	p.recordClassified(derived)
}

// recordClassified performs the relational bookkeeping behind a
// classification: touch the project, log the activity, and audit the
// pod's census now that its workload changed.
func (p *Processor) recordClassified(derived *events.Derived) {
	ctx := context.Background()
	var project, pod, action string

	switch detail := derived.Detail.(type) {
	case events.StageTransitionDetected:
		project, pod = detail.ProjectID, detail.PodID
		action = "stage_transition_detected"
	case events.StageCompletionDetected:
		project, pod = detail.ProjectID, detail.PodID
		action = "stage_completion_detected"
	case events.DeploymentDetected:
		project, pod = detail.ProjectID, detail.PodID
		action = "deployment_detected"
	default:
		return
	}

	if err := p.reports.TouchProject(ctx, project, pod); err != nil {
		p.recordFault("touch project", err)
	}
	if err := p.reports.RecordActivity(ctx, &store.Activity{
		Actor:       "github",
		Action:      action,
		ProjectName: project,
		Details:     map[string]interface{}{"pod_id": pod},
	}); err != nil {
		p.recordFault("record activity", err)
	}

	audit, err := p.engine.Check(ctx, pod)
	if err != nil {
		p.recordFault("wip check", err)
		return
	}
	if audit != nil {
		wipViolations.Inc()
		p.publish(*audit)
	}
}

func (p *Processor) handleTransitionRequest(data []byte) {
	eventsProcessed.WithLabelValues(events.SubjectTransitionRequest).Inc()

	req, ok := decodeDetail[events.StageTransitionRequest](p, data, "transition request")
	if !ok {
		return
	}

	decision := p.evaluator.Decide(req, p.now().UTC())
	p.publish(decision)

	if approved, ok := decision.Detail.(events.StageGateApproved); ok {
		gateDecisions.WithLabelValues("approved").Inc()
		if err := p.reports.RecordStageTransition(context.Background(), &store.StageTransition{
			ProjectName: approved.ProjectID,
			FromStage:   approved.FromStage,
			ToStage:     approved.ToStage,
			CriteriaMet: approved.CriteriaMet,
			ApprovedAt:  approved.ApprovedAt,
		}); err != nil {
			p.recordFault("record transition", err)
		}
	} else {
		gateDecisions.WithLabelValues("rejected").Inc()
	}
}

func (p *Processor) handleLockAcquired(data []byte) {
	eventsProcessed.WithLabelValues(events.SubjectWipLockAcquired).Inc()

	ev, ok := decodeDetail[events.WipLockAcquired](p, data, "lock acquired")
	if !ok {
		return
	}

	exceeded, err := p.engine.Acquire(context.Background(), ev)
	if err != nil {
		if fault.IsConflict(err) {
			p.logger.Warn("lock conflict", "pod_id", ev.PodID, "item_id", ev.ItemID)
			faultsTotal.WithLabelValues(string(fault.Conflict)).Inc()
			return
		}
		p.recordFault("acquire lock", err)
		return
	}
	if exceeded != nil {
		p.publish(*exceeded)
	}
}

func (p *Processor) handleLockReleased(data []byte) {
	eventsProcessed.WithLabelValues(events.SubjectWipLockReleased).Inc()

	ev, ok := decodeDetail[events.WipLockReleased](p, data, "lock released")
	if !ok {
		return
	}

	capacity, err := p.engine.Release(context.Background(), ev)
	if err != nil {
		p.recordFault("release lock", err)
		return
	}
	if capacity != nil {
		p.publish(*capacity)
	}
}

func (p *Processor) handleLimitExceeded(data []byte) {
	eventsProcessed.WithLabelValues(events.SubjectWipLimitExceeded()).Inc()

	ev, ok := decodeDetail[events.WipLimitExceeded](p, data, "limit exceeded")
	if !ok {
		return
	}

	enforced, err := p.engine.EnforceExceeded(context.Background(), ev)
	if err != nil {
		p.recordFault("enforce limit", err)
		return
	}
	if enforced != nil {
		p.publish(*enforced)
	}
}

func (p *Processor) publish(derived events.Derived) {
	env, err := derived.Envelope()
	if err != nil {
		p.logger.Error("failed to build envelope", "kind", derived.Kind, "error", err)
		return
	}
	if err := p.bus.Publish(derived.Subject(), env); err != nil {
		p.logger.Error("failed to publish event", "subject", derived.Subject(), "error", err)
		return
	}
	eventsPublished.WithLabelValues(string(derived.Kind)).Inc()
}

func (p *Processor) recordFault(op string, err error) {
	p.logger.Error("processing fault", "op", op, "error", err)
	kind := fault.KindOf(err)
	if kind == "" {
		kind = fault.TransientStore
	}
	faultsTotal.WithLabelValues(string(kind)).Inc()
}

// decodeDetail unwraps an envelope and decodes its detail into the
// payload type. Bare payloads without an envelope are accepted too.
func decodeDetail[T any](p *Processor, data []byte, what string) (T, bool) {
	var out T

	var env events.Envelope
	if err := json.Unmarshal(data, &env); err == nil && len(env.Detail) > 0 {
		if err := json.Unmarshal(env.Detail, &out); err == nil {
			return out, true
		}
	}
	if err := json.Unmarshal(data, &out); err != nil {
		p.logger.Warn("invalid event payload", "what", what, "error", err)
		faultsTotal.WithLabelValues(string(fault.Validation)).Inc()
		var zero T
		return zero, false
	}
	return out, true
}
