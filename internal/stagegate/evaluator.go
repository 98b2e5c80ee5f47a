// Package stagegate decides whether evidence suffices to approve a
// transition into a target stage. The evaluator is a pure decision
// function: it never mutates project state and never returns an error.
package stagegate

import (
	"time"

	"github.com/closlabs/flowgate/internal/events"
)

// Result is the outcome of one evaluation. Reasons lists the missing
// criteria when rejected and is empty when approved.
type Result struct {
	Approved    bool     `json:"approved"`
	CriteriaMet []string `json:"criteria_met"`
	Reasons     []string `json:"reasons"`
}

type Evaluator struct {
	catalog Catalog
}

func NewEvaluator(catalog Catalog) *Evaluator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Evaluator{catalog: catalog}
}

// Evaluate checks each of the target stage's required criteria against
// the evidence. A criterion is met iff its evidence value is present
// and truthy. Unknown stages have no required criteria and are
// approved automatically.
func (e *Evaluator) Evaluate(stage string, evidence map[string]interface{}) Result {
	required := e.catalog[stage]
	met := []string{}
	missing := []string{}

	for _, criterion := range required {
		if truthy(evidence[criterion]) {
			met = append(met, criterion)
		} else {
			missing = append(missing, criterion)
		}
	}

	return Result{
		Approved:    len(missing) == 0,
		CriteriaMet: met,
		Reasons:     missing,
	}
}

// Decide evaluates a transition request and produces the matching
// approved or rejected event. Advancing project state on approval is
// the caller's responsibility.
func (e *Evaluator) Decide(req events.StageTransitionRequest, now time.Time) events.Derived {
	result := e.Evaluate(req.ToStage, req.Evidence)

	if result.Approved {
		return events.Derived{
			Kind:   events.KindStageGateApproved,
			Source: events.SourceStageGates,
			Detail: events.StageGateApproved{
				ProjectID:   req.ProjectID,
				FromStage:   req.FromStage,
				ToStage:     req.ToStage,
				ApprovedAt:  now,
				CriteriaMet: result.CriteriaMet,
			},
		}
	}
	return events.Derived{
		Kind:   events.KindStageGateRejected,
		Source: events.SourceStageGates,
		Detail: events.StageGateRejected{
			ProjectID:  req.ProjectID,
			FromStage:  req.FromStage,
			ToStage:    req.ToStage,
			RejectedAt: now,
			Reasons:    result.Reasons,
		},
	}
}

// truthy follows loose JSON evidence: false, nil, zero numbers, empty
// strings, and empty collections all fail a criterion. Any non-empty
// string passes, "false" included.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	case nil:
		return false
	default:
		return true
	}
}
