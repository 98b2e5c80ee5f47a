package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind tags a derived event.
type Kind string

const (
	KindStageTransitionDetected Kind = "stage_transition_detected"
	KindStageCompletionDetected Kind = "stage_completion_detected"
	KindDeploymentDetected      Kind = "deployment_detected"
	KindWipLimitExceeded        Kind = "wip_limit_exceeded"
	KindWipCapacityAvailable    Kind = "wip_capacity_available"
	KindWipViolationsDetected   Kind = "wip_violations_detected"
	KindStageGateApproved       Kind = "stage_gate_approved"
	KindStageGateRejected       Kind = "stage_gate_rejected"
	KindWipLimitEnforced        Kind = "wip_limit_enforced"
)

// Sources identify the producing component on envelopes.
const (
	SourceGitHubWebhook = "github.webhook"
	SourceStageGates    = "clos.stage-gates"
	SourceWipLimits     = "clos.wip-limits"
	SourceDailyRhythm   = "clos.daily-rhythm"
	SourceWeeklyRhythm  = "clos.weekly-rhythm"
)

// Envelope is the wire shape carried on every bus subject: a source
// tag, a human-readable type label, and the kind-specific detail.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Source     string          `json:"source"`
	DetailType string          `json:"detail_type"`
	Detail     json.RawMessage `json:"detail"`
	Timestamp  time.Time       `json:"timestamp"`
}

func NewEnvelope(source, detailType string, detail interface{}) (Envelope, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         uuid.New(),
		Source:     source,
		DetailType: detailType,
		Detail:     raw,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// Derived is a classified or computed domain event ready for
// publication. Detail holds one of the typed payloads below.
type Derived struct {
	Kind   Kind
	Source string
	Detail interface{}
}

// Subject returns the bus subject a derived event is published to.
func (d Derived) Subject() string { return subjectForKind(d.Kind) }

// Envelope wraps the derived event for the wire.
func (d Derived) Envelope() (Envelope, error) {
	return NewEnvelope(d.Source, Label(d.Kind), d.Detail)
}

// --- Stage gate payloads ---

type StageInfo struct {
	TargetStage string  `json:"target_stage"`
	Confidence  float64 `json:"confidence"`
}

type StageTransitionDetected struct {
	ProjectID  string    `json:"project_id"`
	PodID      string    `json:"pod_id"`
	PRNumber   int       `json:"pr_number"`
	StageInfo  StageInfo `json:"stage_info"`
	DetectedAt time.Time `json:"detected_at"`
}

type StageCompletionDetected struct {
	ProjectID string `json:"project_id"`
	PodID     string `json:"pod_id"`
	PRNumber  int    `json:"pr_number"`
	MergedAt  string `json:"merged_at,omitempty"`
}

type DeploymentDetected struct {
	ProjectID   string                 `json:"project_id"`
	PodID       string                 `json:"pod_id"`
	Ref         string                 `json:"ref"`
	CommitCount int                    `json:"commit_count"`
	HeadCommit  map[string]interface{} `json:"head_commit,omitempty"`
	DetectedAt  time.Time              `json:"detected_at"`
}

// StageTransitionRequest is consumed from the bus; evidence maps
// criterion names to satisfaction flags.
type StageTransitionRequest struct {
	ProjectID string                 `json:"project_id"`
	FromStage string                 `json:"from_stage"`
	ToStage   string                 `json:"to_stage"`
	Evidence  map[string]interface{} `json:"evidence"`
}

type StageGateApproved struct {
	ProjectID   string    `json:"project_id"`
	FromStage   string    `json:"from_stage"`
	ToStage     string    `json:"to_stage"`
	ApprovedAt  time.Time `json:"approved_at"`
	CriteriaMet []string  `json:"criteria_met"`
}

type StageGateRejected struct {
	ProjectID  string    `json:"project_id"`
	FromStage  string    `json:"from_stage"`
	ToStage    string    `json:"to_stage"`
	RejectedAt time.Time `json:"rejected_at"`
	Reasons    []string  `json:"reasons"`
}

// --- WIP payloads ---

type WipLockAcquired struct {
	PodID    string `json:"pod_id"`
	ItemID   string `json:"item_id"`
	ItemType string `json:"item_type"`
	UserID   string `json:"user_id"`
}

type WipLockReleased struct {
	PodID    string `json:"pod_id"`
	ItemID   string `json:"item_id"`
	ItemType string `json:"item_type"`
}

type WipLimitExceeded struct {
	PodID        string `json:"pod_id"`
	ItemType     string `json:"item_type"`
	CurrentCount int    `json:"current_count"`
	Limit        int    `json:"limit"`
}

type WipCapacityAvailable struct {
	PodID        string    `json:"pod_id"`
	ItemType     string    `json:"item_type"`
	CurrentCount int       `json:"current_count"`
	Limit        int       `json:"limit"`
	AvailableAt  time.Time `json:"available_at"`
}

type WipViolation struct {
	ItemType     string `json:"item_type"`
	CurrentCount int    `json:"current_count"`
	Limit        int    `json:"limit"`
}

type WipViolationsDetected struct {
	PodID      string         `json:"pod_id"`
	Violations []WipViolation `json:"violations"`
	DetectedAt time.Time      `json:"detected_at"`
}

type WipLimitEnforced struct {
	PodID     string    `json:"pod_id"`
	ItemType  string    `json:"item_type"`
	Action    string    `json:"action"`
	BlockedAt time.Time `json:"blocked_at"`
	Reason    string    `json:"reason"`
}
