package events

import (
	"encoding/json"
	"testing"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindStageTransitionDetected, "Stage Transition Detected"},
		{KindWipLimitExceeded, "Wip Limit Exceeded"},
		{KindStageGateApproved, "Stage Gate Approved"},
		{Kind("pull_request"), "Pull Request"},
		{Kind("push"), "Push"},
	}
	for _, tt := range tests {
		if got := Label(tt.kind); got != tt.expected {
			t.Fatalf("Label(%s) = %q, want %q", tt.kind, got, tt.expected)
		}
	}
}

func TestSubjectForKind(t *testing.T) {
	tests := []struct {
		kind    Kind
		subject string
	}{
		{KindStageGateApproved, "clos.stagegate.approved"},
		{KindStageGateRejected, "clos.stagegate.rejected"},
		{KindWipLimitExceeded, "clos.wip.limit.exceeded"},
		{KindWipCapacityAvailable, "clos.wip.capacity.available"},
		{KindWipViolationsDetected, "clos.wip.violations.detected"},
		{KindWipLimitEnforced, "clos.wip.limit.enforced"},
		{KindDeploymentDetected, "clos.stagegate.deployment.detected"},
	}
	for _, tt := range tests {
		d := Derived{Kind: tt.kind}
		if got := d.Subject(); got != tt.subject {
			t.Fatalf("Subject(%s) = %q, want %q", tt.kind, got, tt.subject)
		}
	}
}

func TestSubjectGitHub(t *testing.T) {
	if got := SubjectGitHub("pull_request"); got != "clos.github.pull_request" {
		t.Fatalf("got %q", got)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(SourceWipLimits, "Wip Limit Exceeded", WipLimitExceeded{
		PodID: "Nanda", ItemType: "pull_request", CurrentCount: 5, Limit: 4,
	})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if env.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("envelope id not assigned")
	}
	if env.Timestamp.IsZero() {
		t.Fatal("timestamp not assigned")
	}

	var detail WipLimitExceeded
	if err := json.Unmarshal(env.Detail, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail.CurrentCount != 5 || detail.Limit != 4 {
		t.Fatalf("detail = %+v", detail)
	}
}

func TestDerivedEnvelope(t *testing.T) {
	d := Derived{
		Kind:   KindWipLimitExceeded,
		Source: SourceWipLimits,
		Detail: WipLimitExceeded{PodID: "Meta", ItemType: "project", CurrentCount: 3, Limit: 2},
	}
	env, err := d.Envelope()
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if env.Source != SourceWipLimits {
		t.Fatalf("source = %s", env.Source)
	}
	if env.DetailType != "Wip Limit Exceeded" {
		t.Fatalf("detail_type = %s", env.DetailType)
	}
}
