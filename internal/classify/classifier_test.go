package classify

import (
	"testing"
	"time"

	"github.com/closlabs/flowgate/internal/events"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func prPayload(action, title string, merged bool, labels ...string) map[string]interface{} {
	labelList := make([]interface{}, 0, len(labels))
	for _, l := range labels {
		labelList = append(labelList, map[string]interface{}{"name": l})
	}
	return map[string]interface{}{
		"action": action,
		"pull_request": map[string]interface{}{
			"number":    float64(42),
			"title":     title,
			"merged":    merged,
			"merged_at": "2026-03-10T11:00:00Z",
			"labels":    labelList,
		},
		"repository": map[string]interface{}{"name": "checkout-service"},
	}
}

func TestClassifyOpenedPRWithStageKeyword(t *testing.T) {
	derived := Classify("pull_request", prPayload("opened", "Testing: integration coverage", false), testNow)
	if derived == nil {
		t.Fatal("expected a derived event")
	}
	if derived.Kind != events.KindStageTransitionDetected {
		t.Fatalf("kind = %s", derived.Kind)
	}

	detail := derived.Detail.(events.StageTransitionDetected)
	if detail.StageInfo.TargetStage != "testing" {
		t.Fatalf("stage = %s", detail.StageInfo.TargetStage)
	}
	if detail.StageInfo.Confidence != 0.8 {
		t.Fatalf("confidence = %v", detail.StageInfo.Confidence)
	}
	if detail.ProjectID != "checkout-service" || detail.PRNumber != 42 {
		t.Fatalf("detail = %+v", detail)
	}
}

func TestClassifyStageFromLabels(t *testing.T) {
	derived := Classify("pull_request", prPayload("opened", "Misc changes", false, "Architecture"), testNow)
	if derived == nil {
		t.Fatal("expected a derived event")
	}
	detail := derived.Detail.(events.StageTransitionDetected)
	if detail.StageInfo.TargetStage != "solution_design" {
		t.Fatalf("stage = %s", detail.StageInfo.TargetStage)
	}
}

func TestClassifyFirstMatchingStageWins(t *testing.T) {
	// "research" (problem_definition) comes before "code" (development)
	// in stage order, so it wins even though both keywords appear.
	derived := Classify("pull_request", prPayload("opened", "Research notes for code cleanup", false), testNow)
	detail := derived.Detail.(events.StageTransitionDetected)
	if detail.StageInfo.TargetStage != "problem_definition" {
		t.Fatalf("stage = %s", detail.StageInfo.TargetStage)
	}
}

func TestClassifyOpenedPRWithoutKeyword(t *testing.T) {
	if derived := Classify("pull_request", prPayload("opened", "Fix typo", false), testNow); derived != nil {
		t.Fatalf("expected nil, got %v", derived.Kind)
	}
}

func TestClassifyMergedPR(t *testing.T) {
	derived := Classify("pull_request", prPayload("closed", "Testing: integration coverage", true), testNow)
	if derived == nil {
		t.Fatal("expected a derived event")
	}
	if derived.Kind != events.KindStageCompletionDetected {
		t.Fatalf("kind = %s", derived.Kind)
	}
	detail := derived.Detail.(events.StageCompletionDetected)
	if detail.MergedAt != "2026-03-10T11:00:00Z" {
		t.Fatalf("merged_at = %s", detail.MergedAt)
	}
}

func TestClassifyClosedUnmergedPR(t *testing.T) {
	if derived := Classify("pull_request", prPayload("closed", "Testing: coverage", false), testNow); derived != nil {
		t.Fatalf("expected nil, got %v", derived.Kind)
	}
}

func TestClassifyPushToMain(t *testing.T) {
	payload := map[string]interface{}{
		"ref":        "refs/heads/main",
		"repository": map[string]interface{}{"name": "checkout-service"},
		"commits":    []interface{}{map[string]interface{}{}, map[string]interface{}{}},
		"head_commit": map[string]interface{}{
			"id": "abc123",
		},
	}
	derived := Classify("push", payload, testNow)
	if derived == nil {
		t.Fatal("expected a derived event")
	}
	if derived.Kind != events.KindDeploymentDetected {
		t.Fatalf("kind = %s", derived.Kind)
	}
	detail := derived.Detail.(events.DeploymentDetected)
	if detail.CommitCount != 2 || detail.Ref != "refs/heads/main" {
		t.Fatalf("detail = %+v", detail)
	}
}

func TestClassifyPushToFeatureBranch(t *testing.T) {
	payload := map[string]interface{}{
		"ref":        "refs/heads/feature/foo",
		"repository": map[string]interface{}{"name": "checkout-service"},
	}
	if derived := Classify("push", payload, testNow); derived != nil {
		t.Fatalf("expected nil, got %v", derived.Kind)
	}
}

func TestClassifyUnhandledEventType(t *testing.T) {
	if derived := Classify("issue_comment", map[string]interface{}{}, testNow); derived != nil {
		t.Fatalf("expected nil, got %v", derived.Kind)
	}
}

func TestClassifyMissingFields(t *testing.T) {
	// A bare payload must not panic; absent fields read as zero values.
	if derived := Classify("pull_request", map[string]interface{}{}, testNow); derived != nil {
		t.Fatalf("expected nil, got %v", derived.Kind)
	}
	if derived := Classify("push", map[string]interface{}{}, testNow); derived != nil {
		t.Fatalf("expected nil, got %v", derived.Kind)
	}
}

func TestDeterminePod(t *testing.T) {
	tests := []struct {
		name     string
		repo     string
		labels   []interface{}
		expected string
	}{
		{"nanda repo", "nanda-agent", nil, "Nanda"},
		{"ai repo", "ai-classifier", nil, "Nanda"},
		{"ratio repo", "ratio-platform", nil, "Ratio"},
		{"infrastructure repo", "infrastructure-tools", nil, "Ratio"},
		{"meta repo", "meta-dashboards", nil, "Meta"},
		{"ops repo", "ops-runbooks", nil, "Meta"},
		{"label match", "widgets", []interface{}{map[string]interface{}{"name": "automation"}}, "Nanda"},
		{"default", "widgets", nil, "Ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeterminePod(tt.repo, tt.labels); got != tt.expected {
				t.Fatalf("DeterminePod(%q) = %q, want %q", tt.repo, got, tt.expected)
			}
		})
	}
}
