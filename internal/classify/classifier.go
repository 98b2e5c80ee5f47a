// Package classify maps raw GitHub event payloads to zero-or-one
// derived domain event. Every function here is pure and total: no I/O,
// no faults, missing payload fields are treated as absent.
package classify

import (
	"strings"
	"time"

	"github.com/closlabs/flowgate/internal/events"
)

// stageConfidence is the fixed score attached to keyword-derived
// stage detections.
const stageConfidence = 0.8

// stageKeywords maps each delivery stage to its detection keywords.
// Order matters: the first matching stage wins.
var stageKeywords = []struct {
	stage    string
	keywords []string
}{
	{"inception", []string{"inception", "idea", "proposal"}},
	{"problem_definition", []string{"problem", "research", "requirements"}},
	{"solution_design", []string{"design", "architecture", "spec"}},
	{"development", []string{"development", "implementation", "code"}},
	{"testing", []string{"testing", "qa", "validation"}},
	{"deployment", []string{"deployment", "release", "prod"}},
	{"monitoring", []string{"monitoring", "observability", "metrics"}},
}

// Classify routes a GitHub event to the matching branch. Event types
// without a classification branch produce nil.
func Classify(eventType string, payload map[string]interface{}, now time.Time) *events.Derived {
	switch eventType {
	case "pull_request":
		return ClassifyPullRequest(
			getString(payload, "action"),
			getMap(payload, "pull_request"),
			getMap(payload, "repository"),
			now,
		)
	case "push":
		return ClassifyPush(
			getString(payload, "ref"),
			getMap(payload, "repository"),
			getSlice(payload, "commits"),
			getMap(payload, "head_commit"),
			now,
		)
	}
	return nil
}

// ClassifyPullRequest derives a stage transition from an opened PR's
// title and labels, or a stage completion from a merged PR.
func ClassifyPullRequest(action string, pullRequest, repository map[string]interface{}, now time.Time) *events.Derived {
	repoName := getString(repository, "name")
	labels := getSlice(pullRequest, "labels")
	podID := DeterminePod(repoName, labels)

	switch {
	case action == "opened":
		info, ok := extractStage(pullRequest)
		if !ok {
			return nil
		}
		return &events.Derived{
			Kind:   events.KindStageTransitionDetected,
			Source: events.SourceStageGates,
			Detail: events.StageTransitionDetected{
				ProjectID:  repoName,
				PodID:      podID,
				PRNumber:   getInt(pullRequest, "number"),
				StageInfo:  info,
				DetectedAt: now,
			},
		}

	case action == "closed" && getBool(pullRequest, "merged"):
		return &events.Derived{
			Kind:   events.KindStageCompletionDetected,
			Source: events.SourceStageGates,
			Detail: events.StageCompletionDetected{
				ProjectID: repoName,
				PodID:     podID,
				PRNumber:  getInt(pullRequest, "number"),
				MergedAt:  getString(pullRequest, "merged_at"),
			},
		}
	}
	return nil
}

// ClassifyPush derives a deployment from pushes to main or production.
func ClassifyPush(ref string, repository map[string]interface{}, commits []interface{}, headCommit map[string]interface{}, now time.Time) *events.Derived {
	if ref != "refs/heads/main" && ref != "refs/heads/production" {
		return nil
	}
	repoName := getString(repository, "name")
	return &events.Derived{
		Kind:   events.KindDeploymentDetected,
		Source: events.SourceStageGates,
		Detail: events.DeploymentDetected{
			ProjectID:   repoName,
			PodID:       DeterminePod(repoName, nil),
			Ref:         ref,
			CommitCount: len(commits),
			HeadCommit:  headCommit,
			DetectedAt:  now,
		},
	}
}

// extractStage scans a PR's case-folded title and space-joined label
// names for stage keywords. First matching stage in table order wins.
func extractStage(pullRequest map[string]interface{}) (events.StageInfo, bool) {
	title := strings.ToLower(getString(pullRequest, "title"))
	var lowered []string
	for _, name := range labelNames(getSlice(pullRequest, "labels")) {
		lowered = append(lowered, strings.ToLower(name))
	}
	joined := strings.Join(lowered, " ")

	for _, sk := range stageKeywords {
		for _, kw := range sk.keywords {
			if strings.Contains(title, kw) || strings.Contains(joined, kw) {
				return events.StageInfo{TargetStage: sk.stage, Confidence: stageConfidence}, true
			}
		}
	}
	return events.StageInfo{}, false
}
