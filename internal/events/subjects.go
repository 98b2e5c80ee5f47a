package events

import "strings"

const (
	// GitHub envelopes fan out under clos.github.<event_type>.
	SubjectGitHubPrefix = "clos.github."
	SubjectGitHubAll    = "clos.github.>"

	SubjectTransitionRequest = "clos.stagegate.transition.request"

	SubjectWipLockAcquired = "clos.wip.lock.acquired"
	SubjectWipLockReleased = "clos.wip.lock.released"

	StreamName   = "CLOS_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// Result subjects, one per derived event kind.
func SubjectStageGateApproved() string       { return "clos.stagegate.approved" }
func SubjectStageGateRejected() string       { return "clos.stagegate.rejected" }
func SubjectStageTransitionDetected() string { return "clos.stagegate.transition.detected" }
func SubjectStageCompletionDetected() string { return "clos.stagegate.completion.detected" }
func SubjectDeploymentDetected() string      { return "clos.stagegate.deployment.detected" }
func SubjectWipLimitExceeded() string        { return "clos.wip.limit.exceeded" }
func SubjectWipCapacityAvailable() string    { return "clos.wip.capacity.available" }
func SubjectWipViolationsDetected() string   { return "clos.wip.violations.detected" }
func SubjectWipLimitEnforced() string        { return "clos.wip.limit.enforced" }

// Rhythm subjects for scheduled digests.
func SubjectDailyUnblock() string { return "clos.rhythm.daily" }
func SubjectWeeklyDemo() string   { return "clos.rhythm.weekly" }

// SubjectGitHub returns the envelope subject for a raw GitHub event type.
func SubjectGitHub(eventType string) string { return SubjectGitHubPrefix + eventType }

func subjectForKind(kind Kind) string {
	switch kind {
	case KindStageGateApproved:
		return SubjectStageGateApproved()
	case KindStageGateRejected:
		return SubjectStageGateRejected()
	case KindStageTransitionDetected:
		return SubjectStageTransitionDetected()
	case KindStageCompletionDetected:
		return SubjectStageCompletionDetected()
	case KindDeploymentDetected:
		return SubjectDeploymentDetected()
	case KindWipLimitExceeded:
		return SubjectWipLimitExceeded()
	case KindWipCapacityAvailable:
		return SubjectWipCapacityAvailable()
	case KindWipViolationsDetected:
		return SubjectWipViolationsDetected()
	case KindWipLimitEnforced:
		return SubjectWipLimitEnforced()
	}
	return "clos.stagegate.unknown"
}

// Label renders a kind as its human-readable detail-type: underscores
// become spaces and each word is title-cased, e.g. wip_limit_exceeded
// -> "Wip Limit Exceeded".
func Label(kind Kind) string {
	words := strings.Split(string(kind), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
