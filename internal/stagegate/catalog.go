package stagegate

// Stages lists the delivery stages in order. Transitions are expected
// to move forward one stage at a time, but adjacency is the caller's
// concern, not the evaluator's.
var Stages = []string{
	"inception",
	"problem_definition",
	"solution_design",
	"development",
	"testing",
	"deployment",
	"monitoring",
}

// Catalog maps a target stage to its required criteria.
type Catalog map[string][]string

// DefaultCatalog returns the stage-gate criteria. Inception has no
// gate: entering the pipeline requires no evidence.
func DefaultCatalog() Catalog {
	return Catalog{
		"problem_definition": {
			"problem_statement",
			"user_research",
			"success_metrics",
		},
		"solution_design": {
			"technical_design",
			"architecture_review",
			"capacity_planning",
		},
		"development": {
			"code_complete",
			"unit_tests_passing",
			"code_review_approved",
		},
		"testing": {
			"integration_tests_passing",
			"performance_tests_passing",
			"security_review_complete",
		},
		"deployment": {
			"staging_deployment_successful",
			"load_testing_complete",
			"rollback_plan_approved",
		},
		"monitoring": {
			"production_deployment_successful",
			"monitoring_alerts_configured",
			"post_deployment_verification",
		},
	}
}

// StageIndex returns a stage's position in the ordered sequence, or -1
// for unknown stages.
func StageIndex(stage string) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}
