package scoring

import "strings"

// Upstream automation categories emitted by the workflow-execution service.
// The role-analysis table, the consolidator table and persisted workflow
// tasks all use the same vocabulary.
const (
	CategoryFullAutomation      = "full_automation"
	CategoryLLMFeedback         = "llm_feedback"
	CategoryIterativeRefinement = "iterative_refinement"
	CategoryContinuousLearning  = "continuous_learning"
	CategoryHumanValidation     = "human_validation"
	CategoryNegligible          = "negligible"
)

var categoryTypes = map[string]TaskType{
	CategoryFullAutomation:      TaskTypeAI,
	CategoryLLMFeedback:         TaskTypeAI,
	CategoryIterativeRefinement: TaskTypeHybrid,
	CategoryContinuousLearning:  TaskTypeHybrid,
	CategoryHumanValidation:     TaskTypeHybrid,
	CategoryNegligible:          TaskTypeHuman,
}

// TaskTypeForCategory maps an upstream automation category to a TaskType.
// The second return is false for unrecognized categories, which map to
// Human+AI; the caller is expected to log the miss.
func TaskTypeForCategory(category string) (TaskType, bool) {
	t, ok := categoryTypes[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return TaskTypeHybrid, false
	}
	return t, true
}
