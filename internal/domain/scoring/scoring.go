// Package scoring holds the value types of the feasibility scoring engine:
// score requests, task records, per-model results, and aggregated summaries.
package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskfolio/autoassess/internal/domain"
)

// TaskType is the coarse automation category of a task.
type TaskType string

// Task types. Hybrid is the default when the upstream category is unknown.
const (
	TaskTypeAI     TaskType = "AI"
	TaskTypeHuman  TaskType = "Human"
	TaskTypeHybrid TaskType = "Human+AI"
)

// MetaModelName is the synthetic model name appended to each task's model
// list by the reconciliation pass.
const MetaModelName = "etter"

// DefaultModelTimeout bounds a single scoring call when the model config
// does not set one.
const DefaultModelTimeout = 180 * time.Second

// ScoreRequest identifies the task list to score. At least one of an
// explicit task list, a company, a role, or a workflow identifier must be
// present.
type ScoreRequest struct {
	Tasks        []string `json:"tasks,omitempty"`
	Company      string   `json:"company,omitempty"`
	Role         string   `json:"role,omitempty"`
	WorkflowID   string   `json:"workflow_id,omitempty"`
	WorkflowName string   `json:"workflow_name,omitempty"`
	FunctionID   string   `json:"function_id,omitempty"`
}

// Validate checks the request invariant. A workflow name is only a valid
// identifier when paired with a function ID.
func (r *ScoreRequest) Validate() error {
	if len(r.Tasks) == 0 && r.Company == "" && r.Role == "" && r.WorkflowID == "" && r.WorkflowName == "" {
		return fmt.Errorf("%w: one of tasks, company, role or workflow identifier is required", domain.ErrValidation)
	}
	if r.WorkflowName != "" && r.WorkflowID == "" && r.FunctionID == "" {
		return fmt.Errorf("%w: workflow_name requires function_id", domain.ErrValidation)
	}
	return nil
}

// TaskRecord is one resolved task. Produced per request by the resolver,
// never persisted directly.
type TaskRecord struct {
	TaskName string   `json:"task_name"`
	TaskType TaskType `json:"task_type"`
}

// NewTaskRecord trims the name and defaults the type to Human+AI.
func NewTaskRecord(name string, taskType TaskType) (TaskRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return TaskRecord{}, fmt.Errorf("%w: task name is empty", domain.ErrValidation)
	}
	if taskType == "" {
		taskType = TaskTypeHybrid
	}
	return TaskRecord{TaskName: name, TaskType: taskType}, nil
}

// ModelConfig is one (model, provider, prompt) scoring target. Immutable,
// defined in static configuration and shared across requests.
type ModelConfig struct {
	Model      string
	Provider   string
	PromptName string
	Timeout    time.Duration
}

// NewModelConfig validates the target at construction time.
func NewModelConfig(model, provider, promptName string, timeout time.Duration) (ModelConfig, error) {
	if model == "" || provider == "" || promptName == "" {
		return ModelConfig{}, fmt.Errorf("%w: model, provider and prompt_name are required", domain.ErrValidation)
	}
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return ModelConfig{Model: model, Provider: provider, PromptName: promptName, Timeout: timeout}, nil
}

// ModelTaskScore is one task's score as parsed from a model response.
type ModelTaskScore struct {
	Task   string  `json:"task"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ModelScoreResult is the outcome of one scoring call. It exists only for
// the duration of a request.
type ModelScoreResult struct {
	Model    string
	Provider string
	RawText  string
	Scores   []ModelTaskScore
}

// ModelScore is one entry of a summary's per-model list, including the
// synthetic reconciliation entry.
type ModelScore struct {
	Model  string  `json:"model"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ScoreState distinguishes a genuine zero-automation judgment from a task
// for which no model produced data.
type ScoreState string

// Score states.
const (
	ScoreStateScored ScoreState = "scored"
	ScoreStateNoData ScoreState = "no_data"
)

// TaskScoreSummary is the aggregated, reconciled score of one task.
type TaskScoreSummary struct {
	TaskName    string       `json:"task"`
	TaskType    TaskType     `json:"task_type"`
	MeanScore   float64      `json:"mean_scores"`
	Variance    float64      `json:"variances"`
	ScoreState  ScoreState   `json:"score_state"`
	ModelScores []ModelScore `json:"model_task_results"`
}
