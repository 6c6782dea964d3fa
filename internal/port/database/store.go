// Package database defines the persistence port for the scoring engine.
package database

import (
	"context"
	"time"

	"github.com/taskfolio/autoassess/internal/domain/scoring"
)

// FeasibilityEntry is one persisted feasibility cache row, unique on
// (company_id, role_query, task_name). Rows are updated in place and never
// auto-deleted.
type FeasibilityEntry struct {
	CompanyID   string               `json:"company_id"`
	RoleQuery   string               `json:"role_query"`
	TaskName    string               `json:"task_name"`
	TaskType    scoring.TaskType     `json:"task_type"`
	MeanScore   float64              `json:"mean_score"`
	Variance    float64              `json:"variance"`
	ScoreState  scoring.ScoreState   `json:"score_state"`
	ModelScores []scoring.ModelScore `json:"model_scores"`
	UpdatedOn   time.Time            `json:"updated_on"`
}

// AutocompleteEntry is one denormalized autocomplete row, unique on
// (task_name, company, role).
type AutocompleteEntry struct {
	TaskName  string           `json:"task_name"`
	Company   string           `json:"company"`
	Role      string           `json:"role"`
	TaskType  scoring.TaskType `json:"task_type"`
	Source    string           `json:"source"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Pair identifies one (company, role) autocomplete refresh unit.
type Pair struct {
	Company string `json:"company"`
	Role    string `json:"role"`
}

// WorkflowTask is one persisted workflow task, ordered by position.
type WorkflowTask struct {
	TaskName           string
	AutomationPriority string
	Position           int
}

// Store is the persistence port used by the scoring services.
type Store interface {
	// Feasibility cache. GetFeasibility with no task names returns every
	// row for the pair; with names it returns only the matching rows.
	GetFeasibility(ctx context.Context, companyID, roleQuery string, taskNames []string) ([]FeasibilityEntry, error)
	UpsertFeasibility(ctx context.Context, e *FeasibilityEntry) error

	// WithPairLock runs fn inside a transaction holding the advisory lock
	// for (company, role), serializing concurrent recomputes of one pair.
	// fn receives a Store bound to the lock-holding transaction and must
	// issue all reads and writes through it: they commit or roll back
	// together with the lock, and the whole recompute occupies a single
	// connection.
	WithPairLock(ctx context.Context, company, role string, fn func(ctx context.Context, tx Store) error) error

	// Autocomplete cache.
	SearchAutocomplete(ctx context.Context, company, role, prefix string, taskType scoring.TaskType, limit int) ([]AutocompleteEntry, error)
	UpsertAutocomplete(ctx context.Context, e *AutocompleteEntry) error
	LatestAutocompleteRefresh(ctx context.Context, company, role string) (time.Time, bool, error)
	ListAutocompletePairs(ctx context.Context) ([]Pair, error)

	// Persisted workflow tasks.
	GetWorkflowTasks(ctx context.Context, workflowID string) ([]WorkflowTask, error)
	FindWorkflowID(ctx context.Context, name, functionID string) (string, error)
}
