package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taskfolio/autoassess/internal/domain"
	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/port/cache"
	"github.com/taskfolio/autoassess/internal/port/database"
	"github.com/taskfolio/autoassess/internal/port/workflow"
)

// ResolveMode selects the task cap policy.
type ResolveMode int

// Resolve modes. Scoring caps the task list; autocomplete needs the full
// list for its denormalized projection.
const (
	ModeScoring ResolveMode = iota
	ModeAutocomplete
)

// Source tags identifying which step of the priority chain produced the
// task list.
const (
	SourceRoleAnalysis = "role_analysis"
	SourceConsolidator = "consolidator"
	SourceWorkflow     = "workflow"
	SourceExplicit     = "explicit"
)

// Resolver turns a score request into an ordered task list by walking the
// source priority chain: role analysis, persisted workflow, company-wide
// consolidator, explicit list. Failures come back as *scoring.ResolveError.
type Resolver struct {
	source   workflow.Source
	store    database.Store
	cache    cache.Cache
	cacheTTL time.Duration
	taskCap  int
}

// NewResolver creates a resolver. cache may be nil to disable result caching.
func NewResolver(source workflow.Source, store database.Store, c cache.Cache, cacheTTL time.Duration, taskCap int) *Resolver {
	if taskCap < 1 {
		taskCap = 20
	}
	return &Resolver{source: source, store: store, cache: c, cacheTTL: cacheTTL, taskCap: taskCap}
}

// Resolve walks the priority chain and returns the source tag and the
// ordered task list. The list is capped in scoring mode and uncapped in
// autocomplete mode.
func (r *Resolver) Resolve(ctx context.Context, req *scoring.ScoreRequest, mode ResolveMode) (string, []scoring.TaskRecord, error) {
	source, tasks, err := r.resolve(ctx, req)
	if err != nil {
		return "", nil, err
	}

	if mode == ModeScoring && len(tasks) > r.taskCap {
		tasks = tasks[:r.taskCap]
	}
	return source, tasks, nil
}

func (r *Resolver) resolve(ctx context.Context, req *scoring.ScoreRequest) (string, []scoring.TaskRecord, error) {
	switch {
	case req.Role != "" && req.Company != "":
		tasks, err := r.fromRoleAnalysis(ctx, req.Company, req.Role)
		if err != nil {
			return "", nil, err
		}
		if len(tasks) > 0 {
			return SourceRoleAnalysis, tasks, nil
		}
		// The role-analysis flow knows nothing about this role; fall back
		// to the consolidator rows listing it.
		tasks, err = r.fromConsolidator(ctx, req.Company, req.Role)
		if err != nil {
			return "", nil, err
		}
		return SourceConsolidator, tasks, nil

	case req.WorkflowID != "" || req.WorkflowName != "":
		tasks, err := r.fromWorkflow(ctx, req)
		if err != nil {
			return "", nil, err
		}
		return SourceWorkflow, tasks, nil

	case req.Company != "":
		tasks, err := r.fromConsolidator(ctx, req.Company, "")
		if err != nil {
			return "", nil, err
		}
		return SourceConsolidator, tasks, nil

	case len(req.Tasks) > 0:
		tasks, err := explicitTasks(req.Tasks)
		if err != nil {
			return "", nil, scoring.NewResolveError(scoring.CodeInvalidParameters, "invalid task list", err)
		}
		return SourceExplicit, tasks, nil

	default:
		return "", nil, scoring.NewResolveError(scoring.CodeInvalidParameters,
			"one of tasks, company, role or workflow identifier is required", nil)
	}
}

func (r *Resolver) fromRoleAnalysis(ctx context.Context, company, role string) ([]scoring.TaskRecord, error) {
	key := cacheKey(SourceRoleAnalysis, company, role)
	if tasks, ok := r.cachedTasks(ctx, key); ok {
		return tasks, nil
	}

	rows, err := r.source.RoleAnalysis(ctx, company, role)
	if err != nil {
		return nil, upstreamResolveError(err, scoring.CodeRoleNotFound,
			fmt.Sprintf("role analysis for %q/%q", company, role))
	}

	tasks := make([]scoring.TaskRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := taskFromCategory(row.Task, row.Category)
		if err != nil {
			continue
		}
		tasks = append(tasks, rec)
	}

	r.storeTasks(ctx, key, tasks)
	return tasks, nil
}

func (r *Resolver) fromConsolidator(ctx context.Context, company, role string) ([]scoring.TaskRecord, error) {
	key := cacheKey(SourceConsolidator, company, "")
	rows, ok := r.cachedConsolidated(ctx, key)
	if !ok {
		var err error
		rows, err = r.source.Consolidate(ctx, company)
		if err != nil {
			return nil, upstreamResolveError(err, scoring.CodeRoleNotFound,
				fmt.Sprintf("consolidation for %q", company))
		}
		r.storeConsolidated(ctx, key, rows)
	}

	tasks := make([]scoring.TaskRecord, 0, len(rows))
	for _, row := range rows {
		if role != "" && !rolesContain(row.Roles, role) {
			continue
		}
		rec, err := taskFromCategory(row.Task, row.AutomationType)
		if err != nil {
			continue
		}
		tasks = append(tasks, rec)
	}
	return tasks, nil
}

func (r *Resolver) fromWorkflow(ctx context.Context, req *scoring.ScoreRequest) ([]scoring.TaskRecord, error) {
	workflowID := req.WorkflowID
	if workflowID == "" {
		if req.FunctionID == "" {
			return nil, scoring.NewResolveError(scoring.CodeInvalidParameters,
				"workflow_name requires function_id", nil)
		}
		id, err := r.store.FindWorkflowID(ctx, req.WorkflowName, req.FunctionID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, scoring.NewResolveError(scoring.CodeWorkflowNotFound,
					fmt.Sprintf("workflow %q not found for function %q", req.WorkflowName, req.FunctionID), err)
			}
			return nil, scoring.NewResolveError(scoring.CodeDatabaseError, "workflow lookup failed", err)
		}
		workflowID = id
	}

	rows, err := r.store.GetWorkflowTasks(ctx, workflowID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, scoring.NewResolveError(scoring.CodeWorkflowNotFound,
				fmt.Sprintf("workflow %q not found", workflowID), err)
		}
		return nil, scoring.NewResolveError(scoring.CodeDatabaseError, "workflow tasks lookup failed", err)
	}

	tasks := make([]scoring.TaskRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := taskFromCategory(row.TaskName, row.AutomationPriority)
		if err != nil {
			continue
		}
		tasks = append(tasks, rec)
	}
	return tasks, nil
}

func explicitTasks(names []string) ([]scoring.TaskRecord, error) {
	tasks := make([]scoring.TaskRecord, 0, len(names))
	for _, name := range names {
		rec, err := scoring.NewTaskRecord(name, scoring.TaskTypeHybrid)
		if err != nil {
			continue
		}
		tasks = append(tasks, rec)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: no non-empty task names", domain.ErrValidation)
	}
	return tasks, nil
}

func taskFromCategory(name, category string) (scoring.TaskRecord, error) {
	taskType, known := scoring.TaskTypeForCategory(category)
	if !known {
		slog.Warn("unrecognized automation category", "task", name, "category", category)
	}
	return scoring.NewTaskRecord(name, taskType)
}

// rolesContain reports whether the comma-separated role list contains the
// requested role as a whole token, case-insensitive and trimmed.
func rolesContain(roles, role string) bool {
	want := strings.ToLower(strings.TrimSpace(role))
	for _, token := range strings.Split(roles, ",") {
		if strings.ToLower(strings.TrimSpace(token)) == want {
			return true
		}
	}
	return false
}

// upstreamResolveError maps an upstream client error to a ResolveError:
// not-found to the given code, deadline expiry to TIMEOUT, anything else
// to API_ERROR.
func upstreamResolveError(err error, notFoundCode scoring.ResolveCode, op string) *scoring.ResolveError {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return scoring.NewResolveError(notFoundCode, op+" found nothing", err)
	case errors.Is(err, context.DeadlineExceeded):
		return scoring.NewResolveError(scoring.CodeTimeout, op+" timed out", err)
	default:
		return scoring.NewResolveError(scoring.CodeAPIError, op+" failed", err)
	}
}

func cacheKey(source, company, role string) string {
	return "resolve:" + source + ":" + company + ":" + role
}

func (r *Resolver) cachedTasks(ctx context.Context, key string) ([]scoring.TaskRecord, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var tasks []scoring.TaskRecord
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, false
	}
	return tasks, true
}

func (r *Resolver) storeTasks(ctx context.Context, key string, tasks []scoring.TaskRecord) {
	if r.cache == nil || len(tasks) == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.cacheTTL); err != nil {
		slog.Warn("resolver cache set failed", "key", key, "error", err)
	}
}

func (r *Resolver) cachedConsolidated(ctx context.Context, key string) ([]workflow.ConsolidatedTask, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var rows []workflow.ConsolidatedTask
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (r *Resolver) storeConsolidated(ctx context.Context, key string, rows []workflow.ConsolidatedTask) {
	if r.cache == nil || len(rows) == 0 {
		return
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.cacheTTL); err != nil {
		slog.Warn("resolver cache set failed", "key", key, "error", err)
	}
}
