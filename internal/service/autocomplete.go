package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskfolio/autoassess/internal/adapter/otel"
	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/port/database"
)

// Suggestion is one autocomplete hit.
type Suggestion struct {
	TaskName string           `json:"task_name"`
	TaskType scoring.TaskType `json:"task_type"`
}

// RefreshSummary reports the outcome of a batch refresh run.
type RefreshSummary struct {
	JobID     string `json:"job_id"`
	Pairs     int    `json:"pairs"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// AutocompleteService serves prefix searches over the denormalized task
// projection, refreshing a (company, role) pair synchronously when its
// rows have gone stale. Reads are always fresh at the cost of the
// occasional blocking recompute.
type AutocompleteService struct {
	store    database.Store
	resolver *Resolver
	maxAge   time.Duration
	cap      int
	metrics  *otel.Metrics
	now      func() time.Time
}

// NewAutocompleteService creates the autocomplete cache service.
func NewAutocompleteService(store database.Store, resolver *Resolver, maxAge time.Duration, resultCap int, metrics *otel.Metrics) *AutocompleteService {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if resultCap < 1 {
		resultCap = 50
	}
	return &AutocompleteService{
		store:    store,
		resolver: resolver,
		maxAge:   maxAge,
		cap:      resultCap,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Search returns up to the result cap of task names starting with prefix
// for (company, role), optionally filtered by task type. A stale or
// missing pair is fully refreshed before the query runs.
func (a *AutocompleteService) Search(ctx context.Context, company, role, prefix string, taskType scoring.TaskType) ([]Suggestion, error) {
	if company == "" || role == "" {
		return nil, scoring.NewResolveError(scoring.CodeInvalidParameters, "company and role are required", nil)
	}

	fresh, err := a.isFresh(ctx, company, role)
	if err != nil {
		return nil, err
	}
	if !fresh {
		if err := a.RefreshPair(ctx, company, role); err != nil {
			return nil, err
		}
	}

	entries, err := a.store.SearchAutocomplete(ctx, company, role, prefix, taskType, a.cap)
	if err != nil {
		return nil, fmt.Errorf("autocomplete search: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(entries))
	for _, e := range entries {
		suggestions = append(suggestions, Suggestion{TaskName: e.TaskName, TaskType: e.TaskType})
	}
	return suggestions, nil
}

// RefreshPair resolves the full uncapped task list for (company, role) and
// upserts one autocomplete row per task.
func (a *AutocompleteService) RefreshPair(ctx context.Context, company, role string) error {
	source, tasks, err := a.resolver.Resolve(ctx, &scoring.ScoreRequest{Company: company, Role: role}, ModeAutocomplete)
	if err != nil {
		return fmt.Errorf("autocomplete refresh %q/%q: %w", company, role, err)
	}

	for _, t := range tasks {
		entry := &database.AutocompleteEntry{
			TaskName: t.TaskName,
			Company:  company,
			Role:     role,
			TaskType: t.TaskType,
			Source:   source,
		}
		if err := a.store.UpsertAutocomplete(ctx, entry); err != nil {
			return fmt.Errorf("autocomplete upsert %q: %w", t.TaskName, err)
		}
	}

	if a.metrics != nil {
		a.metrics.RefreshRuns.Add(ctx, 1)
	}
	slog.Info("autocomplete refreshed", "company", company, "role", role, "source", source, "tasks", len(tasks))
	return nil
}

// RefreshAll refreshes every known (company, role) pair one at a time.
// Upstream providers rate-limit aggressively, so the pairs are never
// refreshed in parallel. A failed pair is logged and counted; the run
// continues.
func (a *AutocompleteService) RefreshAll(ctx context.Context) (*RefreshSummary, error) {
	pairs, err := a.store.ListAutocompletePairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list autocomplete pairs: %w", err)
	}

	summary := &RefreshSummary{
		JobID: uuid.NewString(),
		Pairs: len(pairs),
	}
	slog.Info("autocomplete batch refresh started", "job_id", summary.JobID, "pairs", len(pairs))

	for _, p := range pairs {
		if err := a.RefreshPair(ctx, p.Company, p.Role); err != nil {
			slog.Error("autocomplete pair refresh failed",
				"job_id", summary.JobID, "company", p.Company, "role", p.Role, "error", err)
			summary.Failed++
			continue
		}
		summary.Succeeded++
	}

	slog.Info("autocomplete batch refresh finished",
		"job_id", summary.JobID, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

func (a *AutocompleteService) isFresh(ctx context.Context, company, role string) (bool, error) {
	latest, found, err := a.store.LatestAutocompleteRefresh(ctx, company, role)
	if err != nil {
		return false, fmt.Errorf("autocomplete staleness check: %w", err)
	}
	if !found {
		return false, nil
	}
	return latest.After(a.now().Add(-a.maxAge)), nil
}
