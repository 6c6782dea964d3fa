package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskfolio/autoassess/internal/adapter/otel"
	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/port/database"
)

// FeasibilityService serves scored tasks from the persistent feasibility
// cache, recomputing a (company, role) pair when coverage or freshness is
// insufficient.
type FeasibilityService struct {
	store     database.Store
	pipeline  *ScoreService
	staleDays int
	metrics   *otel.Metrics
	now       func() time.Time
}

// NewFeasibilityService creates the cache service.
func NewFeasibilityService(store database.Store, pipeline *ScoreService, staleDays int, metrics *otel.Metrics) *FeasibilityService {
	if staleDays < 1 {
		staleDays = 7
	}
	return &FeasibilityService{
		store:     store,
		pipeline:  pipeline,
		staleDays: staleDays,
		metrics:   metrics,
		now:       time.Now,
	}
}

// GetOrRefresh returns summaries for (company, role). With task names the
// read is exactly those tasks; without, everything cached for the pair.
// Cached rows are served only when every requested row exists and none is
// stale; otherwise the whole pair is recomputed and upserted under the
// pair's advisory lock, so concurrent requests recompute at most once.
func (f *FeasibilityService) GetOrRefresh(ctx context.Context, company, role string, taskNames []string) ([]scoring.TaskScoreSummary, error) {
	entries, err := f.store.GetFeasibility(ctx, company, role, taskNames)
	if err != nil {
		return nil, fmt.Errorf("feasibility read: %w", err)
	}

	if f.covered(entries, taskNames) {
		if f.metrics != nil {
			f.metrics.CacheHits.Add(ctx, int64(len(entries)))
		}
		return entriesToSummaries(entries), nil
	}

	if f.metrics != nil {
		f.metrics.CacheMisses.Add(ctx, 1)
	}

	var summaries []scoring.TaskScoreSummary
	err = f.store.WithPairLock(ctx, company, role, func(ctx context.Context, tx database.Store) error {
		// Re-check under the lock: a concurrent request may have finished
		// the recompute while this one waited. All statements go through
		// the tx-bound store so the recompute holds a single connection
		// and a failure rolls every upsert back.
		entries, err := tx.GetFeasibility(ctx, company, role, taskNames)
		if err != nil {
			return fmt.Errorf("feasibility re-read: %w", err)
		}
		if f.covered(entries, taskNames) {
			summaries = entriesToSummaries(entries)
			return nil
		}

		summaries, err = f.recompute(ctx, tx, company, role, taskNames)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (f *FeasibilityService) recompute(ctx context.Context, tx database.Store, company, role string, taskNames []string) ([]scoring.TaskScoreSummary, error) {
	var (
		tasks []scoring.TaskRecord
		err   error
	)
	if len(taskNames) > 0 {
		tasks, err = explicitTasks(taskNames)
		if err != nil {
			return nil, err
		}
	} else {
		_, tasks, err = f.pipeline.Resolver().Resolve(ctx, &scoring.ScoreRequest{Company: company, Role: role}, ModeScoring)
		if err != nil {
			return nil, err
		}
	}

	summaries, err := f.pipeline.ScoreTaskList(ctx, tasks)
	if err != nil {
		return nil, err
	}

	for _, s := range summaries {
		entry := &database.FeasibilityEntry{
			CompanyID:   company,
			RoleQuery:   role,
			TaskName:    s.TaskName,
			TaskType:    s.TaskType,
			MeanScore:   s.MeanScore,
			Variance:    s.Variance,
			ScoreState:  s.ScoreState,
			ModelScores: s.ModelScores,
		}
		if err := tx.UpsertFeasibility(ctx, entry); err != nil {
			return nil, fmt.Errorf("feasibility upsert %q: %w", s.TaskName, err)
		}
	}

	slog.Info("feasibility recomputed", "company", company, "role", role, "tasks", len(summaries))
	return summaries, nil
}

// covered reports whether the cached rows satisfy the request: every
// requested task present and no row at or past the staleness threshold.
func (f *FeasibilityService) covered(entries []database.FeasibilityEntry, taskNames []string) bool {
	if len(entries) == 0 {
		return false
	}

	cutoff := f.now().Add(-time.Duration(f.staleDays) * 24 * time.Hour)
	byName := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.UpdatedOn.After(cutoff) {
			return false
		}
		byName[e.TaskName] = struct{}{}
	}

	for _, name := range taskNames {
		if _, ok := byName[name]; !ok {
			return false
		}
	}
	return true
}

func entriesToSummaries(entries []database.FeasibilityEntry) []scoring.TaskScoreSummary {
	summaries := make([]scoring.TaskScoreSummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, scoring.TaskScoreSummary{
			TaskName:    e.TaskName,
			TaskType:    e.TaskType,
			MeanScore:   e.MeanScore,
			Variance:    e.Variance,
			ScoreState:  e.ScoreState,
			ModelScores: e.ModelScores,
		})
	}
	return summaries
}
