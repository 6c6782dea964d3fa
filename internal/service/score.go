package service

import (
	"context"
	"time"

	"github.com/taskfolio/autoassess/internal/adapter/otel"
	"github.com/taskfolio/autoassess/internal/domain/scoring"
)

// ScoreService runs the full pipeline: resolve, fan out to the scoring
// models, aggregate, reconcile.
type ScoreService struct {
	resolver   *Resolver
	scorer     *Scorer
	metaScorer *MetaScorer
	models     []scoring.ModelConfig
	metrics    *otel.Metrics
}

// NewScoreService creates the scoring pipeline.
func NewScoreService(resolver *Resolver, scorer *Scorer, metaScorer *MetaScorer, models []scoring.ModelConfig, metrics *otel.Metrics) *ScoreService {
	return &ScoreService{
		resolver:   resolver,
		scorer:     scorer,
		metaScorer: metaScorer,
		models:     models,
		metrics:    metrics,
	}
}

// Score resolves the request's task list and produces one reconciled
// summary per task, in resolver order. Upstream scoring failures degrade
// to partial or empty model lists; only resolution failures and a double
// reconciliation failure surface as errors.
func (s *ScoreService) Score(ctx context.Context, req *scoring.ScoreRequest) ([]scoring.TaskScoreSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	_, tasks, err := s.resolver.Resolve(ctx, req, ModeScoring)
	if err != nil {
		return nil, err
	}

	results := s.scorer.ScoreTasks(ctx, tasks, s.models)
	summaries := Aggregate(tasks, results)

	if err := s.metaScorer.Reconcile(ctx, summaries); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ScoringDuration.Record(ctx, time.Since(start).Seconds())
	}
	return summaries, nil
}

// ScoreTaskList runs the pipeline over an already-resolved task list. The
// feasibility cache uses it after deciding the recompute set itself.
func (s *ScoreService) ScoreTaskList(ctx context.Context, tasks []scoring.TaskRecord) ([]scoring.TaskScoreSummary, error) {
	start := time.Now()

	results := s.scorer.ScoreTasks(ctx, tasks, s.models)
	summaries := Aggregate(tasks, results)

	if err := s.metaScorer.Reconcile(ctx, summaries); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ScoringDuration.Record(ctx, time.Since(start).Seconds())
	}
	return summaries, nil
}

// Resolver exposes the pipeline's resolver for callers that need the raw
// task list.
func (s *ScoreService) Resolver() *Resolver {
	return s.resolver
}
