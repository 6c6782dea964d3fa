package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/taskfolio/autoassess/internal/adapter/otel"
	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/port/llm"
)

// Scorer fans one task list out to a set of scoring models, bounding the
// number of in-flight completion calls.
type Scorer struct {
	completer llm.Completer
	slots     *semaphore.Weighted
	metrics   *otel.Metrics
}

// NewScorer creates a scorer with the given concurrency bound.
func NewScorer(completer llm.Completer, maxConcurrency int64, metrics *otel.Metrics) *Scorer {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scorer{
		completer: completer,
		slots:     semaphore.NewWeighted(maxConcurrency),
		metrics:   metrics,
	}
}

// ScoreTasks sends the full task list to every configured model and returns
// the results that both completed and parsed. A model that errors, times
// out or returns unparseable text is logged and omitted; zero successes is
// a valid outcome.
func (s *Scorer) ScoreTasks(ctx context.Context, tasks []scoring.TaskRecord, configs []scoring.ModelConfig) []scoring.ModelScoreResult {
	taskList := serializeTaskList(tasks)

	var (
		mu      sync.Mutex
		results []scoring.ModelScoreResult
		wg      sync.WaitGroup
	)

	for _, cfg := range configs {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			slog.Warn("scoring cancelled while waiting for slot", "model", cfg.Model, "error", err)
			break
		}

		wg.Add(1)
		go func(cfg scoring.ModelConfig) {
			defer wg.Done()
			defer s.slots.Release(1)

			res, ok := s.scoreOne(ctx, cfg, taskList)
			if !ok {
				return
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(cfg)
	}

	wg.Wait()
	return results
}

func (s *Scorer) scoreOne(ctx context.Context, cfg scoring.ModelConfig, taskList string) (scoring.ModelScoreResult, bool) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if s.metrics != nil {
		s.metrics.ModelCalls.Add(ctx, 1)
	}

	raw, err := s.completer.Complete(callCtx, llm.CompletionRequest{
		Model:        cfg.Model,
		Provider:     cfg.Provider,
		PromptName:   cfg.PromptName,
		Placeholders: map[string]string{"tasks": taskList},
		Timeout:      cfg.Timeout,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.ModelFailures.Add(ctx, 1)
		}
		slog.Warn("model scoring failed", "model", cfg.Model, "provider", cfg.Provider, "error", err)
		return scoring.ModelScoreResult{}, false
	}

	scores := ParseScores(raw)
	if scores == nil {
		if s.metrics != nil {
			s.metrics.ModelFailures.Add(ctx, 1)
		}
		slog.Warn("model response unparseable", "model", cfg.Model, "provider", cfg.Provider)
		return scoring.ModelScoreResult{}, false
	}

	return scoring.ModelScoreResult{
		Model:    cfg.Model,
		Provider: cfg.Provider,
		RawText:  raw,
		Scores:   scores,
	}, true
}

// serializeTaskList renders the resolved tasks as one line per task for
// prompt placeholder substitution.
func serializeTaskList(tasks []scoring.TaskRecord) string {
	var b strings.Builder
	for _, t := range tasks {
		b.WriteString(t.TaskName)
		b.WriteString(" | ")
		b.WriteString(string(t.TaskType))
		b.WriteString("\n")
	}
	return b.String()
}
