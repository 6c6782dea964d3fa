package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/port/llm"
)

func metaConfig(t *testing.T, model string) scoring.ModelConfig {
	t.Helper()
	cfg, err := scoring.NewModelConfig(model, "test", "task_feasibility_meta", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestReconcileAppendsEtter(t *testing.T) {
	completer := &mockCompleter{
		respond: func(req llm.CompletionRequest) (string, error) {
			if !strings.Contains(req.Placeholders["score_table"], "Write report | AI | 80") {
				return "", errors.New("missing table row")
			}
			return `[{"task": "Write report", "score": 78, "reason": "slightly high"}]`, nil
		},
	}
	m := NewMetaScorer(completer, metaConfig(t, "primary"), metaConfig(t, "fallback"))

	summaries := []scoring.TaskScoreSummary{{
		TaskName:  "Write report",
		TaskType:  scoring.TaskTypeAI,
		MeanScore: 80,
		ModelScores: []scoring.ModelScore{
			{Model: "m1", Score: 75},
			{Model: "m2", Score: 85},
		},
	}}

	if err := m.Reconcile(context.Background(), summaries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scores := summaries[0].ModelScores
	if len(scores) != 3 {
		t.Fatalf("expected 3 entries after reconciliation, got %d", len(scores))
	}
	last := scores[2]
	if last.Model != scoring.MetaModelName || last.Score != 78 {
		t.Fatalf("unexpected synthetic entry: %+v", last)
	}
}

func TestReconcileFallbackAfterUnparseablePrimary(t *testing.T) {
	completer := &mockCompleter{
		respond: func(req llm.CompletionRequest) (string, error) {
			if req.Model == "primary" {
				return "sorry, cannot help", nil
			}
			return `[{"task": "Write report", "score": 60, "reason": ""}]`, nil
		},
	}
	m := NewMetaScorer(completer, metaConfig(t, "primary"), metaConfig(t, "fallback"))

	summaries := []scoring.TaskScoreSummary{{TaskName: "Write report", TaskType: scoring.TaskTypeAI}}
	if err := m.Reconcile(context.Background(), summaries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completer.callCount() != 2 {
		t.Fatalf("expected primary + fallback calls, got %d", completer.callCount())
	}
	last := summaries[0].ModelScores[len(summaries[0].ModelScores)-1]
	if last.Score != 60 {
		t.Fatalf("expected fallback verdict 60, got %v", last.Score)
	}
}

func TestReconcileDoubleFailure(t *testing.T) {
	completer := &mockCompleter{
		respond: func(llm.CompletionRequest) (string, error) {
			return "", errors.New("gateway down")
		},
	}
	m := NewMetaScorer(completer, metaConfig(t, "primary"), metaConfig(t, "fallback"))

	summaries := []scoring.TaskScoreSummary{{TaskName: "Write report"}}
	err := m.Reconcile(context.Background(), summaries)
	if err == nil {
		t.Fatal("expected error when both models fail")
	}
	if len(summaries[0].ModelScores) != 0 {
		t.Fatalf("failed reconciliation must not append entries: %+v", summaries[0].ModelScores)
	}
}

func TestReconcileAbsentTaskGetsZeroEntry(t *testing.T) {
	completer := &mockCompleter{
		respond: func(llm.CompletionRequest) (string, error) {
			return `[{"task": "Write report", "score": 50, "reason": "r"}]`, nil
		},
	}
	m := NewMetaScorer(completer, metaConfig(t, "primary"), metaConfig(t, "fallback"))

	summaries := []scoring.TaskScoreSummary{
		{TaskName: "Write report"},
		{TaskName: "Forgotten task"},
	}
	if err := m.Reconcile(context.Background(), summaries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := summaries[1].ModelScores[len(summaries[1].ModelScores)-1]
	if last.Model != scoring.MetaModelName || last.Score != 0 || last.Reason != "" {
		t.Fatalf("expected zeroed synthetic entry, got %+v", last)
	}
}

func TestReconcileEmptySummaries(t *testing.T) {
	completer := &mockCompleter{}
	m := NewMetaScorer(completer, metaConfig(t, "primary"), metaConfig(t, "fallback"))

	if err := m.Reconcile(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completer.callCount() != 0 {
		t.Fatalf("no call expected for empty summaries, got %d", completer.callCount())
	}
}
