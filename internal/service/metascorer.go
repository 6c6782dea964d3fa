package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/port/llm"
)

// MetaScorer runs the reconciliation pass: the aggregated table is sent to
// a meta model, whose per-task verdicts are appended to each summary under
// the synthetic model name. This is the only pipeline stage allowed to
// fail the request.
type MetaScorer struct {
	completer llm.Completer
	primary   scoring.ModelConfig
	fallback  scoring.ModelConfig
}

// NewMetaScorer creates a meta-scorer with a primary model and one fallback.
func NewMetaScorer(completer llm.Completer, primary, fallback scoring.ModelConfig) *MetaScorer {
	return &MetaScorer{completer: completer, primary: primary, fallback: fallback}
}

// Reconcile sends the aggregated summaries to the meta model and appends
// its verdict to each summary's model list. An unparseable primary response
// is retried once on the fallback model; if both fail an error is returned
// and the summaries are left without the synthetic entries.
func (m *MetaScorer) Reconcile(ctx context.Context, summaries []scoring.TaskScoreSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	table := serializeSummaryTable(summaries)

	verdicts, err := m.callModel(ctx, m.primary, table)
	if err != nil {
		slog.Warn("meta scoring failed on primary, retrying fallback",
			"primary", m.primary.Model, "fallback", m.fallback.Model, "error", err)
		verdicts, err = m.callModel(ctx, m.fallback, table)
		if err != nil {
			return fmt.Errorf("%w on primary and fallback: %v", scoring.ErrReconciliation, err)
		}
	}

	byTask := make(map[string]scoring.ModelTaskScore, len(verdicts))
	for _, v := range verdicts {
		byTask[v.Task] = v
	}

	for i := range summaries {
		entry := scoring.ModelScore{Model: scoring.MetaModelName}
		if v, ok := byTask[summaries[i].TaskName]; ok {
			entry.Score = v.Score
			entry.Reason = v.Reason
		}
		summaries[i].ModelScores = append(summaries[i].ModelScores, entry)
	}

	return nil
}

func (m *MetaScorer) callModel(ctx context.Context, cfg scoring.ModelConfig, table string) ([]scoring.ModelTaskScore, error) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	raw, err := m.completer.Complete(callCtx, llm.CompletionRequest{
		Model:        cfg.Model,
		Provider:     cfg.Provider,
		PromptName:   cfg.PromptName,
		Placeholders: map[string]string{"score_table": table},
		Timeout:      cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("meta completion %s: %w", cfg.Model, err)
	}

	verdicts := ParseScores(raw)
	if verdicts == nil {
		return nil, fmt.Errorf("meta response unparseable from %s", cfg.Model)
	}
	return verdicts, nil
}

// serializeSummaryTable renders the aggregated scores as a pipe-separated
// table, one task per line.
func serializeSummaryTable(summaries []scoring.TaskScoreSummary) string {
	var b strings.Builder
	for _, s := range summaries {
		b.WriteString(s.TaskName)
		b.WriteString(" | ")
		b.WriteString(string(s.TaskType))
		b.WriteString(" | ")
		b.WriteString(strconv.FormatFloat(s.MeanScore, 'f', -1, 64))
		b.WriteString("\n")
	}
	return b.String()
}
