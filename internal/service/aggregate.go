package service

import (
	"github.com/taskfolio/autoassess/internal/domain/scoring"
)

// Aggregate folds per-model score lists into one summary per requested
// task, preserving the resolver's task order. Matching is by exact task
// name. A task no model scored gets zeroed statistics and the no_data
// state; a single sample has variance 0; two or more use sample variance.
func Aggregate(requested []scoring.TaskRecord, results []scoring.ModelScoreResult) []scoring.TaskScoreSummary {
	summaries := make([]scoring.TaskScoreSummary, 0, len(requested))

	for _, rec := range requested {
		var modelScores []scoring.ModelScore
		for _, res := range results {
			for _, s := range res.Scores {
				if s.Task == rec.TaskName {
					modelScores = append(modelScores, scoring.ModelScore{
						Model:  res.Model,
						Score:  s.Score,
						Reason: s.Reason,
					})
					break
				}
			}
		}

		mean, variance := meanAndVariance(modelScores)
		state := scoring.ScoreStateScored
		if len(modelScores) == 0 {
			state = scoring.ScoreStateNoData
		}

		summaries = append(summaries, scoring.TaskScoreSummary{
			TaskName:    rec.TaskName,
			TaskType:    rec.TaskType,
			MeanScore:   mean,
			Variance:    variance,
			ScoreState:  state,
			ModelScores: modelScores,
		})
	}

	return summaries
}

// meanAndVariance returns the arithmetic mean and the sample variance
// (n-1 denominator) of the model scores. Zero or one samples yield
// variance 0.
func meanAndVariance(scores []scoring.ModelScore) (mean, variance float64) {
	n := float64(len(scores))
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	mean = sum / n

	if n < 2 {
		return mean, 0
	}

	var sq float64
	for _, s := range scores {
		d := s.Score - mean
		sq += d * d
	}
	return mean, sq / (n - 1)
}
