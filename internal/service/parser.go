package service

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/taskfolio/autoassess/internal/domain/scoring"
)

var (
	scoresTagRe   = regexp.MustCompile(`(?s)<scores>(.*?)</scores>`)
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ParseScores extracts the score list from a raw model response. Models wrap
// their JSON in different framings, so three candidates are tried in order:
// a <scores> tag block, a fenced code block, and the bare trimmed text. The
// first candidate that unmarshals into a non-empty list wins. A response
// that yields nothing returns nil; parsing never fails the pipeline.
func ParseScores(raw string) []scoring.ModelTaskScore {
	for _, candidate := range extractCandidates(raw) {
		var scores []scoring.ModelTaskScore
		if err := json.Unmarshal([]byte(candidate), &scores); err != nil {
			continue
		}
		if len(scores) > 0 {
			return scores
		}
	}

	slog.Warn("unparseable model response", "raw", truncate(raw, 500))
	return nil
}

func extractCandidates(raw string) []string {
	var candidates []string
	if m := scoresTagRe.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		candidates = append(candidates, trimmed)
	}
	return candidates
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
