package service

import "testing"

func TestParseScoresTagBlock(t *testing.T) {
	raw := `Here are my scores.
<scores>[{"task": "Write report", "score": 75, "reason": "templated"}]</scores>
Done.`

	got := ParseScores(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 score, got %d", len(got))
	}
	if got[0].Task != "Write report" || got[0].Score != 75 {
		t.Fatalf("unexpected score: %+v", got[0])
	}
}

func TestParseScoresFencedBlock(t *testing.T) {
	raw := "```json\n[{\"task\": \"Triage tickets\", \"score\": 60, \"reason\": \"routing\"}]\n```"

	got := ParseScores(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 score, got %d", len(got))
	}
	if got[0].Task != "Triage tickets" {
		t.Fatalf("unexpected task: %q", got[0].Task)
	}
}

func TestParseScoresBareJSON(t *testing.T) {
	raw := `  [{"task": "Audit logs", "score": 40, "reason": ""}, {"task": "Pay invoices", "score": 85, "reason": "rules"}]  `

	got := ParseScores(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(got))
	}
	if got[1].Score != 85 {
		t.Fatalf("expected 85, got %v", got[1].Score)
	}
}

func TestParseScoresFenceInsideTag(t *testing.T) {
	raw := "<scores>\n```json\n[{\"task\": \"Plan sprint\", \"score\": 30, \"reason\": \"judgment\"}]\n```\n</scores>"

	got := ParseScores(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 score, got %d", len(got))
	}
	if got[0].Task != "Plan sprint" {
		t.Fatalf("unexpected task: %q", got[0].Task)
	}
}

func TestParseScoresMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"prose", "I cannot score these tasks."},
		{"truncated json", `[{"task": "Ship code", "score":`},
		{"empty", ""},
		{"empty list", "[]"},
		{"wrong shape", `{"task": "Ship code", "score": 10}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseScores(tc.raw); got != nil {
				t.Fatalf("expected nil, got %+v", got)
			}
		})
	}
}
