package http

import (
	"context"
	"net/http"

	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/service"
)

const maxBodyBytes = 1 << 20

// Scorer runs the uncached scoring pipeline.
type Scorer interface {
	Score(ctx context.Context, req *scoring.ScoreRequest) ([]scoring.TaskScoreSummary, error)
}

// Feasibility serves the persistent feasibility cache.
type Feasibility interface {
	GetOrRefresh(ctx context.Context, company, role string, taskNames []string) ([]scoring.TaskScoreSummary, error)
}

// Autocomplete serves prefix search and refresh maintenance.
type Autocomplete interface {
	Search(ctx context.Context, company, role, prefix string, taskType scoring.TaskType) ([]service.Suggestion, error)
	RefreshPair(ctx context.Context, company, role string) error
	RefreshAll(ctx context.Context) (*service.RefreshSummary, error)
}

// Handlers bundles the service dependencies of the HTTP surface.
type Handlers struct {
	Scores       Scorer
	Feasibility  Feasibility
	Autocomplete Autocomplete
}

type scoresResponse struct {
	Tasks []scoring.TaskScoreSummary `json:"tasks"`
}

// HandleScore runs the full pipeline for the request's task source, without
// touching the feasibility cache.
func (h *Handlers) HandleScore(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[scoring.ScoreRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}

	summaries, err := h.Scores.Score(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "task source not found")
		return
	}
	writeJSON(w, http.StatusOK, scoresResponse{Tasks: summaries})
}

type feasibilityRequest struct {
	Company string   `json:"company"`
	Role    string   `json:"role"`
	Tasks   []string `json:"tasks,omitempty"`
}

// HandleFeasibility serves cached summaries for a (company, role) pair,
// recomputing when coverage or freshness is insufficient.
func (h *Handlers) HandleFeasibility(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[feasibilityRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.Company, "company") || !requireField(w, req.Role, "role") {
		return
	}

	summaries, err := h.Feasibility.GetOrRefresh(r.Context(), req.Company, req.Role, req.Tasks)
	if err != nil {
		writeDomainError(w, err, "no feasibility data for pair")
		return
	}
	writeJSON(w, http.StatusOK, scoresResponse{Tasks: summaries})
}

type autocompleteResponse struct {
	Suggestions []service.Suggestion `json:"suggestions"`
}

// HandleAutocomplete serves prefix suggestions, refreshing the pair first
// when its rows are stale.
func (h *Handlers) HandleAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	company := q.Get("company")
	role := q.Get("role")
	if !requireField(w, company, "company") || !requireField(w, role, "role") {
		return
	}

	suggestions, err := h.Autocomplete.Search(r.Context(), company, role,
		q.Get("prefix"), scoring.TaskType(q.Get("task_type")))
	if err != nil {
		writeDomainError(w, err, "no autocomplete data for pair")
		return
	}
	writeJSON(w, http.StatusOK, autocompleteResponse{Suggestions: suggestions})
}

type refreshRequest struct {
	Company string `json:"company"`
	Role    string `json:"role"`
}

// HandleRefreshPair force-refreshes the autocomplete rows of one pair.
func (h *Handlers) HandleRefreshPair(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[refreshRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if !requireField(w, req.Company, "company") || !requireField(w, req.Role, "role") {
		return
	}

	if err := h.Autocomplete.RefreshPair(r.Context(), req.Company, req.Role); err != nil {
		writeDomainError(w, err, "pair not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// HandleRefreshAll runs the sequential batch refresh over every known pair.
func (h *Handlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Autocomplete.RefreshAll(r.Context())
	if err != nil {
		writeDomainError(w, err, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
