package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/taskfolio/autoassess/internal/domain"
	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/port/database"
	"github.com/taskfolio/autoassess/internal/port/llm"
	"github.com/taskfolio/autoassess/internal/port/workflow"
)

// mockCompleter implements llm.Completer. respond picks the reply per
// request; calls records every request in arrival order.
type mockCompleter struct {
	mu      sync.Mutex
	calls   []llm.CompletionRequest
	respond func(req llm.CompletionRequest) (string, error)
}

func (m *mockCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.respond == nil {
		return "[]", nil
	}
	return m.respond(req)
}

func (m *mockCompleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockSource implements workflow.Source.
type mockSource struct {
	roleTasks    []workflow.RoleTask
	roleErr      error
	consolidated []workflow.ConsolidatedTask
	consolidErr  error

	roleCalls     int
	consolidCalls int
}

func (m *mockSource) RoleAnalysis(_ context.Context, _, _ string) ([]workflow.RoleTask, error) {
	m.roleCalls++
	return m.roleTasks, m.roleErr
}

func (m *mockSource) Consolidate(_ context.Context, _ string) ([]workflow.ConsolidatedTask, error) {
	m.consolidCalls++
	return m.consolidated, m.consolidErr
}

// mockStore implements database.Store in memory.
type mockStore struct {
	mu sync.Mutex

	feasibility []database.FeasibilityEntry
	getErr      error
	upsertErr   error
	lockCalls   int
	onLock      func()
	lockStore   database.Store // store handed to the lock callback; defaults to m

	autocomplete  []database.AutocompleteEntry
	latestRefresh time.Time
	hasRefresh    bool
	pairs         []database.Pair
	searchErr     error
	acUpsertErr   error

	workflowTasks map[string][]database.WorkflowTask
	workflowIDs   map[string]string
	wfErr         error
}

func (m *mockStore) GetFeasibility(_ context.Context, companyID, roleQuery string, taskNames []string) ([]database.FeasibilityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []database.FeasibilityEntry
	for _, e := range m.feasibility {
		if e.CompanyID != companyID || e.RoleQuery != roleQuery {
			continue
		}
		if len(taskNames) > 0 && !containsName(taskNames, e.TaskName) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockStore) UpsertFeasibility(_ context.Context, e *database.FeasibilityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	e.UpdatedOn = time.Now()
	for i, existing := range m.feasibility {
		if existing.CompanyID == e.CompanyID && existing.RoleQuery == e.RoleQuery && existing.TaskName == e.TaskName {
			m.feasibility[i] = *e
			return nil
		}
	}
	m.feasibility = append(m.feasibility, *e)
	return nil
}

func (m *mockStore) WithPairLock(ctx context.Context, _, _ string, fn func(ctx context.Context, tx database.Store) error) error {
	m.mu.Lock()
	m.lockCalls++
	hook := m.onLock
	inner := m.lockStore
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if inner == nil {
		inner = m
	}
	return fn(ctx, inner)
}

func (m *mockStore) SearchAutocomplete(_ context.Context, company, role, prefix string, taskType scoring.TaskType, limit int) ([]database.AutocompleteEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var out []database.AutocompleteEntry
	for _, e := range m.autocomplete {
		if e.Company != company || e.Role != role {
			continue
		}
		if prefix != "" && !strings.HasPrefix(e.TaskName, prefix) {
			continue
		}
		if taskType != "" && e.TaskType != taskType {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) UpsertAutocomplete(_ context.Context, e *database.AutocompleteEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acUpsertErr != nil {
		return m.acUpsertErr
	}
	e.UpdatedAt = time.Now()
	for i, existing := range m.autocomplete {
		if existing.TaskName == e.TaskName && existing.Company == e.Company && existing.Role == e.Role {
			m.autocomplete[i] = *e
			return nil
		}
	}
	e.CreatedAt = e.UpdatedAt
	m.autocomplete = append(m.autocomplete, *e)
	return nil
}

func (m *mockStore) LatestAutocompleteRefresh(_ context.Context, _, _ string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestRefresh, m.hasRefresh, nil
}

func (m *mockStore) ListAutocompletePairs(_ context.Context) ([]database.Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairs, nil
}

func (m *mockStore) GetWorkflowTasks(_ context.Context, workflowID string) ([]database.WorkflowTask, error) {
	if m.wfErr != nil {
		return nil, m.wfErr
	}
	tasks, ok := m.workflowTasks[workflowID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tasks, nil
}

func (m *mockStore) FindWorkflowID(_ context.Context, name, functionID string) (string, error) {
	if m.wfErr != nil {
		return "", m.wfErr
	}
	id, ok := m.workflowIDs[name+"/"+functionID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return id, nil
}

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
