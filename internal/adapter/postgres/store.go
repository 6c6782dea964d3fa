package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskfolio/autoassess/internal/domain"
	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/port/database"
)

// querier is the statement surface shared by *pgxpool.Pool and pgx.Tx,
// letting every Store method run on either the pool or a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements database.Store using PostgreSQL. A Store is either
// pool-backed (the usual case) or bound to a single transaction by
// WithPairLock; tx-bound stores have a nil pool.
type Store struct {
	db   querier
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// --- Feasibility cache ---

func (s *Store) GetFeasibility(ctx context.Context, companyID, roleQuery string, taskNames []string) ([]database.FeasibilityEntry, error) {
	query := `SELECT company_id, role_query, task_name, task_type, mean_score, variance, score_state, model_scores, updated_on
	          FROM feasibility_cache WHERE company_id = $1 AND role_query = $2`
	args := []any{companyID, roleQuery}
	if len(taskNames) > 0 {
		query += ` AND task_name = ANY($3)`
		args = append(args, taskNames)
	}
	query += ` ORDER BY task_name ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get feasibility: %w", err)
	}
	defer rows.Close()

	var entries []database.FeasibilityEntry
	for rows.Next() {
		e, err := scanFeasibility(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) UpsertFeasibility(ctx context.Context, e *database.FeasibilityEntry) error {
	scoresJSON, err := json.Marshal(e.ModelScores)
	if err != nil {
		return fmt.Errorf("marshal model_scores: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO feasibility_cache (company_id, role_query, task_name, task_type, mean_score, variance, score_state, model_scores)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (company_id, role_query, task_name) DO UPDATE SET
		   task_type = EXCLUDED.task_type,
		   mean_score = EXCLUDED.mean_score,
		   variance = EXCLUDED.variance,
		   score_state = EXCLUDED.score_state,
		   model_scores = EXCLUDED.model_scores,
		   updated_on = now()
		 RETURNING updated_on`,
		e.CompanyID, e.RoleQuery, e.TaskName, string(e.TaskType), e.MeanScore, e.Variance, string(e.ScoreState), scoresJSON,
	).Scan(&e.UpdatedOn)
	if err != nil {
		return fmt.Errorf("upsert feasibility %q: %w", e.TaskName, err)
	}
	return nil
}

// WithPairLock serializes concurrent recomputes of one (company, role) pair
// using a transaction-scoped advisory lock. fn runs against a Store bound to
// the lock-holding transaction, so the whole recompute occupies exactly one
// pooled connection and its upserts roll back together if fn fails. The lock
// is released when the transaction commits or rolls back.
func (s *Store) WithPairLock(ctx context.Context, company, role string, fn func(ctx context.Context, tx database.Store) error) error {
	if s.pool == nil {
		return errors.New("pair lock: store is already transaction-bound")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, company+"|"+role,
	); err != nil {
		return fmt.Errorf("acquire pair lock: %w", err)
	}

	if err := fn(ctx, &Store{db: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// --- Autocomplete cache ---

func (s *Store) SearchAutocomplete(ctx context.Context, company, role, prefix string, taskType scoring.TaskType, limit int) ([]database.AutocompleteEntry, error) {
	query := `SELECT task_name, company, role, task_type, source, created_at, updated_at
	          FROM autocomplete_cache
	          WHERE company = $1 AND role = $2 AND task_name LIKE $3 || '%'`
	args := []any{company, role, prefix}
	if taskType != "" {
		query += ` AND task_type = $4`
		args = append(args, string(taskType))
	}
	query += fmt.Sprintf(` ORDER BY length(task_name) ASC, task_name ASC LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search autocomplete: %w", err)
	}
	defer rows.Close()

	var entries []database.AutocompleteEntry
	for rows.Next() {
		var e database.AutocompleteEntry
		if err := rows.Scan(&e.TaskName, &e.Company, &e.Role, &e.TaskType, &e.Source, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan autocomplete: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) UpsertAutocomplete(ctx context.Context, e *database.AutocompleteEntry) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO autocomplete_cache (task_name, company, role, task_type, source)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (task_name, company, role) DO UPDATE SET
		   task_type = EXCLUDED.task_type,
		   source = EXCLUDED.source,
		   updated_at = now()
		 RETURNING created_at, updated_at`,
		e.TaskName, e.Company, e.Role, string(e.TaskType), e.Source,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert autocomplete %q: %w", e.TaskName, err)
	}
	return nil
}

func (s *Store) LatestAutocompleteRefresh(ctx context.Context, company, role string) (time.Time, bool, error) {
	// max() over zero rows yields NULL, so scan through a pointer.
	var latest *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT max(updated_at) FROM autocomplete_cache WHERE company = $1 AND role = $2`,
		company, role,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest autocomplete refresh: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

func (s *Store) ListAutocompletePairs(ctx context.Context) ([]database.Pair, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT company, role FROM autocomplete_cache ORDER BY company, role`)
	if err != nil {
		return nil, fmt.Errorf("list autocomplete pairs: %w", err)
	}
	defer rows.Close()

	var pairs []database.Pair
	for rows.Next() {
		var p database.Pair
		if err := rows.Scan(&p.Company, &p.Role); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// --- Workflow tasks ---

func (s *Store) GetWorkflowTasks(ctx context.Context, workflowID string) ([]database.WorkflowTask, error) {
	rows, err := s.db.Query(ctx,
		`SELECT task_name, automation_priority, position
		 FROM workflow_tasks WHERE workflow_id = $1 ORDER BY position ASC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("get workflow tasks %s: %w", workflowID, err)
	}
	defer rows.Close()

	var tasks []database.WorkflowTask
	for rows.Next() {
		var t database.WorkflowTask
		if err := rows.Scan(&t.TaskName, &t.AutomationPriority, &t.Position); err != nil {
			return nil, fmt.Errorf("scan workflow task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		// Distinguish an unknown workflow from an empty one.
		var exists bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)`, workflowID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check workflow %s: %w", workflowID, err)
		}
		if !exists {
			return nil, fmt.Errorf("workflow %s: %w", workflowID, domain.ErrNotFound)
		}
	}
	return tasks, nil
}

func (s *Store) FindWorkflowID(ctx context.Context, name, functionID string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM workflows WHERE name = $1 AND function_id = $2`, name, functionID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("workflow %q/%q: %w", name, functionID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("find workflow %q/%q: %w", name, functionID, err)
	}
	return id, nil
}

// --- Scanners ---

type scannable interface {
	Scan(dest ...any) error
}

func scanFeasibility(row scannable) (database.FeasibilityEntry, error) {
	var e database.FeasibilityEntry
	var scoresJSON []byte
	err := row.Scan(&e.CompanyID, &e.RoleQuery, &e.TaskName, &e.TaskType, &e.MeanScore, &e.Variance, &e.ScoreState, &scoresJSON, &e.UpdatedOn)
	if err != nil {
		return e, fmt.Errorf("scan feasibility: %w", err)
	}
	if scoresJSON != nil {
		if err := json.Unmarshal(scoresJSON, &e.ModelScores); err != nil {
			return e, fmt.Errorf("unmarshal model_scores: %w", err)
		}
	}
	return e, nil
}
