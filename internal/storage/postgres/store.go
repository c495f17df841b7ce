// Package postgres implements the storage interfaces on PostgreSQL. Records
// are stored as JSONB documents with the query and dedup fields extracted
// into indexed columns; per-row atomicity matches the document-store
// semantics the services rely on.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/domain/codetask"
	"github.com/intexuraos/agents/internal/domain/linear"
	"github.com/intexuraos/agents/internal/domain/promptvault"
	"github.com/intexuraos/agents/internal/domain/research"
	"github.com/intexuraos/agents/internal/domain/visualization"
	"github.com/intexuraos/agents/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.ActionStore = (*Store)(nil)
var _ storage.CodeTaskStore = (*Store)(nil)
var _ storage.LinearStore = (*Store)(nil)
var _ storage.ResearchStore = (*Store)(nil)
var _ storage.NotionConnectionStore = (*Store)(nil)
var _ storage.VisualizationStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and applies pending migrations.
func Open(databaseURL string) (*Store, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return New(db), nil
}

// uniqueViolation is the postgres error code for a unique index violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func mapRowErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// --- ActionStore ------------------------------------------------------------

func (s *Store) CreateAction(ctx context.Context, act action.Action) (action.Action, error) {
	act.ID = uuid.NewString()
	now := time.Now().UTC()
	act.CreatedAt = now
	act.UpdatedAt = now

	doc, err := json.Marshal(act)
	if err != nil {
		return action.Action{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions (id, user_id, status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, act.ID, act.UserID, act.Status, doc, act.CreatedAt, act.UpdatedAt)
	if err != nil {
		return action.Action{}, err
	}
	return act, nil
}

func (s *Store) UpdateAction(ctx context.Context, act action.Action) (action.Action, error) {
	act.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(act)
	if err != nil {
		return action.Action{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE actions SET status = $2, doc = $3, updated_at = $4 WHERE id = $1
	`, act.ID, act.Status, doc, act.UpdatedAt)
	if err != nil {
		return action.Action{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return action.Action{}, storage.ErrNotFound
	}
	return act, nil
}

func (s *Store) GetAction(ctx context.Context, id string) (action.Action, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, `SELECT doc FROM actions WHERE id = $1`, id)
	if err != nil {
		return action.Action{}, mapRowErr(err)
	}
	var act action.Action
	if err := json.Unmarshal(doc, &act); err != nil {
		return action.Action{}, err
	}
	return act, nil
}

func (s *Store) ListActions(ctx context.Context, userID string) ([]action.Action, error) {
	return listDocs[action.Action](ctx, s.db, `
		SELECT doc FROM actions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

// --- CodeTaskStore ----------------------------------------------------------

func (s *Store) CreateCodeTask(ctx context.Context, task codetask.CodeTask) (codetask.CodeTask, error) {
	task.ID = uuid.NewString()
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	doc, err := json.Marshal(task)
	if err != nil {
		return codetask.CodeTask{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO code_tasks (id, user_id, status, system_prompt_hash, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, task.ID, task.UserID, task.Status, task.SystemPromptHash, doc, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		// The partial unique index on live tasks backs the dedup invariant;
		// losing a race surfaces as ErrDuplicate so the service can answer
		// per its dedup policy instead of treating the winner as its own.
		if isUniqueViolation(err) {
			return codetask.CodeTask{}, storage.ErrDuplicate
		}
		return codetask.CodeTask{}, err
	}
	return task, nil
}

func (s *Store) UpdateCodeTask(ctx context.Context, task codetask.CodeTask) (codetask.CodeTask, error) {
	task.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(task)
	if err != nil {
		return codetask.CodeTask{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE code_tasks SET status = $2, doc = $3, updated_at = $4 WHERE id = $1
	`, task.ID, task.Status, doc, task.UpdatedAt)
	if err != nil {
		return codetask.CodeTask{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return codetask.CodeTask{}, storage.ErrNotFound
	}
	return task, nil
}

func (s *Store) GetCodeTask(ctx context.Context, id string) (codetask.CodeTask, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, `SELECT doc FROM code_tasks WHERE id = $1`, id)
	if err != nil {
		return codetask.CodeTask{}, mapRowErr(err)
	}
	var task codetask.CodeTask
	if err := json.Unmarshal(doc, &task); err != nil {
		return codetask.CodeTask{}, err
	}
	return task, nil
}

func (s *Store) ListCodeTasks(ctx context.Context, userID string) ([]codetask.CodeTask, error) {
	return listDocs[codetask.CodeTask](ctx, s.db, `
		SELECT doc FROM code_tasks WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

func (s *Store) FindLiveCodeTask(ctx context.Context, userID, systemPromptHash string) (codetask.CodeTask, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, `
		SELECT doc FROM code_tasks
		WHERE user_id = $1 AND system_prompt_hash = $2 AND status IN ('dispatched', 'processing')
		ORDER BY created_at DESC LIMIT 1
	`, userID, systemPromptHash)
	if err != nil {
		return codetask.CodeTask{}, mapRowErr(err)
	}
	var task codetask.CodeTask
	if err := json.Unmarshal(doc, &task); err != nil {
		return codetask.CodeTask{}, err
	}
	return task, nil
}

// --- LinearStore ------------------------------------------------------------

func (s *Store) UpsertLinearConnection(ctx context.Context, conn linear.Connection) (linear.Connection, error) {
	now := time.Now().UTC()
	conn.ID = uuid.NewString()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	// The api token lives in its own column; the document marshal drops it.
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO linear_connections (id, user_id, api_token, team_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET api_token = EXCLUDED.api_token, team_id = EXCLUDED.team_id, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, conn.ID, conn.UserID, conn.APIToken, conn.TeamID, conn.CreatedAt, conn.UpdatedAt)
	if err := row.Scan(&conn.ID, &conn.CreatedAt); err != nil {
		return linear.Connection{}, err
	}
	return conn, nil
}

func (s *Store) GetLinearConnection(ctx context.Context, userID string) (linear.Connection, error) {
	var conn linear.Connection
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, api_token, team_id, created_at, updated_at
		FROM linear_connections WHERE user_id = $1
	`, userID)
	err := row.Scan(&conn.ID, &conn.UserID, &conn.APIToken, &conn.TeamID, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return linear.Connection{}, mapRowErr(err)
	}
	return conn, nil
}

func (s *Store) DeleteLinearConnection(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM linear_connections WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateIssueLink(ctx context.Context, link linear.IssueLink) (linear.IssueLink, error) {
	link.ID = uuid.NewString()
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now

	doc, err := json.Marshal(link)
	if err != nil {
		return linear.IssueLink{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO linear_issue_links (id, user_id, action_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, link.ID, link.UserID, link.ActionID, doc, link.CreatedAt, link.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return s.FindIssueLinkByAction(ctx, link.UserID, link.ActionID)
		}
		return linear.IssueLink{}, err
	}
	return link, nil
}

func (s *Store) FindIssueLinkByAction(ctx context.Context, userID, actionID string) (linear.IssueLink, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, `
		SELECT doc FROM linear_issue_links WHERE user_id = $1 AND action_id = $2
	`, userID, actionID)
	if err != nil {
		return linear.IssueLink{}, mapRowErr(err)
	}
	var link linear.IssueLink
	if err := json.Unmarshal(doc, &link); err != nil {
		return linear.IssueLink{}, err
	}
	return link, nil
}

func (s *Store) CreateFailedIssue(ctx context.Context, rec linear.FailedIssue) (linear.FailedIssue, error) {
	rec.ID = uuid.NewString()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	doc, err := json.Marshal(rec)
	if err != nil {
		return linear.FailedIssue{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO linear_failed_issues (id, user_id, status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.UserID, rec.Status, doc, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return linear.FailedIssue{}, err
	}
	return rec, nil
}

func (s *Store) UpdateFailedIssue(ctx context.Context, rec linear.FailedIssue) (linear.FailedIssue, error) {
	rec.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(rec)
	if err != nil {
		return linear.FailedIssue{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE linear_failed_issues SET status = $2, doc = $3, updated_at = $4 WHERE id = $1
	`, rec.ID, rec.Status, doc, rec.UpdatedAt)
	if err != nil {
		return linear.FailedIssue{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return linear.FailedIssue{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) GetFailedIssue(ctx context.Context, id string) (linear.FailedIssue, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, `SELECT doc FROM linear_failed_issues WHERE id = $1`, id)
	if err != nil {
		return linear.FailedIssue{}, mapRowErr(err)
	}
	var rec linear.FailedIssue
	if err := json.Unmarshal(doc, &rec); err != nil {
		return linear.FailedIssue{}, err
	}
	return rec, nil
}

func (s *Store) ListFailedIssues(ctx context.Context, userID string) ([]linear.FailedIssue, error) {
	return listDocs[linear.FailedIssue](ctx, s.db, `
		SELECT doc FROM linear_failed_issues WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

// --- ResearchStore ----------------------------------------------------------

func (s *Store) CreateResearchJob(ctx context.Context, job research.Job) (research.Job, error) {
	job.ID = uuid.NewString()
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	doc, err := json.Marshal(job)
	if err != nil {
		return research.Job{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO research_jobs (id, user_id, action_id, status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, job.ID, job.UserID, job.ActionID, job.Status, doc, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return research.Job{}, storage.ErrDuplicate
		}
		return research.Job{}, err
	}
	return job, nil
}

func (s *Store) UpdateResearchJob(ctx context.Context, job research.Job) (research.Job, error) {
	job.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(job)
	if err != nil {
		return research.Job{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE research_jobs SET status = $2, doc = $3, updated_at = $4 WHERE id = $1
	`, job.ID, job.Status, doc, job.UpdatedAt)
	if err != nil {
		return research.Job{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return research.Job{}, storage.ErrNotFound
	}
	return job, nil
}

func (s *Store) GetResearchJob(ctx context.Context, id string) (research.Job, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, `SELECT doc FROM research_jobs WHERE id = $1`, id)
	if err != nil {
		return research.Job{}, mapRowErr(err)
	}
	var job research.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return research.Job{}, err
	}
	return job, nil
}

func (s *Store) ListResearchJobs(ctx context.Context, userID string) ([]research.Job, error) {
	return listDocs[research.Job](ctx, s.db, `
		SELECT doc FROM research_jobs WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

func (s *Store) FindResearchJobByAction(ctx context.Context, userID, actionID string) (research.Job, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, `
		SELECT doc FROM research_jobs WHERE user_id = $1 AND action_id = $2
	`, userID, actionID)
	if err != nil {
		return research.Job{}, mapRowErr(err)
	}
	var job research.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return research.Job{}, err
	}
	return job, nil
}

func (s *Store) ClaimPendingResearchJobs(ctx context.Context, limit int) ([]research.Job, error) {
	// SKIP LOCKED keeps concurrent pollers from claiming the same job.
	rows, err := s.db.QueryContext(ctx, `
		UPDATE research_jobs
		SET status = 'processing',
		    doc = jsonb_set(doc, '{status}', '"processing"'),
		    updated_at = NOW()
		WHERE id IN (
			SELECT id FROM research_jobs
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING doc
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []research.Job
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var job research.Job
		if err := json.Unmarshal(doc, &job); err != nil {
			return nil, err
		}
		job.Status = research.StatusProcessing
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// --- NotionConnectionStore --------------------------------------------------

func (s *Store) UpsertNotionConnection(ctx context.Context, conn promptvault.Connection) (promptvault.Connection, error) {
	now := time.Now().UTC()
	conn.ID = uuid.NewString()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO notion_connections (id, user_id, token, database_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token, database_id = EXCLUDED.database_id, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, conn.ID, conn.UserID, conn.Token, conn.DatabaseID, conn.CreatedAt, conn.UpdatedAt)
	if err := row.Scan(&conn.ID, &conn.CreatedAt); err != nil {
		return promptvault.Connection{}, err
	}
	return conn, nil
}

func (s *Store) GetNotionConnection(ctx context.Context, userID string) (promptvault.Connection, error) {
	var conn promptvault.Connection
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, database_id, created_at, updated_at
		FROM notion_connections WHERE user_id = $1
	`, userID)
	err := row.Scan(&conn.ID, &conn.UserID, &conn.Token, &conn.DatabaseID, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return promptvault.Connection{}, mapRowErr(err)
	}
	return conn, nil
}

func (s *Store) DeleteNotionConnection(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notion_connections WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- VisualizationStore -----------------------------------------------------

func (s *Store) CreateVisualization(ctx context.Context, vis visualization.Visualization) (visualization.Visualization, error) {
	vis.ID = uuid.NewString()
	now := time.Now().UTC()
	vis.CreatedAt = now
	vis.UpdatedAt = now

	doc, err := json.Marshal(vis)
	if err != nil {
		return visualization.Visualization{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO visualizations (id, user_id, status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, vis.ID, vis.UserID, vis.Status, doc, vis.CreatedAt, vis.UpdatedAt)
	if err != nil {
		return visualization.Visualization{}, err
	}
	return vis, nil
}

func (s *Store) UpdateVisualization(ctx context.Context, vis visualization.Visualization) (visualization.Visualization, error) {
	vis.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(vis)
	if err != nil {
		return visualization.Visualization{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE visualizations SET status = $2, doc = $3, updated_at = $4 WHERE id = $1
	`, vis.ID, vis.Status, doc, vis.UpdatedAt)
	if err != nil {
		return visualization.Visualization{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return visualization.Visualization{}, storage.ErrNotFound
	}
	return vis, nil
}

func (s *Store) GetVisualization(ctx context.Context, id string) (visualization.Visualization, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, `SELECT doc FROM visualizations WHERE id = $1`, id)
	if err != nil {
		return visualization.Visualization{}, mapRowErr(err)
	}
	var vis visualization.Visualization
	if err := json.Unmarshal(doc, &vis); err != nil {
		return visualization.Visualization{}, err
	}
	return vis, nil
}

func (s *Store) ListVisualizations(ctx context.Context, userID string) ([]visualization.Visualization, error) {
	return listDocs[visualization.Visualization](ctx, s.db, `
		SELECT doc FROM visualizations WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

func (s *Store) DeleteVisualization(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM visualizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// listDocs runs a doc-returning query and unmarshals each row.
func listDocs[T any](ctx context.Context, db *sqlx.DB, query string, args ...interface{}) ([]T, error) {
	var docs [][]byte
	if err := db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
