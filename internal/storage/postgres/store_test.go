package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/domain/codetask"
	"github.com/intexuraos/agents/internal/domain/research"
	"github.com/intexuraos/agents/internal/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateAction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateAction(context.Background(), action.Action{
		UserID:    "user-1",
		InputText: "research Go generics",
		Status:    action.StatusCreated,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActionNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT doc FROM actions WHERE id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	_, err := store.GetAction(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetActionDecodesDocument(t *testing.T) {
	store, mock := newMockStore(t)

	doc, err := json.Marshal(action.Action{ID: "a-1", UserID: "user-1", Status: action.StatusCompleted})
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT doc FROM actions WHERE id`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))

	got, err := store.GetAction(context.Background(), "a-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, action.StatusCompleted, got.Status)
}

func TestUpdateActionMissingRowIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE actions SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateAction(context.Background(), action.Action{ID: "gone"})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateCodeTaskDedupRace(t *testing.T) {
	store, mock := newMockStore(t)

	// The partial unique index rejects the insert; the loser gets
	// ErrDuplicate, never the winner's record as its own create result.
	mock.ExpectExec(`INSERT INTO code_tasks`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateCodeTask(context.Background(), codetask.CodeTask{
		UserID: "user-1", SystemPromptHash: "h1", Status: codetask.StatusDispatched,
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResearchJobDedupRace(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO research_jobs`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateResearchJob(context.Background(), research.Job{
		UserID: "user-1", ActionID: "action-1", Status: research.StatusPending,
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPendingResearchJobs(t *testing.T) {
	store, mock := newMockStore(t)

	doc, err := json.Marshal(research.Job{ID: "job-1", UserID: "user-1", Status: research.StatusPending})
	require.NoError(t, err)
	mock.ExpectQuery(`UPDATE research_jobs`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))

	jobs, err := store.ClaimPendingResearchJobs(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, research.StatusProcessing, jobs[0].Status)
}

func TestDeleteLinearConnection(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM linear_connections`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.DeleteLinearConnection(context.Background(), "user-1"))

	mock.ExpectExec(`DELETE FROM linear_connections`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, store.DeleteLinearConnection(context.Background(), "user-1"), storage.ErrNotFound)
}
