package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, DriverPostgres), mock
}

func TestSnapshotIsOneStatementOnPostgres(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTopicRepository(db, zap.NewNop())
	summary := "fresh"
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE topics SET display_name = $1`)).
		WithArgs("Alice", nil, &summary, nil, sqlmock.AnyArg(), "[]", at, "t1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSnapshot(context.Background(), 7, "t1", models.TopicSnapshot{
		DisplayName:    "Alice",
		TwitterSummary: &summary,
		RawTweets:      []models.Post{{ID: "1", Text: "gm"}},
		LastUpdated:    at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotMissingRowOnPostgres(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTopicRepository(db, zap.NewNop())

	mock.ExpectExec("UPDATE topics").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSnapshot(context.Background(), 7, "gone", models.TopicSnapshot{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderRollsBackOnFailedWrite(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTopicRepository(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM topics WHERE user_id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`UPDATE topics SET sort_order = $1 WHERE id = $2 AND user_id = $3`))
	prep.ExpectExec().WithArgs(0, "b", int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(1, "a", int64(7)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Reorder(context.Background(), 7, []string{"b", "a"})
	require.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
