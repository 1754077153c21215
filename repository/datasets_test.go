package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { _ = conn.Close() })

	db := &DB{
		DB:            conn,
		breaker:       gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"}),
		retryAttempts: 0,
	}
	return db, mock
}

func TestDatasetRepositorySetActiveFlipsExclusively(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewDatasetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE datasets SET active = false").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE datasets SET active = true WHERE version").
		WithArgs("graph-v2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetActive(context.Background(), "graph-v2")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositorySetActiveRollsBackOnMissingVersion(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewDatasetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE datasets SET active = false").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE datasets SET active = true WHERE version").
		WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetActive(context.Background(), "missing")
	assert.Error(t, err, "expected error for nonexistent version")
}

func TestDatasetRepositoryDeleteRefusesActiveRow(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewDatasetRepository(db)

	rows := sqlmock.NewRows([]string{"active"}).AddRow(true)
	mock.ExpectQuery("SELECT active FROM datasets").WithArgs("ds-1").WillReturnRows(rows)

	err := repo.Delete(context.Background(), "ds-1")
	assert.Error(t, err, "expected error deleting active dataset")
}

func TestDatasetRepositoryExistsByODataHash(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewDatasetRepository(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery("SELECT EXISTS").WithArgs("hash-abc").WillReturnRows(rows)

	exists, err := repo.ExistsByODataHash(context.Background(), "hash-abc")
	require.NoError(t, err)
	assert.True(t, exists)
}
