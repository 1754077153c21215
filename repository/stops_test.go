package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/sakha-transit/tripgraph/model"
)

func TestRealStopRepositorySaveBatchAbortsOnRowError(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRealStopRepository(db)

	stops := []model.RealStop{
		{BaseEntity: BaseEntityWithID("stop-1"), Name: "Якутск", CityID: "якутск"},
		{BaseEntity: BaseEntityWithID("stop-2"), Name: "Москва", CityID: "москва"},
	}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO stops")
	mock.ExpectExec("INSERT INTO stops").WithArgs(
		"stop-1", "Якутск", 0.0, 0.0, "якутск", false, false, []byte("{}"),
	).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO stops").WithArgs(
		"stop-2", "Москва", 0.0, 0.0, "москва", false, false, []byte("{}"),
	).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	if err := repo.SaveBatch(context.Background(), stops); err == nil {
		t.Fatal("expected batch save to fail and roll back")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestVirtualStopRepositoryExistsAny(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewVirtualStopRepository(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(false)
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(rows)

	exists, err := repo.ExistsAny(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected no virtual stops yet")
	}
}

// BaseEntityWithID is a tiny test helper constructing a BaseEntity by id.
func BaseEntityWithID(id string) model.BaseEntity {
	return model.BaseEntity{ID: id}
}
