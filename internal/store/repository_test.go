package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRepository_Upsert(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewRepository(db)

	row := UnitDefRow{ID: "web.service", Kind: "service", Description: "", DepsJSON: "{}", BackendJSON: "{}"}

	mock.ExpectExec("INSERT INTO unit_defs").WithArgs(row.ID, row.Kind, row.Description, row.DepsJSON, row.BackendJSON).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Upsert(row))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindAll(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT id, kind, description, deps_json, backend_json, updated_at FROM unit_defs").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "description", "deps_json", "backend_json", "updated_at"}).
			AddRow("web.service", "service", "", `{"requires":["db.service"]}`, "{}", now).
			AddRow("db.service", "service", "", "{}", "{}", now))

	rows, err := repo.FindAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "web.service", rows[0].ID)
	assert.Equal(t, `{"requires":["db.service"]}`, rows[0].DepsJSON)
}

func TestRepository_FindByID_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewRepository(db)

	mock.ExpectQuery("SELECT id, kind, description, deps_json, backend_json, updated_at FROM unit_defs WHERE id = \\?").
		WithArgs("missing.service").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "description", "deps_json", "backend_json", "updated_at"}))

	_, err := repo.FindByID("missing.service")
	assert.Error(t, err)
}

func TestRepository_Delete(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewRepository(db)

	mock.ExpectExec("DELETE FROM unit_defs WHERE id = \\?").WithArgs("web.service").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete("web.service"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
