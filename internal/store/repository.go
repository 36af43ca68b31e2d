package store

import (
	"database/sql"
	"fmt"
)

// Repository defines persistence operations for unit definition rows,
// mirroring the teacher's internal/unit/repository.Repository shape.
type Repository interface {
	FindAll() ([]UnitDefRow, error)
	FindByID(id string) (UnitDefRow, error)
	Upsert(row UnitDefRow) error
	Delete(id string) error
}

// SQLRepository implements Repository over a *sql.DB.
type SQLRepository struct {
	db *sql.DB
}

// NewRepository builds a SQLRepository.
func NewRepository(db *sql.DB) Repository {
	return &SQLRepository{db: db}
}

const selectCols = "id, kind, description, deps_json, backend_json, updated_at"

// FindAll retrieves every persisted unit definition.
func (r *SQLRepository) FindAll() ([]UnitDefRow, error) {
	rows, err := r.db.Query("SELECT " + selectCols + " FROM unit_defs")
	if err != nil {
		return nil, fmt.Errorf("store: querying unit_defs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRows(rows)
}

// FindByID retrieves a single unit definition.
func (r *SQLRepository) FindByID(id string) (UnitDefRow, error) {
	row := r.db.QueryRow("SELECT "+selectCols+" FROM unit_defs WHERE id = ?", id)
	rows, err := scanRows(row)
	if err != nil {
		return UnitDefRow{}, err
	}
	if len(rows) == 0 {
		return UnitDefRow{}, fmt.Errorf("store: unit def %q not found", id)
	}
	return rows[0], nil
}

// Upsert inserts or replaces a unit definition row.
func (r *SQLRepository) Upsert(row UnitDefRow) error {
	_, err := r.db.Exec(`
		INSERT INTO unit_defs (id, kind, description, deps_json, backend_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		kind = excluded.kind,
		description = excluded.description,
		deps_json = excluded.deps_json,
		backend_json = excluded.backend_json,
		updated_at = CURRENT_TIMESTAMP
	`, row.ID, row.Kind, row.Description, row.DepsJSON, row.BackendJSON)
	if err != nil {
		return fmt.Errorf("store: upserting unit def %q: %w", row.ID, err)
	}
	return nil
}

// Delete removes a unit definition.
func (r *SQLRepository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM unit_defs WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: deleting unit def %q: %w", id, err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Rows and *sql.Row.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRows(src interface{}) ([]UnitDefRow, error) {
	switch v := src.(type) {
	case *sql.Rows:
		var out []UnitDefRow
		for v.Next() {
			row, err := scanOne(v)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		return out, v.Err()
	case *sql.Row:
		row, err := scanOne(v)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, err
		}
		return []UnitDefRow{row}, nil
	default:
		return nil, fmt.Errorf("store: unsupported scan source %T", src)
	}
}

func scanOne(s rowScanner) (UnitDefRow, error) {
	var row UnitDefRow
	err := s.Scan(&row.ID, &row.Kind, &row.Description, &row.DepsJSON, &row.BackendJSON, &row.UpdatedAt)
	return row, err
}
