// Package sqlite is the single-till backend: one file, WAL journal, schema
// created on open.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"storefront/backend/internal/store/sqlstore"
)

//go:embed schema.sql
var schema string

var dialect = sqlstore.Dialect{
	Name:              "sqlite",
	Rebind:            sqlstore.KeepRebind,
	IsUniqueViolation: isUniqueViolation,
	InsertOrder:       "rowid",
}

type Store struct {
	*sqlstore.Store
}

// New opens (or creates) the database at path. Use ":memory:" in tests that
// do not need a file.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; a single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{Store: sqlstore.New(db, dialect)}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
