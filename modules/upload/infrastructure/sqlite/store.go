package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"

	"github.com/zcpi-labs/zcpi/modules/upload/domain"
	"github.com/zcpi-labs/zcpi/modules/upload/infrastructure/sqlstore"
)

type Store struct {
	db    *sql.DB
	stmts sqlstore.Statements
}

// Open opens (or creates) the database file at path and ensures the table.
// ":memory:" keeps everything in process.
func Open(ctx context.Context, path, table string, conflict []string) (*Store, error) {
	stmts, err := sqlstore.Build(sqlstore.SQLite, table, conflict)
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "mkdir sqlite dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, stmts.CreateTable); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create table")
	}
	return &Store{db: db, stmts: stmts}, nil
}

func (s *Store) Name() string {
	return "sqlite"
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Upsert writes one batch inside a single transaction.
func (s *Store) Upsert(ctx context.Context, records []domain.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.stmts.Upsert)
	if err != nil {
		return errors.Wrap(err, "prepare upsert")
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Values()...); err != nil {
			return errors.Wrapf(err, "upsert %s %s", r.SeriesID, r.Date)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	committed = true
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
