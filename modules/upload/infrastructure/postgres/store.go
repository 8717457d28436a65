package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zcpi-labs/zcpi/modules/upload/domain"
	"github.com/zcpi-labs/zcpi/modules/upload/infrastructure/sqlstore"
)

type Store struct {
	pool  *pgxpool.Pool
	stmts sqlstore.Statements
}

// Open connects to dsn and creates the table if it does not exist.
func Open(ctx context.Context, dsn, table string, conflict []string) (*Store, error) {
	stmts, err := sqlstore.Build(sqlstore.Postgres, table, conflict)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if _, err := pool.Exec(ctx, stmts.CreateTable); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "create table")
	}
	return &Store{pool: pool, stmts: stmts}, nil
}

func (s *Store) Name() string {
	return "postgres"
}

// Upsert writes one batch inside a single transaction.
func (s *Store) Upsert(ctx context.Context, records []domain.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	b := &pgx.Batch{}
	for _, r := range records {
		day, err := r.Day()
		if err != nil {
			return err
		}
		args := r.Values()
		args[1] = day
		b.Queue(s.stmts.Upsert, args...)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return errors.Wrap(err, "upsert batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	committed = true
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
