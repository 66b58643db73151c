// Package store provides the data access layer. Queries are hand-written SQL
// run through a *sql.DB that wraps the pgxpool via pgx's stdlib adapter.
// The job queue claim uses the pool directly for FOR UPDATE SKIP LOCKED.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the central data access object.
type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// New creates a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
	}
}

// NewFromDB creates a Store over an existing *sql.DB. Pool returns nil for
// such a store; it exists for unit tests that mock the database.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Pool returns the underlying pgxpool, or nil when built with NewFromDB.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// DB returns the stdlib-wrapped *sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// withTx runs fn inside a database/sql transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// IsUniqueViolation reports whether err is a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// rowsAffected returns n from res, treating a driver error as zero.
func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// uuidPtr converts a scanned nullable uuid into a pointer.
func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

// nullableUUID converts an optional uuid into a query argument.
func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// Visibility restricts a listing of workspace-owned rows. With Workspace set,
// only that workspace's rows are returned. Otherwise global rows are returned
// together with the rows of the Among workspaces.
type Visibility struct {
	Workspace *uuid.UUID
	Among     []uuid.UUID
}

// where renders v as a condition on col.
func (v Visibility) where(col string) sq.Sqlizer {
	if v.Workspace != nil {
		return sq.Eq{col: *v.Workspace}
	}
	if len(v.Among) == 0 {
		return sq.Eq{col: nil}
	}
	return sq.Or{sq.Eq{col: nil}, sq.Eq{col: v.Among}}
}
