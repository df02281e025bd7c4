package repository

import (
	"context"
	_ "embed"

	"github.com/JunoAX/familytasks-go/internal/database"
	"github.com/JunoAX/familytasks-go/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL the queries in this package are written against.
//
//go:embed schema.sql
var Schema string

// Querier is the subset of pgx shared by pooled connections and transactions
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store over a Postgres pool
type Store struct {
	queries
	db *database.DB
}

func New(db *database.DB) *Store {
	s := &Store{db: db}
	s.queries = queries{run: func(ctx context.Context, fn func(Querier) error) error {
		return db.WithConn(ctx, func(conn *pgxpool.Conn) error {
			return fn(conn)
		})
	}}
	return s
}

// Tx runs fn inside one database transaction.
func (s *Store) Tx(ctx context.Context, iso store.Isolation, fn func(q store.Queries) error) error {
	level := pgx.ReadCommitted
	if iso == store.Serializable {
		level = pgx.Serializable
	}
	return s.db.WithTx(ctx, level, func(tx pgx.Tx) error {
		return fn(&queries{run: func(_ context.Context, f func(Querier) error) error {
			return f(tx)
		}})
	})
}

// Migrate applies Schema. Every statement in it is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	return s.exec(ctx, func(db Querier) error {
		_, err := db.Exec(ctx, Schema)
		return err
	})
}

// queries issues statements through run, which supplies either a pooled
// connection or the enclosing transaction.
type queries struct {
	run func(ctx context.Context, fn func(Querier) error) error
}

// exec runs fn and maps driver errors onto store sentinels.
func (q *queries) exec(ctx context.Context, fn func(Querier) error) error {
	return database.TranslateError(q.run(ctx, fn))
}

// deleteByID deletes one row and reports whether it existed.
func (q *queries) deleteByID(ctx context.Context, table string, id int64) (bool, error) {
	var deleted bool
	err := q.exec(ctx, func(db Querier) error {
		tag, err := db.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() == 1
		return nil
	})
	return deleted, err
}

func (q *queries) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	err := q.exec(ctx, func(db Querier) error {
		return db.QueryRow(ctx, query, args...).Scan(&exists)
	})
	return exists, err
}

var _ store.Store = (*Store)(nil)
