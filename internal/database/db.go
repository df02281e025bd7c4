package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JunoAX/familytasks-go/internal/config"
	"github.com/JunoAX/familytasks-go/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB owns the connection pool. It is created once at startup and closed on
// shutdown; nothing else in the process opens connections.
type DB struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// Open creates the pool and verifies it can reach the server.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Connection pool settings
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database pool ready",
		"max_conns", poolConfig.MaxConns,
		"min_conns", poolConfig.MinConns,
		"acquire_timeout", cfg.AcquireTimeout,
	)

	return &DB{pool: pool, acquireTimeout: cfg.AcquireTimeout}, nil
}

// Close closes the pool, waiting for acquired connections to be released
func (db *DB) Close() {
	db.pool.Close()
}

// Health checks if the database is reachable
func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// PoolStats is a snapshot of pool counters
type PoolStats struct {
	AcquiredConns     int32
	IdleConns         int32
	TotalConns        int32
	MaxConns          int32
	AcquireCount      int64
	EmptyAcquireCount int64
	CanceledAcquires  int64
}

// Stats returns statistics about the connection pool
func (db *DB) Stats() PoolStats {
	s := db.pool.Stat()
	return PoolStats{
		AcquiredConns:     s.AcquiredConns(),
		IdleConns:         s.IdleConns(),
		TotalConns:        s.TotalConns(),
		MaxConns:          s.MaxConns(),
		AcquireCount:      s.AcquireCount(),
		EmptyAcquireCount: s.EmptyAcquireCount(),
		CanceledAcquires:  s.CanceledAcquireCount(),
	}
}

// Acquire takes a connection, waiting at most the configured acquire timeout.
// Exhaustion is reported as store.ErrUnavailable so callers can retry.
func (db *DB) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx := ctx
	if db.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, db.acquireTimeout)
		defer cancel()
	}

	conn, err := db.pool.Acquire(acquireCtx)
	if err != nil {
		// The caller's own cancellation is not exhaustion.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: acquiring connection: %v", store.ErrUnavailable, err)
	}
	return conn, nil
}

// WithConn runs fn on a pooled connection and releases it afterwards.
func (db *DB) WithConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

// WithTx runs fn inside a transaction at the given isolation level.
func (db *DB) WithTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(tx pgx.Tx) error) error {
	return db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
		if err != nil {
			return TranslateError(err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return TranslateError(err)
		}
		return nil
	})
}

// Postgres SQLSTATE codes the store distinguishes
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeTooManyConnections   = "53300"
)

// TranslateError maps driver errors onto the store sentinels.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", store.ErrForeignKey, pgErr.ConstraintName)
		case codeCheckViolation:
			return fmt.Errorf("%w: %s", store.ErrCheck, pgErr.ConstraintName)
		case codeSerializationFailure, codeDeadlockDetected, codeTooManyConnections:
			return fmt.Errorf("%w: %s", store.ErrUnavailable, pgErr.Message)
		}
	}
	return err
}
