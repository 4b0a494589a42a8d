// Package store implements the bounded, authenticated database
// connection pool (C3) and the per-table repositories built on top of
// it.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"novachat/internal/metrics"
)

// ErrRecordNotFound is returned by any lookup that finds no matching
// row, standing in for pgx.ErrNoRows at the repository boundary.
var ErrRecordNotFound = errors.New("store: record not found")

// ErrTimeout is returned by acquire-style operations that exceed the
// pool's connect timeout.
var ErrTimeout = errors.New("store: acquire timed out")

// QueryError wraps a driver-level failure the way execute() is
// specified to (§4.3): the underlying message is never swallowed.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("store: query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Pool wraps a pgxpool.Pool sized to exactly N connections, matching
// the construction contract of §4.3: N >= 1 and client encoding is
// UTF-8 (Postgres' default; recorded here as the reason no explicit
// SET is issued after connect).
type Pool struct {
	db             *pgxpool.Pool
	connectTimeout time.Duration
}

// Config configures the pool's DSN, size, and acquire timeout.
type Config struct {
	DSN            string
	Size           int32
	ConnectTimeout time.Duration
}

// NewPool opens a pool of exactly cfg.Size connections. cfg.Size <= 0
// fails construction, matching the "0 fails construction" invariant.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("store: pool size must be >= 1, got %d", cfg.Size)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: invalid DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.Size
	poolCfg.MinConns = cfg.Size

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open pool: %w", err)
	}
	slog.Info("store pool opened", "size", cfg.Size, "connect_timeout", cfg.ConnectTimeout)
	return &Pool{db: pool, connectTimeout: cfg.ConnectTimeout}, nil
}

// Close releases every connection in the pool.
func (p *Pool) Close() { p.db.Close() }

// acquire blocks until a connection is available or connectTimeout
// elapses, at which point it fails with ErrTimeout. The returned
// release function must always be called.
func (p *Pool) acquire(ctx context.Context) (*pgxpool.Conn, func(), error) {
	acquireCtx := ctx
	var cancel context.CancelFunc
	if p.connectTimeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, p.connectTimeout)
		defer cancel()
	}
	start := time.Now()
	conn, err := p.db.Acquire(acquireCtx)
	metrics.StorePoolAcquireDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, func() {}, ErrTimeout
		}
		return nil, func() {}, fmt.Errorf("store: acquire failed: %w", err)
	}
	return conn, conn.Release, nil
}

// Execute runs fn against a single acquired connection inside a
// transaction that commits on success and rolls back on error,
// matching "execute(sql) ... run in a single-statement transaction
// with commit, release" (§4.3). fn's own error is wrapped as a
// QueryError before being returned, unless it is already one.
func (p *Pool) Execute(ctx context.Context, fn func(pgx.Tx) error) error {
	conn, release, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return &QueryError{Err: err}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		var qe *QueryError
		if errors.As(err, &qe) {
			return err
		}
		return &QueryError{Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &QueryError{Err: err}
	}
	return nil
}

// Health runs SELECT 1 via Execute and never panics, reporting only a
// boolean the way health() is specified to.
func (p *Pool) Health(ctx context.Context) bool {
	err := p.Execute(ctx, func(tx pgx.Tx) error {
		var one int
		return tx.QueryRow(ctx, "SELECT 1").Scan(&one)
	})
	if err != nil {
		slog.Warn("store health check failed", "error", err)
		return false
	}
	return true
}
