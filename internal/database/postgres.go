package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresEngine struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pgx pool. The engine takes ownership of the pool.
func NewPostgres(pool *pgxpool.Pool) Engine {
	return &postgresEngine{pool: pool}
}

func openPostgres(ctx context.Context, url string, opts PoolOptions) (Engine, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return NewPostgres(pool), nil
}

func (e *postgresEngine) Connect(ctx context.Context) (Conn, error) {
	c, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &postgresConn{conn: c}, nil
}

func (e *postgresEngine) InUse() int {
	return int(e.pool.Stat().AcquiredConns())
}

func (e *postgresEngine) Driver() string {
	return DriverPostgres
}

func (e *postgresEngine) Close() {
	e.pool.Close()
}

type postgresConn struct {
	conn *pgxpool.Conn
	once sync.Once
}

func (c *postgresConn) Exec(ctx context.Context, query string) error {
	_, err := c.conn.Exec(ctx, query)
	return err
}

func (c *postgresConn) Release() {
	c.once.Do(c.conn.Release)
}
