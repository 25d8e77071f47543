// Package database builds the process-wide engine the application talks to.
// An engine hands out scoped connections; callers must Release every one.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Driver names reported by Engine.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrEmptyURL          = errors.New("database url is empty")
	ErrUnsupportedScheme = errors.New("unsupported database url scheme")
)

// Engine owns connection configuration and pooling.
type Engine interface {
	// Connect acquires one connection from the pool.
	Connect(ctx context.Context) (Conn, error)
	// InUse reports how many connections are currently checked out.
	InUse() int
	Driver() string
	Close()
}

// Conn is a connection checked out of an Engine.
type Conn interface {
	Exec(ctx context.Context, query string) error
	// Release returns the connection to its pool. Safe to call more than once.
	Release()
}

// PoolOptions tunes the engine's pool. Zero values keep the driver defaults.
type PoolOptions struct {
	MaxConns int
}

// Open builds an engine for url. The scheme picks the backend:
//
//	postgres://, postgresql://, or "host=... dbname=..."  -> pgx pool
//	sqlite://path, sqlite://:memory:                      -> modernc sqlite
//
// Open does not dial; the first Connect does.
func Open(ctx context.Context, url string, opts PoolOptions) (Engine, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}

	scheme, rest, found := strings.Cut(url, "://")
	if !found {
		// libpq key/value connection string
		if strings.Contains(url, "=") {
			return openPostgres(ctx, url, opts)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, url)
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return openPostgres(ctx, url, opts)
	case "sqlite", "sqlite3":
		return openSQLite(rest, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}
