package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

type sqlEngine struct {
	db     *sql.DB
	driver string
}

// NewSQL wraps a database/sql handle. driver is only used for reporting.
func NewSQL(db *sql.DB, driver string) Engine {
	return &sqlEngine{db: db, driver: driver}
}

func openSQLite(rest string, opts PoolOptions) (Engine, error) {
	path, dsn, err := sqliteDSN(rest)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}

	log.Debug().Str("path", path).Msg("SQLite engine created")
	return NewSQL(db, DriverSQLite), nil
}

// sqliteDSN turns the part of a sqlite:// url after the scheme into a driver
// DSN. Query parameters are kept. File databases open with mode=rw unless the
// url sets a mode, so a mistyped path fails instead of creating an empty file.
func sqliteDSN(rest string) (path, dsn string, err error) {
	path, rawQuery, _ := strings.Cut(strings.TrimPrefix(rest, "file:"), "?")
	if path == "" {
		return "", "", fmt.Errorf("sqlite url has no path")
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse sqlite url parameters: %w", err)
	}

	if path == memoryPath {
		dsn = memoryPath
		if len(query) > 0 {
			dsn += "?" + query.Encode()
		}
		return path, dsn, nil
	}

	if query.Get("mode") == "" {
		query.Set("mode", "rw")
	}
	return path, "file:" + path + "?" + query.Encode(), nil
}

func (e *sqlEngine) Connect(ctx context.Context) (Conn, error) {
	c, err := e.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlConn{conn: c}, nil
}

func (e *sqlEngine) InUse() int {
	return e.db.Stats().InUse
}

func (e *sqlEngine) Driver() string {
	return e.driver
}

func (e *sqlEngine) Close() {
	if err := e.db.Close(); err != nil {
		log.Error().Err(err).Str("driver", e.driver).Msg("Failed to close database")
	}
}

type sqlConn struct {
	conn *sql.Conn
	once sync.Once
}

func (c *sqlConn) Exec(ctx context.Context, query string) error {
	_, err := c.conn.ExecContext(ctx, query)
	return err
}

func (c *sqlConn) Release() {
	c.once.Do(func() {
		if err := c.conn.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to release connection")
		}
	})
}
