// Package probe checks that the database engine can hand out a connection
// and complete a round trip to the server.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"econolearn/internal/database"
)

// ErrNoEngine is reported when a Prober was built without an engine.
var ErrNoEngine = errors.New("no database engine configured")

// DefaultQuery is the liveness statement. It carries no business meaning.
const DefaultQuery = "SELECT 1"

// State of a check.
type State int

const (
	Attempting State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stage names the step a failed check stopped at.
type Stage string

const (
	StageNone    Stage = ""
	StageAcquire Stage = "acquire"
	StageQuery   Stage = "query"
)

// Result is the outcome of one check. Err is nil unless State is Failed.
type Result struct {
	RunID   uuid.UUID
	State   State
	Stage   Stage
	Err     error
	Driver  string
	Started time.Time
	Elapsed time.Duration
}

// OK reports whether the round trip succeeded.
func (r Result) OK() bool {
	return r.State == Succeeded
}

// Prober runs the liveness check against an engine it does not own.
type Prober struct {
	engine  database.Engine
	query   string
	timeout time.Duration
}

type Option func(*Prober)

// WithQuery overrides the liveness statement.
func WithQuery(query string) Option {
	return func(p *Prober) {
		if query != "" {
			p.query = query
		}
	}
}

// WithTimeout bounds acquisition and query together. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func New(engine database.Engine, opts ...Option) *Prober {
	p := &Prober{
		engine: engine,
		query:  DefaultQuery,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check acquires a connection, runs the liveness query and releases the
// connection. It never returns an error or panics; every failure ends up in
// the Result.
func (p *Prober) Check(ctx context.Context) (res Result) {
	res = Result{
		RunID:   uuid.New(),
		State:   Attempting,
		Started: time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			res.State = Failed
			res.Err = fmt.Errorf("panic during check: %v", r)
		}
		res.Elapsed = time.Since(res.Started)
		logResult(res)
	}()

	if p.engine == nil {
		res.Stage = StageAcquire
		return fail(res, ErrNoEngine)
	}
	res.Driver = p.engine.Driver()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log.Debug().
		Str("run_id", res.RunID.String()).
		Str("driver", res.Driver).
		Str("query", p.query).
		Msg("Checking database connectivity")

	res.Stage = StageAcquire
	conn, err := p.engine.Connect(ctx)
	if err != nil {
		return fail(res, err)
	}
	defer conn.Release()

	res.Stage = StageQuery
	if err := conn.Exec(ctx, p.query); err != nil {
		return fail(res, err)
	}

	res.State = Succeeded
	res.Stage = StageNone
	return res
}

func fail(res Result, err error) Result {
	res.State = Failed
	res.Err = err
	return res
}

func logResult(res Result) {
	if res.OK() {
		log.Debug().
			Str("run_id", res.RunID.String()).
			Str("driver", res.Driver).
			Dur("elapsed", res.Elapsed).
			Msg("Database connectivity check succeeded")
		return
	}
	log.Warn().
		Err(res.Err).
		Str("run_id", res.RunID.String()).
		Str("driver", res.Driver).
		Str("stage", string(res.Stage)).
		Dur("elapsed", res.Elapsed).
		Msg("Database connectivity check failed")
}

// Report writes the one-line human summary of r to w.
func Report(w io.Writer, r Result) error {
	var err error
	if r.OK() {
		_, err = fmt.Fprintln(w, "✅ Successfully connected to the database!")
	} else {
		_, err = fmt.Fprintf(w, "❌ Failed to connect: %v\n", r.Err)
	}
	return err
}
