package state

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/singer"
)

const (
	defaultStateTable = "tap_hookdeck_state"
	defaultStateID    = "tap-hookdeck"
)

// PostgresStore keeps state as one JSONB row per state_id.
type PostgresStore struct {
	pool     *pgxpool.Pool
	table    string
	stateID  string
	location string
}

type postgresOptions struct {
	connString string
	table      string
	stateID    string
	location   string
}

// parsePostgresURI strips the store's own query parameters so they are not
// sent to the server as runtime parameters.
func parsePostgresURI(u *url.URL) postgresOptions {
	cp := *u
	q := cp.Query()

	opts := postgresOptions{
		table:   q.Get("state_table"),
		stateID: q.Get("state_id"),
	}
	if opts.table == "" {
		opts.table = defaultStateTable
	}
	if opts.stateID == "" {
		opts.stateID = defaultStateID
	}
	q.Del("state_table")
	q.Del("state_id")
	cp.RawQuery = q.Encode()
	opts.connString = cp.String()

	cp.User = nil
	cp.RawQuery = ""
	opts.location = fmt.Sprintf("%s#%s/%s", cp.String(), opts.table, opts.stateID)
	return opts
}

// NewPostgresStore connects and creates the state table if needed.
func NewPostgresStore(ctx context.Context, u *url.URL) (*PostgresStore, error) {
	opts := parsePostgresURI(u)

	poolConfig, err := pgxpool.ParseConfig(opts.connString)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid postgres state uri")
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to postgres")
	}

	s := &PostgresStore{
		pool:     pool,
		table:    pgx.Identifier{opts.table}.Sanitize(),
		stateID:  opts.stateID,
		location: opts.location,
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	state_id   TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to create state table").
			WithDetail("table", opts.table)
	}
	return s, nil
}

// Load selects the row for state_id. No row is an empty state.
func (s *PostgresStore) Load(ctx context.Context) (*singer.State, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT state FROM %s WHERE state_id = $1`, s.table), s.stateID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return singer.NewState(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to load state row").
			WithDetail("state_id", s.stateID)
	}
	return singer.ParseState(raw)
}

// Save upserts the row for state_id.
func (s *PostgresStore) Save(ctx context.Context, st *singer.State) error {
	data, err := st.Marshal()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to encode state")
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (state_id, state, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (state_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`, s.table),
		s.stateID, string(data))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to save state row").
			WithDetail("state_id", s.stateID)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Location names the table and state_id, without credentials.
func (s *PostgresStore) Location() string { return s.location }
