// Package sqlstore implements storage.Driver over database/sql. The sqlite,
// postgres and libsql drivers open a *sql.DB with their own database driver
// and embed a Store.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	Name string

	// NumberedParams selects $1, $2, ... placeholders instead of ?.
	NumberedParams bool
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", NumberedParams: true}
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	user_message TEXT NOT NULL,
	reply        TEXT NOT NULL,
	document     TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	bytes        BIGINT NOT NULL DEFAULT 0,
	started_at   BIGINT NOT NULL,
	completed_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS turns_session_started ON turns (session_id, started_at);
`

const turnColumns = `id, session_id, user_message, reply, document, status, error, bytes, started_at, completed_at`

// Store is a storage.Driver backed by a *sql.DB.
type Store struct {
	DB      *sql.DB
	dialect Dialect
}

// New wraps db and creates the schema if it does not exist.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{DB: db, dialect: dialect}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return s, nil
}

// Put stores a turn. Returns true if the turn was newly inserted.
func (s *Store) Put(ctx context.Context, turn *storage.Turn) (bool, error) {
	if err := turn.Validate(); err != nil {
		return false, err
	}

	reply := turn.Reply
	if reply == nil {
		reply = []transcript.Entry{}
	}
	replyJSON, err := json.Marshal(reply)
	if err != nil {
		return false, fmt.Errorf("encoding reply: %w", err)
	}
	docJSON, err := json.Marshal(turn.Document)
	if err != nil {
		return false, fmt.Errorf("encoding document: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, s.rebind(`INSERT INTO turns (`+turnColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		turn.ID, turn.SessionID, turn.UserMessage, string(replyJSON), string(docJSON),
		string(turn.Status), turn.Error, turn.Bytes,
		turn.StartedAt.UnixNano(), turn.CompletedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting turn %s: %w", turn.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting turn %s: %w", turn.ID, err)
	}
	return n > 0, nil
}

// Get retrieves a turn by its ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.Turn, error) {
	row := s.DB.QueryRowContext(ctx, s.rebind(`SELECT `+turnColumns+` FROM turns WHERE id = ?`), id)
	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting turn %s: %w", id, err)
	}
	return turn, nil
}

// ListTurns returns every turn of a session, oldest first.
func (s *Store) ListTurns(ctx context.Context, sessionID string) ([]*storage.Turn, error) {
	rows, err := s.DB.QueryContext(ctx, s.rebind(`SELECT `+turnColumns+` FROM turns
		WHERE session_id = ? ORDER BY started_at, id`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing turns for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []*storage.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Latest returns the most recent turn of a session.
func (s *Store) Latest(ctx context.Context, sessionID string) (*storage.Turn, error) {
	row := s.DB.QueryRowContext(ctx, s.rebind(`SELECT `+turnColumns+` FROM turns
		WHERE session_id = ? ORDER BY started_at DESC, id DESC LIMIT 1`), sessionID)
	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: sessionID}
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest turn for %s: %w", sessionID, err)
	}
	return turn, nil
}

// Sessions summarises every recorded session, most recently active first.
func (s *Store) Sessions(ctx context.Context) ([]storage.SessionSummary, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT session_id, COUNT(*), MIN(started_at), MAX(started_at)
		FROM turns GROUP BY session_id ORDER BY MAX(started_at) DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []storage.SessionSummary
	for rows.Next() {
		var (
			summary     storage.SessionSummary
			first, last int64
		)
		if err := rows.Scan(&summary.ID, &summary.Turns, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		summary.FirstSeen = time.Unix(0, first).UTC()
		summary.LastSeen = time.Unix(0, last).UTC()
		sessions = append(sessions, summary)
	}
	return sessions, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(row scanner) (*storage.Turn, error) {
	var (
		turn                 storage.Turn
		replyJSON, docJSON   string
		status               string
		startedAt, completed int64
	)
	if err := row.Scan(&turn.ID, &turn.SessionID, &turn.UserMessage, &replyJSON, &docJSON,
		&status, &turn.Error, &turn.Bytes, &startedAt, &completed); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(replyJSON), &turn.Reply); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	turn.Document = state.Default()
	if err := json.Unmarshal([]byte(docJSON), &turn.Document); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	turn.Status = storage.Status(status)
	turn.StartedAt = time.Unix(0, startedAt).UTC()
	turn.CompletedAt = time.Unix(0, completed).UTC()
	return &turn, nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.NumberedParams {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
