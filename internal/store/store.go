package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	chat_id    BIGINT PRIMARY KEY,
	session_id TEXT,
	memory     BOOLEAN,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	id         BIGSERIAL PRIMARY KEY,
	chat_id    BIGINT NOT NULL,
	user_id    BIGINT NOT NULL,
	username   TEXT NOT NULL,
	message    TEXT NOT NULL,
	replied_to TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store persists per-chat state (API session ids, memory overrides) and
// user reports in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Session returns the API session id bound to a chat, if any.
func (s *Store) Session(ctx context.Context, chatID int64) (string, bool, error) {
	var sessionID *string
	err := s.pool.QueryRow(
		ctx,
		`SELECT session_id FROM chat_sessions WHERE chat_id = $1`,
		chatID,
	).Scan(&sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get session: %w", err)
	}
	if sessionID == nil || *sessionID == "" {
		return "", false, nil
	}
	return *sessionID, true, nil
}

// SaveSession binds an API session id to a chat, replacing any previous one.
func (s *Store) SaveSession(ctx context.Context, chatID int64, sessionID string) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO chat_sessions (chat_id, session_id, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (chat_id)
		 DO UPDATE SET session_id = EXCLUDED.session_id, updated_at = now()`,
		chatID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession drops the API session id bound to a chat.
func (s *Store) ClearSession(ctx context.Context, chatID int64) error {
	_, err := s.pool.Exec(
		ctx,
		`UPDATE chat_sessions SET session_id = NULL, updated_at = now() WHERE chat_id = $1`,
		chatID,
	)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// MemoryPref returns the per-chat memory override, or nil when the chat
// uses the configured default.
func (s *Store) MemoryPref(ctx context.Context, chatID int64) (*bool, error) {
	var memory *bool
	err := s.pool.QueryRow(
		ctx,
		`SELECT memory FROM chat_sessions WHERE chat_id = $1`,
		chatID,
	).Scan(&memory)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory pref: %w", err)
	}
	return memory, nil
}

// SetMemoryPref records a per-chat memory override.
func (s *Store) SetMemoryPref(ctx context.Context, chatID int64, enabled bool) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO chat_sessions (chat_id, memory, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (chat_id)
		 DO UPDATE SET memory = EXCLUDED.memory, updated_at = now()`,
		chatID, enabled,
	)
	if err != nil {
		return fmt.Errorf("set memory pref: %w", err)
	}
	return nil
}

// Report is one user report destined for the administrators.
type Report struct {
	ChatID    int64
	UserID    int64
	Username  string
	Message   string
	RepliedTo string
	CreatedAt time.Time
}

// SaveReport stores a report row.
func (s *Store) SaveReport(ctx context.Context, r Report) error {
	var repliedTo *string
	if r.RepliedTo != "" {
		repliedTo = &r.RepliedTo
	}
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO reports (chat_id, user_id, username, message, replied_to)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.ChatID, r.UserID, r.Username, r.Message, repliedTo,
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
