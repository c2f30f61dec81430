package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// PostgresStore implements Store against a Postgres-compatible database
// (teacher's CockroachStore pattern: prepared statements over database/sql
// with the lib/pq driver).
type PostgresStore struct {
	db *sql.DB

	stmtCreateSession  *sql.Stmt
	stmtGetSession     *sql.Stmt
	stmtUpdateSession  *sql.Stmt
	stmtSessionsByUser *sql.Stmt
	stmtAppendHistory  *sql.Stmt
	stmtGetHistory     *sql.Stmt
	stmtTrimHistory    *sql.Stmt
}

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sane pool defaults.
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// NewPostgresStore opens a pooled connection and prepares all statements.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sessionstore: dsn is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionstore: ping: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) prepareStatements() error {
	var err error
	if s.stmtCreateSession, err = s.db.Prepare(`
		INSERT INTO sessions (id, user_id, active_run_id, created_at)
		VALUES ($1, $2, $3, $4)
	`); err != nil {
		return fmt.Errorf("sessionstore: prepare create session: %w", err)
	}
	if s.stmtGetSession, err = s.db.Prepare(`
		SELECT id, user_id, active_run_id, created_at FROM sessions WHERE id = $1
	`); err != nil {
		return fmt.Errorf("sessionstore: prepare get session: %w", err)
	}
	if s.stmtUpdateSession, err = s.db.Prepare(`
		UPDATE sessions SET active_run_id = $1 WHERE id = $2
	`); err != nil {
		return fmt.Errorf("sessionstore: prepare update session: %w", err)
	}
	if s.stmtSessionsByUser, err = s.db.Prepare(`
		SELECT id, user_id, active_run_id, created_at FROM sessions WHERE user_id = $1
	`); err != nil {
		return fmt.Errorf("sessionstore: prepare sessions by user: %w", err)
	}
	if s.stmtAppendHistory, err = s.db.Prepare(`
		INSERT INTO history_entries (session_id, role, content, tool_call_id, tool_calls, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`); err != nil {
		return fmt.Errorf("sessionstore: prepare append history: %w", err)
	}
	if s.stmtGetHistory, err = s.db.Prepare(`
		SELECT role, content, tool_call_id, tool_calls, created_at
		FROM history_entries WHERE session_id = $1 ORDER BY created_at ASC
	`); err != nil {
		return fmt.Errorf("sessionstore: prepare get history: %w", err)
	}
	if s.stmtTrimHistory, err = s.db.Prepare(`
		DELETE FROM history_entries
		WHERE session_id = $1 AND role != 'system' AND created_at <= (
			SELECT created_at FROM history_entries
			WHERE session_id = $1 AND role != 'system'
			ORDER BY created_at DESC OFFSET $2 LIMIT 1
		)
	`); err != nil {
		return fmt.Errorf("sessionstore: prepare trim history: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := s.stmtCreateSession.ExecContext(ctx, session.ID, session.UserID, nullableString(session.ActiveRunID), session.CreatedAt)
	if err != nil {
		return fmt.Errorf("sessionstore: create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := s.stmtGetSession.QueryRowContext(ctx, id)
	var session models.Session
	var activeRunID sql.NullString
	if err := row.Scan(&session.ID, &session.UserID, &activeRunID, &session.CreatedAt); err != nil {
		return nil, fmt.Errorf("sessionstore: get session: %w", err)
	}
	session.ActiveRunID = activeRunID.String
	return &session, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, session *models.Session) error {
	_, err := s.stmtUpdateSession.ExecContext(ctx, nullableString(session.ActiveRunID), session.ID)
	if err != nil {
		return fmt.Errorf("sessionstore: update session: %w", err)
	}
	return nil
}

func (s *PostgresStore) SessionsByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	rows, err := s.stmtSessionsByUser.QueryContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: sessions by user: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		var session models.Session
		var activeRunID sql.NullString
		if err := rows.Scan(&session.ID, &session.UserID, &activeRunID, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("sessionstore: scan session: %w", err)
		}
		session.ActiveRunID = activeRunID.String
		out = append(out, &session)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendHistory(ctx context.Context, sessionID string, entry models.HistoryEntry) error {
	if entry.Role != models.HistorySystem && entry.SizeBytes() > models.MaxToolResultBytes {
		return nil
	}
	toolCallsJSON, err := json.Marshal(entry.ToolCalls)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal tool calls: %w", err)
	}
	if _, err := s.stmtAppendHistory.ExecContext(ctx, sessionID, string(entry.Role), entry.Content,
		nullableString(entry.ToolCallID), toolCallsJSON, entry.CreatedAt); err != nil {
		return fmt.Errorf("sessionstore: append history: %w", err)
	}
	if _, err := s.stmtTrimHistory.ExecContext(ctx, sessionID, models.MaxHistoryEntries); err != nil {
		return fmt.Errorf("sessionstore: trim history: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetHistory(ctx context.Context, sessionID string) ([]models.HistoryEntry, error) {
	rows, err := s.stmtGetHistory.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: get history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var role string
		var toolCallID sql.NullString
		var toolCallsJSON []byte
		if err := rows.Scan(&role, &entry.Content, &toolCallID, &toolCallsJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("sessionstore: scan history: %w", err)
		}
		entry.Role = models.HistoryRole(role)
		entry.ToolCallID = toolCallID.String
		if len(toolCallsJSON) > 0 {
			_ = json.Unmarshal(toolCallsJSON, &entry.ToolCalls)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
