package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/gogo/therapy/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			name TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS therapy_contexts (
			user_id TEXT PRIMARY KEY,
			memory TEXT,
			goals TEXT,
			updated_at INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts INTEGER NOT NULL,
			metadata TEXT,
			UNIQUE (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Older databases predate session status.
	return s.ensureColumn("sessions", "status", "ALTER TABLE sessions ADD COLUMN status TEXT NOT NULL DEFAULT 'active'")
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertUser registers a user or updates its display name.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET name = excluded.name`,
		user.UserID, user.Name, user.CreatedAt.UnixMilli())
	return err
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	var name sql.NullString
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, created_at FROM users WHERE user_id = ?`,
		userID).Scan(&user.UserID, &name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Name = name.String
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

// GetTherapyContext returns the memory and goals of a user.
// A user without stored context gets an empty one.
func (s *SQLiteStore) GetTherapyContext(ctx context.Context, userID string) (domain.TherapyContext, error) {
	tc := domain.TherapyContext{Memory: map[string]any{}, Goals: []domain.Goal{}}

	var memory, goals sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT memory, goals FROM therapy_contexts WHERE user_id = ?`,
		userID).Scan(&memory, &goals)
	if err == sql.ErrNoRows {
		return tc, nil
	}
	if err != nil {
		return tc, err
	}
	if memory.Valid && memory.String != "" && memory.String != "null" {
		if err := json.Unmarshal([]byte(memory.String), &tc.Memory); err != nil {
			return tc, fmt.Errorf("failed to decode memory: %w", err)
		}
	}
	if goals.Valid && goals.String != "" && goals.String != "null" {
		if err := json.Unmarshal([]byte(goals.String), &tc.Goals); err != nil {
			return tc, fmt.Errorf("failed to decode goals: %w", err)
		}
	}
	return tc, nil
}

// PutTherapyContext replaces the memory and goals of a user.
func (s *SQLiteStore) PutTherapyContext(ctx context.Context, userID string, tc domain.TherapyContext) error {
	memory, err := json.Marshal(tc.Memory)
	if err != nil {
		return fmt.Errorf("failed to marshal memory: %w", err)
	}
	goals, err := json.Marshal(tc.Goals)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO therapy_contexts (user_id, memory, goals, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET memory = excluded.memory, goals = excluded.goals, updated_at = excluded.updated_at`,
		userID, string(memory), string(goals), time.Now().UnixMilli())
	return err
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	if session.Status == "" {
		session.Status = domain.SessionStatusActive
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		session.SessionID, session.UserID, session.Status, session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli())
	return err
}

// GetSession retrieves a session by ID. Messages are not loaded.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, status, created_at, updated_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.UserID, &session.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	return &session, nil
}

// SetSessionStatus changes the administrative status of a session.
func (s *SQLiteStore) SetSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE session_id = ?`, status, sessionID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListSessionsByUser lists a user's sessions with their messages, most recently updated first.
func (s *SQLiteStore) ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, status, created_at, updated_at FROM sessions
		 WHERE user_id = ? ORDER BY updated_at DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	var sessions []domain.Session
	for rows.Next() {
		var session domain.Session
		var createdAt, updatedAt int64
		if err := rows.Scan(&session.SessionID, &session.UserID, &session.Status, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		session.CreatedAt = fromMillis(createdAt)
		session.UpdatedAt = fromMillis(updatedAt)
		sessions = append(sessions, session)
	}
	// Close before issuing the per-session queries; in-memory stores have one connection.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sessions {
		messages, err := s.GetMessages(ctx, sessions[i].SessionID)
		if err != nil {
			return nil, err
		}
		sessions[i].Messages = messages
	}
	return sessions, nil
}

// AppendMessages appends messages to a session in a single transaction and bumps
// the session's updated_at to the last message timestamp. Closed sessions reject
// the append with domain.ErrConflict.
func (s *SQLiteStore) AppendMessages(ctx context.Context, sessionID string, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	var status domain.SessionStatus
	err = tx.QueryRowContext(ctx,
		`SELECT s.status, COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = s.session_id), 0)
		 FROM sessions s WHERE s.session_id = ?`, sessionID).Scan(&status, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	// Checked inside the transaction so a concurrent close cannot slip a turn in.
	if status == domain.SessionStatusClosed {
		return fmt.Errorf("%w: session is closed", domain.ErrConflict)
	}

	for _, msg := range messages {
		seq++
		var metadata sql.NullString
		if msg.Metadata != nil {
			b, err := json.Marshal(msg.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}
			metadata = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, seq, role, content, ts, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, seq, msg.Role, msg.Content, msg.Timestamp.UnixMilli(), metadata); err != nil {
			return err
		}
	}

	last := messages[len(messages)-1].Timestamp
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_id = ?`,
		last.UnixMilli(), sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetMessages retrieves the ordered messages of a session.
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, ts, metadata FROM messages WHERE session_id = ? ORDER BY seq ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var ts int64
		var metadata sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &ts, &metadata); err != nil {
			return nil, err
		}
		msg.Timestamp = fromMillis(ts)
		if metadata.Valid && metadata.String != "" {
			var md domain.MessageMetadata
			if err := json.Unmarshal([]byte(metadata.String), &md); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
			msg.Metadata = &md
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// LastMessageTime returns the timestamp of the last message, or the zero time
// when the session has no messages.
func (s *SQLiteStore) LastMessageTime(ctx context.Context, sessionID string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM messages WHERE session_id = ?`, sessionID).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return fromMillis(ts.Int64), nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
