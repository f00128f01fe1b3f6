package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/scribe-notes/scribe/internal/handoff"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	patientId TEXT NOT NULL DEFAULT '',
	locale TEXT NOT NULL DEFAULT '',
	startedAt REAL NOT NULL,
	endedAt REAL,
	status TEXT NOT NULL DEFAULT 'completed',
	fallback INTEGER NOT NULL DEFAULT 0,
	audioPath TEXT NOT NULL DEFAULT '',
	createdAt REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS segments (
	id TEXT PRIMARY KEY,
	sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	sequenceNumber INTEGER NOT NULL,
	createdAt REAL NOT NULL,
	UNIQUE(sessionId, sequenceNumber)
);

CREATE TABLE IF NOT EXISTS transcripts (
	sessionId TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
	raw TEXT NOT NULL,
	processed TEXT NOT NULL,
	pending INTEGER NOT NULL DEFAULT 1,
	createdAt REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_patient ON sessions(patientId, startedAt);
`

// Store provides access to the scribe SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scribe", "scribe.db")
}

// Open opens the database read-write, creating it and its schema if needed.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing database for reading.
func OpenReadOnly(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Handoff records a finished session with its segments and a pending
// transcript in one transaction.
func (s *Store) Handoff(ctx context.Context, a handoff.Artifact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin handoff: %w", err)
	}
	defer tx.Rollback()

	now := unixFromTime(time.Now())
	var endedAt any
	if !a.EndedAt.IsZero() {
		endedAt = unixFromTime(a.EndedAt)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, patientId, locale, startedAt, endedAt, status, fallback, audioPath, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.SessionID, a.PatientID, a.Locale, unixFromTime(a.StartedAt), endedAt,
		StatusCompleted, a.Fallback, a.AudioPath, now); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, text := range a.Segments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO segments (id, sessionId, text, sequenceNumber, createdAt)
			VALUES (?, ?, ?, ?, ?)
		`, uuid.NewString(), a.SessionID, text, i, now); err != nil {
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transcripts (sessionId, raw, processed, pending, createdAt)
		VALUES (?, ?, ?, 1, ?)
	`, a.SessionID, a.Text, a.Body(), now); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit handoff: %w", err)
	}
	return nil
}

// PendingTranscript takes the most recent pending transcript recorded for
// patientID and marks it reviewed. It returns handoff.ErrNoPending when
// there is none.
func (s *Store) PendingTranscript(patientID string) (*Transcript, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin take: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		SELECT t.sessionId, s.patientId, t.raw, t.processed, t.pending, t.createdAt
		FROM transcripts t
		JOIN sessions s ON s.id = t.sessionId
		WHERE t.pending = 1 AND s.patientId = ?
		ORDER BY s.startedAt DESC
		LIMIT 1
	`, patientID)
	tr, err := scanTranscript(row)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, handoff.ErrNoPending
	}

	if _, err := tx.Exec(`UPDATE transcripts SET pending = 0 WHERE sessionId = ?`, tr.SessionID); err != nil {
		return nil, fmt.Errorf("clear pending: %w", err)
	}
	if _, err := tx.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, StatusReviewed, tr.SessionID); err != nil {
		return nil, fmt.Errorf("mark reviewed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit take: %w", err)
	}
	tr.Pending = false
	return tr, nil
}

// Transcript returns the transcript of a session, or nil if there is none.
func (s *Store) Transcript(sessionID string) (*Transcript, error) {
	row := s.db.QueryRow(`
		SELECT t.sessionId, s.patientId, t.raw, t.processed, t.pending, t.createdAt
		FROM transcripts t
		JOIN sessions s ON s.id = t.sessionId
		WHERE t.sessionId = ?
	`, sessionID)
	return scanTranscript(row)
}

// Sessions returns the most recent sessions, newest first.
func (s *Store) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, patientId, locale, startedAt, endedAt, status, fallback, audioPath, createdAt
		FROM sessions
		ORDER BY startedAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// LatestSession returns the most recent session, or nil if there is none.
func (s *Store) LatestSession() (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, patientId, locale, startedAt, endedAt, status, fallback, audioPath, createdAt
		FROM sessions
		ORDER BY startedAt DESC
		LIMIT 1
	`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

// SegmentsForSession returns the finalized segments of a session in order.
func (s *Store) SegmentsForSession(sessionID string) ([]Segment, error) {
	rows, err := s.db.Query(`
		SELECT id, sessionId, text, sequenceNumber, createdAt
		FROM segments
		WHERE sessionId = ?
		ORDER BY sequenceNumber ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var seg Segment
		var createdAt float64
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Text, &seg.SequenceNumber, &createdAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.CreatedAt = timeFromUnix(createdAt)
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSession passes sql.ErrNoRows through unwrapped.
func scanSession(row scanner) (*Session, error) {
	var sess Session
	var startedAt, createdAt float64
	var endedAt sql.NullFloat64

	if err := row.Scan(&sess.ID, &sess.PatientID, &sess.Locale, &startedAt, &endedAt,
		&sess.Status, &sess.Fallback, &sess.AudioPath, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.StartedAt = timeFromUnix(startedAt)
	sess.CreatedAt = timeFromUnix(createdAt)
	if endedAt.Valid {
		t := timeFromUnix(endedAt.Float64)
		sess.EndedAt = &t
	}
	return &sess, nil
}

func scanTranscript(row scanner) (*Transcript, error) {
	var tr Transcript
	var createdAt float64
	if err := row.Scan(&tr.SessionID, &tr.PatientID, &tr.Raw, &tr.Processed, &tr.Pending, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	tr.CreatedAt = timeFromUnix(createdAt)
	return &tr, nil
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
