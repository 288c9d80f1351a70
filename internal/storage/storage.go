// Package storage provides SQLite-backed audit history of dispatched alerts.
// The dedup state itself lives in the JSON state file; this store only keeps
// a browsable record of what was actually sent.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"stockwatch/internal/models"
)

// Storage wraps a SQLite database holding the dispatched-alert history.
type Storage struct {
	db        *sql.DB
	maxAlerts int
}

// HistoryEntry is one dispatched alert as persisted.
type HistoryEntry struct {
	ID          string
	Ticker      string
	Kind        models.RuleKind
	Fingerprint string
	Message     string
	FiredAt     time.Time
	SentAt      time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/stockwatch/history.db.
func New(maxAlerts int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "stockwatch", "history.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxAlerts: maxAlerts}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alert_history (
			id          TEXT PRIMARY KEY,
			ticker      TEXT NOT NULL,
			rule_kind   TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			message     TEXT NOT NULL,
			fired_at    INTEGER NOT NULL,
			sent_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_sent_at ON alert_history(sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_history_ticker ON alert_history(ticker)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordDispatched appends one dispatched event and enforces the history cap,
// evicting the oldest rows by sent_at.
func (s *Storage) RecordDispatched(ev models.AlertEvent, sentAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO alert_history (id, ticker, rule_kind, fingerprint, message, fired_at, sent_at)
		VALUES (?,?,?,?,?,?,?)`,
		uuid.New().String(), ev.Ticker, string(ev.Kind), ev.Fingerprint, ev.Message,
		ev.FiredAt.UnixNano(), sentAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM alert_history WHERE id NOT IN (
			SELECT id FROM alert_history ORDER BY sent_at DESC LIMIT ?
		)`, s.maxAlerts); err != nil {
		return fmt.Errorf("failed to enforce history cap: %w", err)
	}

	return tx.Commit()
}

// Recent returns up to limit entries, newest first.
func (s *Storage) Recent(limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, ticker, rule_kind, fingerprint, message, fired_at, sent_at
		FROM alert_history ORDER BY sent_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var kind string
		var firedAtNano, sentAtNano int64
		if err := rows.Scan(&e.ID, &e.Ticker, &kind, &e.Fingerprint, &e.Message, &firedAtNano, &sentAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Kind = models.RuleKind(kind)
		e.FiredAt = time.Unix(0, firedAtNano)
		e.SentAt = time.Unix(0, sentAtNano)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneBefore deletes entries sent before the cutoff and returns the count.
func (s *Storage) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM alert_history WHERE sent_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
