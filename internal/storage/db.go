package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"receiptbook/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS messages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  status TEXT NOT NULL DEFAULT 'seen',
  attempts INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  sourceName TEXT,
  strategy TEXT NOT NULL,
  outcome TEXT NOT NULL,
  receiptNumber TEXT,
  messageId TEXT,
  timingsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_receiptNumber ON runs(receiptNumber);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// UpsertMessage records the latest status for a provider message and counts attempts.
func (d *DB) UpsertMessage(provider, messageID, subject, sender, status string) (internal.MessageRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO messages (provider, messageId, subject, sender, status, attempts)
VALUES (?, ?, ?, ?, ?, 1)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  status=excluded.status,
  attempts=messages.attempts + 1,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, status)
	if err != nil {
		return internal.MessageRow{}, err
	}

	row, err := d.GetMessage(provider, messageID)
	if err != nil {
		return internal.MessageRow{}, err
	}
	if row == nil {
		return internal.MessageRow{}, errors.New("failed to upsert message")
	}
	return *row, nil
}

func (d *DB) GetMessage(provider, messageID string) (*internal.MessageRow, error) {
	row := d.conn.QueryRow(`
SELECT id, provider, messageId, COALESCE(subject, ''), COALESCE(sender, ''), status, attempts, updatedAt
FROM messages WHERE provider = ? AND messageId = ?`, provider, messageID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *DB) ListMessagesByStatus(status string, limit int) ([]internal.MessageRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, COALESCE(subject, ''), COALESCE(sender, ''), status, attempts, updatedAt
FROM messages WHERE status = ? ORDER BY id DESC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]internal.MessageRow, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (internal.MessageRow, error) {
	var m internal.MessageRow
	err := s.Scan(&m.ID, &m.Provider, &m.MessageID, &m.Subject, &m.Sender, &m.Status, &m.Attempts, &m.UpdatedAt)
	return m, err
}

func (d *DB) InsertRun(run internal.RunRow, timings map[string]float64) error {
	timingsJSON, _ := json.Marshal(timings)
	_, err := d.conn.Exec(`
INSERT INTO runs (traceId, sourceName, strategy, outcome, receiptNumber, messageId, timingsJson)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.TraceID, run.SourceName, run.Strategy, run.Outcome, run.ReceiptNumber, run.MessageID, string(timingsJSON))
	return err
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, COALESCE(sourceName, ''), strategy, outcome, COALESCE(receiptNumber, ''),
       COALESCE(messageId, ''), timingsJson, createdAt
FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]internal.RunRow, 0)
	for rows.Next() {
		var r internal.RunRow
		if err := rows.Scan(&r.ID, &r.TraceID, &r.SourceName, &r.Strategy, &r.Outcome, &r.ReceiptNumber, &r.MessageID, &r.TimingsJSON, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
