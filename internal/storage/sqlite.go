// Package storage persists the recording collection and the billing
// account in a local sqlite database.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/recording"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "memovox.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			doc TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create recordings table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS account (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			balance INTEGER NOT NULL DEFAULT 0
		);
	`); err != nil {
		return fmt.Errorf("create account table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS usage_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			amount INTEGER NOT NULL,
			note TEXT NOT NULL,
			timestamp TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create usage_log table: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR IGNORE INTO account(id, balance) VALUES(1, 0)`); err != nil {
		return fmt.Errorf("seed account row: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_recordings_position ON recordings(position)"); err != nil {
		return fmt.Errorf("create recordings index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the whole recording collection in position order.
func (s *SQLiteStore) Load() ([]recording.Recording, error) {
	rows, err := s.db.Query(`SELECT doc FROM recordings ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recordings := make([]recording.Recording, 0, 16)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}

		var rec recording.Recording
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("decode recording: %w", err)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recording rows: %w", err)
	}

	return recordings, nil
}

// Save rewrites the whole recording collection in one transaction. There
// is deliberately no partial-field update path: every mutation goes
// through load, change, save.
func (s *SQLiteStore) Save(recordings []recording.Recording) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM recordings`); err != nil {
		return fmt.Errorf("clear recordings: %w", err)
	}

	for i := range recordings {
		doc, err := json.Marshal(&recordings[i])
		if err != nil {
			return fmt.Errorf("encode recording %s: %w", recordings[i].ID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO recordings(id, position, doc) VALUES(?, ?, ?)`,
			recordings[i].ID, i, string(doc),
		); err != nil {
			return fmt.Errorf("insert recording %s: %w", recordings[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Balance() (int64, error) {
	var balance int64
	if err := s.db.QueryRow(`SELECT balance FROM account WHERE id = 1`).Scan(&balance); err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

// Debit decrements the balance and appends the usage entry atomically.
// The guarded UPDATE refuses to take the balance negative.
func (s *SQLiteStore) Debit(amount int64, entry billing.UsageEntry) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin debit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`UPDATE account SET balance = balance - ? WHERE id = 1 AND balance >= ?`,
		amount, amount,
	)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit rows affected: %w", err)
	}
	if rows == 0 {
		return billing.ErrInsufficientBalance
	}

	if err := appendUsage(tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit debit: %w", err)
	}
	return nil
}

// Credit increments the balance and appends the top-up entry atomically.
func (s *SQLiteStore) Credit(amount int64, entry billing.UsageEntry) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin credit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE account SET balance = balance + ? WHERE id = 1`, amount); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}

	if err := appendUsage(tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UsageLog() ([]billing.UsageEntry, error) {
	rows, err := s.db.Query(`SELECT action, amount, note, timestamp FROM usage_log ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query usage log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]billing.UsageEntry, 0, 32)
	for rows.Next() {
		var entry billing.UsageEntry
		var ts string
		if err := rows.Scan(&entry.Action, &entry.Amount, &entry.Note, &ts); err != nil {
			return nil, fmt.Errorf("scan usage entry: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse usage timestamp: %w", err)
		}
		entry.Timestamp = parsed

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}

	return entries, nil
}

func appendUsage(tx *sql.Tx, entry billing.UsageEntry) error {
	if _, err := tx.Exec(
		`INSERT INTO usage_log(action, amount, note, timestamp) VALUES(?, ?, ?, ?)`,
		entry.Action,
		entry.Amount,
		entry.Note,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("append usage entry: %w", err)
	}
	return nil
}
