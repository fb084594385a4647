// Package sqlite is the durable store: reminders, the API call ledger and the
// reminder delivery journal.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"pokewatch/internal/reminder"
)

// DB wraps a SQLite database.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases coherent and writes serialized.
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS reminders (
	  username TEXT NOT NULL,
	  time_of_day TEXT NOT NULL,
	  min_required INTEGER NOT NULL,
	  message TEXT NOT NULL,
	  active INTEGER NOT NULL,
	  created_at INTEGER NOT NULL,
	  PRIMARY KEY (username, time_of_day)
	);
	CREATE TABLE IF NOT EXISTS api_calls (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  endpoint TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_api_calls_ts ON api_calls(ts);
	CREATE TABLE IF NOT EXISTS deliveries (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  run_id TEXT NOT NULL,
	  ts INTEGER NOT NULL,
	  reminder_id TEXT NOT NULL,
	  count INTEGER,
	  sent INTEGER NOT NULL,
	  reason TEXT,
	  error TEXT,
	  response TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_ts ON deliveries(ts);
	`)
	return err
}

// Put upserts a reminder by its key.
func (d *DB) Put(ctx context.Context, c reminder.Config) error {
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO reminders(username, time_of_day, min_required, message, active, created_at) VALUES(?,?,?,?,?,?)
	ON CONFLICT(username, time_of_day) DO UPDATE SET
	  min_required=excluded.min_required, message=excluded.message,
	  active=excluded.active, created_at=excluded.created_at`,
		c.Username, c.TimeOfDay, c.MinRequiredCount, c.Message, boolInt(c.Active), c.CreatedAt.UnixMilli())
	return err
}

func (d *DB) Get(ctx context.Context, k reminder.Key) (reminder.Config, bool, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT username, time_of_day, min_required, message, active, created_at FROM reminders WHERE username=? AND time_of_day=?`, k.Username, k.TimeOfDay)
	c, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return reminder.Config{}, false, nil
	}
	if err != nil {
		return reminder.Config{}, false, err
	}
	return c, true, nil
}

func (d *DB) List(ctx context.Context) ([]reminder.Config, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT username, time_of_day, min_required, message, active, created_at FROM reminders ORDER BY time_of_day, username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reminder.Config
	for rows.Next() {
		c, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanReminder(s scanner) (reminder.Config, error) {
	var c reminder.Config
	var active int
	var created int64
	if err := s.Scan(&c.Username, &c.TimeOfDay, &c.MinRequiredCount, &c.Message, &active, &created); err != nil {
		return c, err
	}
	c.Active = active != 0
	c.CreatedAt = time.UnixMilli(created).UTC()
	return c, nil
}

// RecordCall appends one outbound X API call to the ledger.
func (d *DB) RecordCall(ctx context.Context, ts time.Time, endpoint string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO api_calls(ts, endpoint) VALUES(?,?)`, ts.Unix(), endpoint)
	return err
}

// CountCallsWithin counts ledger entries in [start, end). An empty endpoint
// counts all endpoints.
func (d *DB) CountCallsWithin(ctx context.Context, start, end time.Time, endpoint string) (int, error) {
	var row *sql.Row
	if endpoint == "" {
		row = d.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM api_calls WHERE ts>=? AND ts<?`, start.Unix(), end.Unix())
	} else {
		row = d.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM api_calls WHERE ts>=? AND ts<? AND endpoint=?`, start.Unix(), end.Unix(), endpoint)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// RecordResult journals one due reminder outcome.
func (d *DB) RecordResult(ctx context.Context, runID string, at time.Time, r reminder.Result) error {
	var resp *string
	if r.Response != nil {
		b, err := json.Marshal(r.Response)
		if err != nil {
			return err
		}
		s := string(b)
		resp = &s
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO deliveries(run_id, ts, reminder_id, count, sent, reason, error, response) VALUES(?,?,?,?,?,?,?,?)`,
		runID, at.Unix(), r.ID, r.Count, boolInt(r.Sent), nullString(r.Reason), nullString(r.Error), resp)
	return err
}

// Delivery is a journaled reminder outcome.
type Delivery struct {
	RunID      string    `json:"run_id"`
	At         time.Time `json:"at"`
	ReminderID string    `json:"reminder_id"`
	Count      *int      `json:"count,omitempty"`
	Sent       bool      `json:"sent"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// LoadDeliveries returns journal entries in [start, end), oldest first.
func (d *DB) LoadDeliveries(ctx context.Context, start, end time.Time) ([]Delivery, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT run_id, ts, reminder_id, count, sent, COALESCE(reason,''), COALESCE(error,'') FROM deliveries WHERE ts>=? AND ts<? ORDER BY ts, id`, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		var dl Delivery
		var ts int64
		var cnt sql.NullInt64
		var sent int
		if err := rows.Scan(&dl.RunID, &ts, &dl.ReminderID, &cnt, &sent, &dl.Reason, &dl.Error); err != nil {
			return nil, err
		}
		dl.At = time.Unix(ts, 0).UTC()
		dl.Sent = sent != 0
		if cnt.Valid {
			n := int(cnt.Int64)
			dl.Count = &n
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
