// internal/history/db.go
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DispatchRecord is one hook command execution in the history.
type DispatchRecord struct {
	ID          int64
	SourceID    string
	SourceName  string
	EventName   string // canonical name the rule was bound to
	RawType     string
	CallID      string
	Command     string
	State       string // success, failure, timeout
	StartedAt   time.Time
	FinishedAt  time.Time
	DurationMs  int64
	ExitCode    int
	Error       string
	Output      string // combined output, truncated to 10KB
	SessionFile string
}

// DB wraps the SQLite connection holding dispatch history.
type DB struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dispatch_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT NOT NULL,
    source_name TEXT NOT NULL,
    event_name TEXT NOT NULL,
    raw_type TEXT NOT NULL,
    call_id TEXT,
    command TEXT NOT NULL,
    state TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    duration_ms INTEGER NOT NULL,
    exit_code INTEGER DEFAULT 0,
    error TEXT,
    output TEXT,
    session_file TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_dispatch_history_event ON dispatch_history(event_name);
CREATE INDEX IF NOT EXISTS idx_dispatch_history_state ON dispatch_history(state);
CREATE INDEX IF NOT EXISTS idx_dispatch_history_started ON dispatch_history(started_at);
`

// Open opens or creates a history database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if count == 0 {
		db.Exec("INSERT INTO schema_version (version) VALUES (1)")
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Record stores a dispatch record and returns its ID. Output is
// truncated to 10KB before storage.
func (d *DB) Record(rec DispatchRecord) (int64, error) {
	if len(rec.Output) > 10240 {
		rec.Output = rec.Output[:10240]
	}

	result, err := d.db.Exec(`
		INSERT INTO dispatch_history
		(source_id, source_name, event_name, raw_type, call_id, command, state,
		 started_at, finished_at, duration_ms, exit_code, error, output, session_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SourceID, rec.SourceName, rec.EventName, rec.RawType, rec.CallID,
		rec.Command, rec.State, rec.StartedAt, rec.FinishedAt, rec.DurationMs,
		rec.ExitCode, rec.Error, rec.Output, rec.SessionFile,
	)
	if err != nil {
		return 0, fmt.Errorf("recording dispatch: %w", err)
	}
	return result.LastInsertId()
}

// GetHistory returns recent records, newest first, optionally filtered
// by event name and state.
func (d *DB) GetHistory(eventName, state string, limit int) ([]DispatchRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := "SELECT id, source_id, source_name, event_name, raw_type, call_id, command, state, started_at, finished_at, duration_ms, exit_code, error, output, session_file FROM dispatch_history WHERE 1=1"
	var args []any
	if eventName != "" {
		query += " AND event_name = ?"
		args = append(args, eventName)
	}
	if state != "" {
		query += " AND state = ?"
		args = append(args, state)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []DispatchRecord
	for rows.Next() {
		var rec DispatchRecord
		var callID, errMsg, output, sessionFile sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SourceID, &rec.SourceName, &rec.EventName,
			&rec.RawType, &callID, &rec.Command, &rec.State, &rec.StartedAt,
			&rec.FinishedAt, &rec.DurationMs, &rec.ExitCode, &errMsg, &output, &sessionFile); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.CallID = callID.String
		rec.Error = errMsg.String
		rec.Output = output.String
		rec.SessionFile = sessionFile.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Cleanup deletes records older than retentionDays and returns the
// number removed.
func (d *DB) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result, err := d.db.Exec("DELETE FROM dispatch_history WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up history: %w", err)
	}
	return result.RowsAffected()
}
