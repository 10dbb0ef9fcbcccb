package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// registers the "sqlite" sql.DB driver
	_ "modernc.org/sqlite"
)

// SQLiteLog implements Log against an embedded SQLite database, the
// default persistent backend when a CI job wants history to survive
// across steps of the same job without standing up Postgres.
type SQLiteLog struct {
	db *sql.DB
}

func OpenSQLiteLog(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open sqlite: %w", err)
	}
	l := &SQLiteLog{db: db}
	if err := l.migrate(); err != nil {
		return nil, err
	}
	return l, nil
}

const sqliteEventLogSchema = `
CREATE TABLE IF NOT EXISTS eventlog_records (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	signing_event TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS eventlog_records_event_kind_idx
	ON eventlog_records (signing_event, kind, created_at);
`

func (l *SQLiteLog) migrate() error {
	_, err := l.db.Exec(sqliteEventLogSchema)
	return err
}

func (l *SQLiteLog) Close() error { return l.db.Close() }

func (l *SQLiteLog) Append(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("eventlog: record id is required")
	}
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("eventlog: marshal payload: %w", err)
	}
	_, err = l.db.ExecContext(context.Background(), `
		INSERT INTO eventlog_records (id, kind, signing_event, content_hash, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind, signing_event=excluded.signing_event,
			content_hash=excluded.content_hash, payload_json=excluded.payload_json,
			created_at=excluded.created_at
	`, rec.ID, string(rec.Kind), rec.SigningEvent, rec.ContentHash, payloadJSON, rec.CreatedAt.Format(timeLayout))
	return err
}

func (l *SQLiteLog) Get(id string) (Record, error) {
	row := l.db.QueryRow(`
		SELECT id, kind, signing_event, content_hash, payload_json, created_at
		FROM eventlog_records WHERE id = ?
	`, id)
	return scanSQLiteRecord(row)
}

func (l *SQLiteLog) ListForEvent(signingEvent string, kind Kind) ([]Record, error) {
	rows, err := l.db.Query(`
		SELECT id, kind, signing_event, content_hash, payload_json, created_at
		FROM eventlog_records
		WHERE signing_event = ? AND kind = ?
		ORDER BY created_at ASC
	`, signingEvent, string(kind))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (l *SQLiteLog) Latest(signingEvent string, kind Kind) (Record, error) {
	recs, err := l.ListForEvent(signingEvent, kind)
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrRecordNotFound
	}
	return recs[len(recs)-1], nil
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseTimeLayout(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func scanSQLiteRecord(row rowScanner) (Record, error) {
	var rec Record
	var kind, createdAt string
	var payloadJSON []byte
	if err := row.Scan(&rec.ID, &kind, &rec.SigningEvent, &rec.ContentHash, &payloadJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	rec.Kind = Kind(kind)
	ts, err := parseTimeLayout(createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("eventlog: parse created_at: %w", err)
	}
	rec.CreatedAt = ts
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
			return Record{}, fmt.Errorf("eventlog: unmarshal payload: %w", err)
		}
	}
	return rec, nil
}
