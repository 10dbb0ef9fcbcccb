package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	// registers the "postgres" sql.DB driver
	_ "github.com/lib/pq"
)

// PostgresLog implements Log against a Postgres database, for deployments
// that want the event history to outlive a single CI job's workspace.
type PostgresLog struct {
	db *sql.DB
}

func NewPostgresLog(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

const pgEventLogSchema = `
CREATE TABLE IF NOT EXISTS eventlog_records (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	signing_event TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS eventlog_records_event_kind_idx
	ON eventlog_records (signing_event, kind, created_at);
`

func (l *PostgresLog) Init(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, pgEventLogSchema)
	return err
}

func (l *PostgresLog) Append(rec Record) error {
	return l.AppendContext(context.Background(), rec)
}

func (l *PostgresLog) AppendContext(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("eventlog: record id is required")
	}
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("eventlog: marshal payload: %w", err)
	}

	query := `
		INSERT INTO eventlog_records (id, kind, signing_event, content_hash, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET kind = $2, signing_event = $3, content_hash = $4, payload_json = $5, created_at = $6
	`
	_, err = l.db.ExecContext(ctx, query, rec.ID, string(rec.Kind), rec.SigningEvent, rec.ContentHash, payloadJSON, rec.CreatedAt)
	return err
}

func (l *PostgresLog) Get(id string) (Record, error) {
	return l.GetContext(context.Background(), id)
}

func (l *PostgresLog) GetContext(ctx context.Context, id string) (Record, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, kind, signing_event, content_hash, payload_json, created_at
		FROM eventlog_records WHERE id = $1
	`, id)
	return scanRecord(row)
}

func (l *PostgresLog) ListForEvent(signingEvent string, kind Kind) ([]Record, error) {
	return l.ListForEventContext(context.Background(), signingEvent, kind)
}

func (l *PostgresLog) ListForEventContext(ctx context.Context, signingEvent string, kind Kind) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, kind, signing_event, content_hash, payload_json, created_at
		FROM eventlog_records
		WHERE signing_event = $1 AND kind = $2
		ORDER BY created_at ASC
	`, signingEvent, string(kind))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (l *PostgresLog) Latest(signingEvent string, kind Kind) (Record, error) {
	recs, err := l.ListForEvent(signingEvent, kind)
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrRecordNotFound
	}
	return recs[len(recs)-1], nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var kind string
	var payloadJSON []byte
	if err := row.Scan(&rec.ID, &kind, &rec.SigningEvent, &rec.ContentHash, &payloadJSON, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	rec.Kind = Kind(kind)
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
			return Record{}, fmt.Errorf("eventlog: unmarshal payload: %w", err)
		}
	}
	return rec, nil
}
