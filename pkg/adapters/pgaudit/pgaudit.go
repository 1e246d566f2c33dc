// Package pgaudit is a Postgres-backed audit sink for the CloudEvents this
// core emits: it subscribes to an internal/events.Bus and persists every
// event so a certification or investigation can reconstruct the full
// history of a request or campaign after the fact.
package pgaudit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/ocx/grc-core/internal/apperrors"
	"github.com/ocx/grc-core/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS grc_event_log (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	source      TEXT NOT NULL,
	subject     TEXT,
	occurred_at TIMESTAMPTZ NOT NULL,
	data        JSONB
);
CREATE INDEX IF NOT EXISTS grc_event_log_subject_idx ON grc_event_log (subject);
CREATE INDEX IF NOT EXISTS grc_event_log_type_idx ON grc_event_log (type);
`

// Sink persists CloudEvents to Postgres.
type Sink struct {
	db  *sql.DB
	log *slog.Logger
}

// New opens the database connection and ensures the audit table exists.
func New(dbURL string, log *slog.Logger) (*Sink, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Fatal, "failed to open postgres connection")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.TransientExternal, "failed to ping postgres")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.Fatal, "failed to ensure audit schema")
	}

	log.Info("postgres audit sink connected")
	return &Sink{db: db, log: log}, nil
}

func (s *Sink) Close() error { return s.db.Close() }

// Record persists a single CloudEvent. Satisfies a subscriber loop driven
// off events.Bus.Subscribe, not events.Emitter — the sink only ever
// consumes events, it never originates them.
func (s *Sink) Record(ctx context.Context, ev *events.CloudEvent) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Fatal, "failed to marshal event data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO grc_event_log (id, type, source, subject, occurred_at, data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.Type, ev.Source, ev.Subject, ev.Time, data,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TransientExternal, "failed to insert audit record")
	}
	return nil
}

// Run subscribes to bus and persists every event until ctx is canceled.
// Intended to be launched in its own goroutine by the process that wires
// up the event bus.
func (s *Sink) Run(ctx context.Context, bus *events.Bus) {
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Record(ctx, ev); err != nil {
				s.log.Warn("failed to persist audit event", "event_id", ev.ID, "type", ev.Type, "error", err)
			}
		}
	}
}

// AuditTrail reports every persisted event for a given subject (typically
// an access request or certification campaign id), ordered chronologically,
// used to reconstruct the history a reviewer or auditor needs.
func (s *Sink) AuditTrail(ctx context.Context, subject string) ([]events.CloudEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, source, subject, occurred_at, data FROM grc_event_log
		 WHERE subject = $1 ORDER BY occurred_at ASC`, subject)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TransientExternal, "failed to query audit trail")
	}
	defer rows.Close()

	var out []events.CloudEvent
	for rows.Next() {
		var ev events.CloudEvent
		var rawData []byte
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Source, &ev.Subject, &ev.Time, &rawData); err != nil {
			return nil, apperrors.Wrap(err, apperrors.Fatal, "failed to scan audit row")
		}
		if len(rawData) > 0 {
			if err := json.Unmarshal(rawData, &ev.Data); err != nil {
				return nil, apperrors.Wrap(err, apperrors.Fatal, "failed to unmarshal audit data")
			}
		}
		ev.SpecVersion = "1.0"
		out = append(out, ev)
	}
	return out, rows.Err()
}
