package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/blueberrycongee/supportdesk/internal/metrics"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// Schema creates the transcript tables. Conversations carry the informational
// status; messages hold one row per user or assistant utterance; appointments
// hold one row per confirmed booking.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
	session_id TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id                  BIGSERIAL PRIMARY KEY,
	session_id          TEXT NOT NULL REFERENCES conversations(session_id) ON DELETE CASCADE,
	turn_number         INTEGER NOT NULL,
	role                TEXT NOT NULL,
	content             TEXT NOT NULL,
	intent              TEXT,
	confidence          DOUBLE PRECISION,
	entities            JSONB,
	requires_escalation BOOLEAN NOT NULL DEFAULT FALSE,
	escalation_reason   TEXT,
	task_state          TEXT,
	created_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, turn_number);

CREATE TABLE IF NOT EXISTS appointments (
	reference_id TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES conversations(session_id) ON DELETE CASCADE,
	user_id      TEXT NOT NULL,
	name         TEXT,
	email        TEXT,
	phone        TEXT,
	service_type TEXT,
	date         TEXT,
	time         TEXT,
	requirements TEXT,
	details      JSONB NOT NULL,
	status       TEXT NOT NULL DEFAULT 'confirmed',
	confirmed_at TIMESTAMPTZ NOT NULL
);
`

const (
	upsertConversation = `
		INSERT INTO conversations (session_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			status = CASE WHEN EXCLUDED.status = 'escalated' THEN 'escalated' ELSE conversations.status END,
			updated_at = EXCLUDED.updated_at`

	insertMessage = `
		INSERT INTO messages (session_id, turn_number, role, content, intent, confidence,
		                      entities, requires_escalation, escalation_reason, task_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	// Redelivered records must not fail on the primary key.
	insertAppointment = `
		INSERT INTO appointments (reference_id, session_id, user_id, name, email, phone,
		                          service_type, date, time, requirements, details, status, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'confirmed', $12)
		ON CONFLICT (reference_id) DO NOTHING`
)

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
	// Migrate creates the schema on startup.
	Migrate bool
}

// DefaultPostgresConfig returns sensible defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		ConnLifetime: 5 * time.Minute,
		Migrate:      true,
	}
}

// PostgresSink writes turns into the conversations and messages tables and
// confirmed bookings into appointments.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens the database and optionally applies Schema.
func NewPostgresSink(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	sink := NewPostgresSinkFromDB(db)
	if cfg.Migrate {
		if err := sink.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return sink, nil
}

// NewPostgresSinkFromDB wraps an open database handle.
func NewPostgresSinkFromDB(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Name() string { return "postgres" }

// Migrate applies Schema.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply transcript schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Write stores the user message and the reply of one turn in a single transaction.
func (s *PostgresSink) Write(ctx context.Context, rec types.TurnRecord) (err error) {
	defer metrics.UpdateDBPoolStats(s.db.Stats())

	entities, err := json.Marshal(rec.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	status := "active"
	if rec.RequiresEscalation {
		status = "escalated"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, upsertConversation, rec.SessionID, rec.UserID, status, rec.Timestamp); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	if _, err = tx.ExecContext(ctx, insertMessage,
		rec.SessionID, rec.TurnNumber, "user", rec.UserText,
		nil, nil, nil, false, nil, nil, rec.Timestamp,
	); err != nil {
		return fmt.Errorf("insert user message: %w", err)
	}
	if _, err = tx.ExecContext(ctx, insertMessage,
		rec.SessionID, rec.TurnNumber, "assistant", rec.BotText,
		string(rec.Intent), rec.Confidence, string(entities), rec.RequiresEscalation,
		nullString(string(rec.EscalationReason)), string(rec.TaskState), rec.Timestamp,
	); err != nil {
		return fmt.Errorf("insert assistant message: %w", err)
	}
	if rec.Booking != nil {
		if err = insertBooking(ctx, tx, rec); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertBooking(ctx context.Context, tx *sql.Tx, rec types.TurnRecord) error {
	b := rec.Booking
	details, err := json.Marshal(b.Details)
	if err != nil {
		return fmt.Errorf("encode booking details: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertAppointment,
		b.ReferenceID, rec.SessionID, rec.UserID,
		nullString(b.Details.Get(types.SlotName)),
		nullString(b.Details.Get(types.SlotEmail)),
		nullString(b.Details.Get(types.SlotPhone)),
		nullString(b.Details.Get(types.SlotServiceType)),
		nullString(b.Details.Get(types.SlotDate)),
		nullString(b.Details.Get(types.SlotTime)),
		nullString(b.Details.Get(types.SlotRequirements)),
		string(details), b.ConfirmedAt,
	); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresSink) Close(ctx context.Context) error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
