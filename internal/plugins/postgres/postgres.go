package postgres

import (
	"context"
	"database/sql"
	"dmchat/internal/config"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// New opens an instrumented pgx pool and checks it is reachable.
func New(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := otelsql.Open("pgx", cfg.DSN,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	if err != nil {
		return nil, err
	}
	otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	// Pool tuning
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	// Health check
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	password   TEXT NOT NULL,
	last_seen  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id            TEXT PRIMARY KEY,
	sender_id     TEXT NOT NULL,
	receiver_id   TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	image_urls    TEXT[] NOT NULL DEFAULT '{}',
	audio_urls    TEXT[] NOT NULL DEFAULT '{}',
	document_urls TEXT[] NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	seen          BOOLEAN NOT NULL DEFAULT false,
	seen_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS messages_pair_idx ON messages (sender_id, receiver_id, created_at);
CREATE INDEX IF NOT EXISTS messages_unseen_idx ON messages (receiver_id, sender_id) WHERE NOT seen;

CREATE TABLE IF NOT EXISTS user_chats (
	user_id      TEXT NOT NULL,
	chat_with_id TEXT NOT NULL,
	username     TEXT NOT NULL DEFAULT '',
	position     INT  NOT NULL,
	PRIMARY KEY (user_id, chat_with_id)
);
`

// Migrate creates the tables when they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
