package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sarthak03dot/Chat-App/internal/store/sqlstore"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(ctx context.Context, dsn string) (*sqlstore.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return sqlstore.New(db, sqlstore.Postgres), nil
}

// Migrate runs idempotent DDL for the chat schema on PostgreSQL.
// Timestamps are unix nanoseconds so both backends share one query set.
func Migrate(ctx context.Context, db *sqlstore.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT    PRIMARY KEY,
			username   TEXT    UNIQUE NOT NULL,
			profile    TEXT,
			is_online  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at BIGINT  NOT NULL,
			last_seen  BIGINT  NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_blocks (
			user_id    TEXT   NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			blocked_id TEXT   NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (user_id, blocked_id)
		)`,

		`CREATE TABLE IF NOT EXISTS chat_groups (
			id         TEXT   PRIMARY KEY,
			name       TEXT   NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id  TEXT   NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
			user_id   TEXT   NOT NULL,
			joined_at BIGINT NOT NULL,
			PRIMARY KEY (group_id, user_id)
		)`,

		// group_id carries no foreign key: messages outlive their group.
		`CREATE TABLE IF NOT EXISTS messages (
			id                   TEXT    PRIMARY KEY,
			sender_id            TEXT    NOT NULL,
			recipient_id         TEXT,
			group_id             TEXT,
			content              TEXT    NOT NULL DEFAULT '',
			attachment_url       TEXT,
			is_read              BOOLEAN NOT NULL DEFAULT FALSE,
			is_edited            BOOLEAN NOT NULL DEFAULT FALSE,
			reply_to_id          TEXT,
			deleted_for_everyone BOOLEAN NOT NULL DEFAULT FALSE,
			suppressed           BOOLEAN NOT NULL DEFAULT FALSE,
			created_at           BIGINT  NOT NULL,
			CONSTRAINT messages_one_target CHECK ((recipient_id IS NULL) <> (group_id IS NULL))
		)`,

		`CREATE TABLE IF NOT EXISTS message_reactions (
			message_id TEXT   NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id    TEXT   NOT NULL,
			emoji      TEXT   NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (message_id, user_id, emoji)
		)`,

		`CREATE TABLE IF NOT EXISTS message_hidden (
			message_id TEXT   NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id    TEXT   NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (message_id, user_id)
		)`,

		`ALTER TABLE messages ADD COLUMN IF NOT EXISTS suppressed BOOLEAN NOT NULL DEFAULT FALSE`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages(sender_id, recipient_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.SQL().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
