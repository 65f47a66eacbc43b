package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sarthak03dot/Chat-App/internal/store/sqlstore"
)

// Open opens a SQLite database at path (":memory:" for a private in-memory
// database). The pool is pinned to one connection so that an in-memory
// database survives and writers never contend.
func Open(ctx context.Context, path string) (*sqlstore.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return sqlstore.New(db, sqlstore.SQLite), nil
}

func dsn(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + pragmas + "&_pragma=journal_mode(WAL)"
}

// Migrate creates the chat schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlstore.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT UNIQUE NOT NULL,
			profile    TEXT,
			is_online  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at INTEGER NOT NULL,
			last_seen  INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_blocks (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			blocked_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, blocked_id)
		);`,
		`CREATE TABLE IF NOT EXISTS chat_groups (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id  TEXT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
			user_id   TEXT NOT NULL,
			joined_at INTEGER NOT NULL,
			PRIMARY KEY (group_id, user_id)
		);`,
		// group_id carries no foreign key: messages outlive their group.
		`CREATE TABLE IF NOT EXISTS messages (
			id                   TEXT PRIMARY KEY,
			sender_id            TEXT NOT NULL,
			recipient_id         TEXT,
			group_id             TEXT,
			content              TEXT NOT NULL DEFAULT '',
			attachment_url       TEXT,
			is_read              BOOLEAN NOT NULL DEFAULT FALSE,
			is_edited            BOOLEAN NOT NULL DEFAULT FALSE,
			reply_to_id          TEXT,
			deleted_for_everyone BOOLEAN NOT NULL DEFAULT FALSE,
			suppressed           BOOLEAN NOT NULL DEFAULT FALSE,
			created_at           INTEGER NOT NULL,
			CHECK ((recipient_id IS NULL) <> (group_id IS NULL))
		);`,
		`CREATE TABLE IF NOT EXISTS message_reactions (
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			emoji      TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (message_id, user_id, emoji)
		);`,
		`CREATE TABLE IF NOT EXISTS message_hidden (
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (message_id, user_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages(sender_id, recipient_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.SQL().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return addColumn(ctx, db, "messages", "suppressed", "BOOLEAN NOT NULL DEFAULT FALSE")
}

// addColumn adds column to table unless it is already there. SQLite has no
// ADD COLUMN IF NOT EXISTS.
func addColumn(ctx context.Context, db *sqlstore.DB, table, column, decl string) error {
	var n int
	err := db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("migrate: inspect %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.SQL().ExecContext(ctx,
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl)); err != nil {
		return fmt.Errorf("migrate: add %s.%s: %w", table, column, err)
	}
	return nil
}
