package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sarthak03dot/Chat-App/internal/domain"
)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `id, username, profile, is_online, created_at, last_seen`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.LastSeen = now, now
	_, err := r.db.exec(ctx, r.db.sql, `
		INSERT INTO users (id, username, profile, is_online, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Profile, u.IsOnline, toNanos(now), toNanos(now))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID loads a user including the block-list.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.queryRow(ctx, r.db.sql,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	rows, err := r.db.query(ctx, r.db.sql,
		`SELECT blocked_id FROM user_blocks WHERE user_id = ? ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var blocked string
		if err := rows.Scan(&blocked); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		u.BlockedUsers = append(u.BlockedUsers, blocked)
	}
	return u, rows.Err()
}

// GetMany loads display identities keyed by id. Block-lists are not loaded;
// unknown ids are absent from the result.
func (r *UserRepo) GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	ids = uniq(ids)
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in, args := placeholders(ids)
	rows, err := r.db.query(ctx, r.db.sql,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.query(ctx, r.db.sql,
		`SELECT `+userColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return scanUsers(rows)
}

func (r *UserRepo) SetOnline(ctx context.Context, id string, online bool) error {
	res, err := r.db.exec(ctx, r.db.sql,
		`UPDATE users SET is_online = ?, last_seen = ? WHERE id = ?`,
		online, toNanos(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	changed, err := rowsChanged(res)
	if err != nil {
		return err
	}
	if !changed {
		return domain.ErrNotFound
	}
	return nil
}

// ResetOnline clears every online flag. Called at start-up when no
// connection can exist yet.
func (r *UserRepo) ResetOnline(ctx context.Context) error {
	if _, err := r.db.exec(ctx, r.db.sql,
		`UPDATE users SET is_online = FALSE WHERE is_online = TRUE`); err != nil {
		return fmt.Errorf("reset online: %w", err)
	}
	return nil
}

func (r *UserRepo) Block(ctx context.Context, userID, blockedID string) error {
	_, err := r.db.exec(ctx, r.db.sql, `
		INSERT INTO user_blocks (user_id, blocked_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, userID, blockedID, toNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	return nil
}

func (r *UserRepo) Unblock(ctx context.Context, userID, blockedID string) error {
	_, err := r.db.exec(ctx, r.db.sql,
		`DELETE FROM user_blocks WHERE user_id = ? AND blocked_id = ?`, userID, blockedID)
	if err != nil {
		return fmt.Errorf("unblock user: %w", err)
	}
	return nil
}

func (r *UserRepo) IsBlocked(ctx context.Context, ownerID, otherID string) (bool, error) {
	var exists bool
	err := r.db.queryRow(ctx, r.db.sql, `
		SELECT EXISTS(
			SELECT 1 FROM user_blocks WHERE user_id = ? AND blocked_id = ?
		)
	`, ownerID, otherID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return exists, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var created, seen int64
	if err := row.Scan(&u.ID, &u.Username, &u.Profile, &u.IsOnline, &created, &seen); err != nil {
		return nil, err
	}
	u.CreatedAt, u.LastSeen = fromNanos(created), fromNanos(seen)
	return u, nil
}

func scanUsers(rows *sql.Rows) ([]*domain.User, error) {
	defer rows.Close()
	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
