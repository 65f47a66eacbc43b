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

type GroupRepo struct {
	db *DB
}

func NewGroupRepo(db *DB) *GroupRepo {
	return &GroupRepo{db: db}
}

var _ domain.GroupRepository = (*GroupRepo)(nil)

// Create inserts the group and its initial members in one transaction.
func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.CreatedAt = time.Now().UTC()

	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := r.db.exec(ctx, tx,
		`INSERT INTO chat_groups (id, name, created_at) VALUES (?, ?, ?)`,
		g.ID, g.Name, toNanos(g.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	for _, uid := range g.Members {
		if _, err := r.db.exec(ctx, tx, `
			INSERT INTO group_members (group_id, user_id, joined_at)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, g.ID, uid, toNanos(g.CreatedAt)); err != nil {
			return fmt.Errorf("insert member %s: %w", uid, err)
		}
	}
	return tx.Commit()
}

func (r *GroupRepo) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	g := &domain.Group{}
	var created int64
	err := r.db.queryRow(ctx, r.db.sql,
		`SELECT id, name, created_at FROM chat_groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	g.CreatedAt = fromNanos(created)
	if err := r.attachMembers(ctx, []*domain.Group{g}); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GroupRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Group, error) {
	rows, err := r.db.query(ctx, r.db.sql, `
		SELECT g.id, g.name, g.created_at
		FROM chat_groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = ?
		ORDER BY g.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	groups, err := scanGroups(rows)
	if err != nil {
		return nil, err
	}
	return groups, r.attachMembers(ctx, groups)
}

func (r *GroupRepo) ListAll(ctx context.Context) ([]*domain.Group, error) {
	rows, err := r.db.query(ctx, r.db.sql,
		`SELECT id, name, created_at FROM chat_groups ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	groups, err := scanGroups(rows)
	if err != nil {
		return nil, err
	}
	return groups, r.attachMembers(ctx, groups)
}

func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID string) (bool, error) {
	res, err := r.db.exec(ctx, r.db.sql, `
		INSERT INTO group_members (group_id, user_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, groupID, userID, toNanos(time.Now()))
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	return rowsChanged(res)
}

func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := r.db.queryRow(ctx, r.db.sql, `
		SELECT EXISTS(
			SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?
		)
	`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return exists, nil
}

// Delete removes the group and its membership. Messages addressed to the
// group are left in place.
func (r *GroupRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := r.db.exec(ctx, tx, `DELETE FROM group_members WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	res, err := r.db.exec(ctx, tx, `DELETE FROM chat_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	deleted, err := rowsChanged(res)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	return tx.Commit()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func scanGroups(rows *sql.Rows) ([]*domain.Group, error) {
	defer rows.Close()
	var groups []*domain.Group
	for rows.Next() {
		g := &domain.Group{}
		var created int64
		if err := rows.Scan(&g.ID, &g.Name, &created); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.CreatedAt = fromNanos(created)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *GroupRepo) attachMembers(ctx context.Context, groups []*domain.Group) error {
	if len(groups) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Group, len(groups))
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
		g.Members = []string{}
		ids = append(ids, g.ID)
	}
	in, args := placeholders(ids)
	rows, err := r.db.query(ctx, r.db.sql, `
		SELECT group_id, user_id FROM group_members
		WHERE group_id IN (`+in+`)
		ORDER BY joined_at ASC, user_id ASC
	`, args...)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var gid, uid string
		if err := rows.Scan(&gid, &uid); err != nil {
			return fmt.Errorf("scan member: %w", err)
		}
		if g, ok := byID[gid]; ok {
			g.Members = append(g.Members, uid)
		}
	}
	return rows.Err()
}
