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

type MessageRepo struct {
	db *DB
}

func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, sender_id, recipient_id, group_id, content, attachment_url,
	is_read, is_edited, reply_to_id, deleted_for_everyone, suppressed, created_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if (m.RecipientID == nil) == (m.GroupID == nil) {
		return domain.Invalid("message needs exactly one of recipient or group")
	}
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate message id: %w", err)
		}
		m.ID = id.String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.IsRead = false
	m.Suppressed = m.Suppressed && m.RecipientID != nil
	_, err := r.db.exec(ctx, r.db.sql, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.SenderID, m.RecipientID, m.GroupID, m.Content, m.AttachmentURL,
		false, false, m.ReplyToID, false, m.Suppressed, toNanos(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	m, err := scanMessage(r.db.queryRow(ctx, r.db.sql,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if err := r.attachState(ctx, []*domain.Message{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) GetMany(ctx context.Context, ids []string) (map[string]*domain.Message, error) {
	ids = uniq(ids)
	out := make(map[string]*domain.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in, args := placeholders(ids)
	rows, err := r.db.query(ctx, r.db.sql,
		`SELECT `+messageColumns+` FROM messages WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachState(ctx, msgs); err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ID] = m
	}
	return out, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, id string) (bool, error) {
	res, err := r.db.exec(ctx, r.db.sql, `
		UPDATE messages SET is_read = TRUE
		WHERE id = ? AND is_read = FALSE AND recipient_id IS NOT NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	changed, err := rowsChanged(res)
	if err != nil || changed {
		return changed, err
	}
	return false, r.mustExist(ctx, id)
}

// ToggleReaction deletes the (user, emoji) row if present and inserts it
// otherwise, inside one transaction holding the message row.
func (r *MessageRepo) ToggleReaction(ctx context.Context, id, userID, emoji string) (bool, error) {
	tx, err := r.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var deleted bool
	err = r.db.queryRow(ctx, tx,
		`SELECT deleted_for_everyone FROM messages WHERE id = ?`+r.db.forUpdate(), id,
	).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock message: %w", err)
	}
	if deleted {
		return false, domain.ErrMessageDeleted
	}

	res, err := r.db.exec(ctx, tx,
		`DELETE FROM message_reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
		id, userID, emoji,
	)
	if err != nil {
		return false, fmt.Errorf("remove reaction: %w", err)
	}
	removed, err := rowsChanged(res)
	if err != nil {
		return false, err
	}
	if !removed {
		if _, err := r.db.exec(ctx, tx, `
			INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, id, userID, emoji, toNanos(time.Now())); err != nil {
			return false, fmt.Errorf("add reaction: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reaction: %w", err)
	}
	return !removed, nil
}

func (r *MessageRepo) Hide(ctx context.Context, id, userID string) error {
	if err := r.mustExist(ctx, id); err != nil {
		return err
	}
	_, err := r.db.exec(ctx, r.db.sql, `
		INSERT INTO message_hidden (message_id, user_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, id, userID, toNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("hide message: %w", err)
	}
	return nil
}

// Tombstone redacts the message for every viewer. Content and attachment are
// cleared in the same statement that sets the flag.
func (r *MessageRepo) Tombstone(ctx context.Context, id string) (bool, error) {
	res, err := r.db.exec(ctx, r.db.sql, `
		UPDATE messages
		SET deleted_for_everyone = TRUE, content = '', attachment_url = NULL
		WHERE id = ? AND deleted_for_everyone = FALSE
	`, id)
	if err != nil {
		return false, fmt.Errorf("tombstone message: %w", err)
	}
	changed, err := rowsChanged(res)
	if err != nil || changed {
		return changed, err
	}
	return false, r.mustExist(ctx, id)
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id, content string) error {
	res, err := r.db.exec(ctx, r.db.sql, `
		UPDATE messages SET content = ?, is_edited = TRUE
		WHERE id = ? AND deleted_for_everyone = FALSE
	`, content, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	changed, err := rowsChanged(res)
	if err != nil || changed {
		return err
	}
	if err := r.mustExist(ctx, id); err != nil {
		return err
	}
	return domain.ErrMessageDeleted
}

// ListDirect returns the newest limit messages exchanged between viewerID and
// otherID, oldest first, skipping those viewerID has hidden and those
// suppressed for viewerID as their recipient.
func (r *MessageRepo) ListDirect(ctx context.Context, viewerID, otherID string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.query(ctx, r.db.sql, `
		SELECT `+messageColumns+` FROM messages m
		WHERE ((m.sender_id = ? AND m.recipient_id = ?)
		    OR (m.sender_id = ? AND m.recipient_id = ? AND m.suppressed = FALSE))
		  AND NOT EXISTS (
			SELECT 1 FROM message_hidden h WHERE h.message_id = m.id AND h.user_id = ?
		  )
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`, viewerID, otherID, otherID, viewerID, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list direct messages: %w", err)
	}
	return r.finishList(ctx, rows)
}

func (r *MessageRepo) ListGroup(ctx context.Context, groupID, viewerID string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.query(ctx, r.db.sql, `
		SELECT `+messageColumns+` FROM messages m
		WHERE m.group_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM message_hidden h WHERE h.message_id = m.id AND h.user_id = ?
		  )
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`, groupID, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	return r.finishList(ctx, rows)
}

// Recent keeps one row per conversation: the peer for private messages, the
// group for group messages. Only groups viewerID still belongs to count.
func (r *MessageRepo) Recent(ctx context.Context, viewerID string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.query(ctx, r.db.sql, `
		SELECT `+messageColumns+` FROM (
			SELECT c.*, ROW_NUMBER() OVER (
				PARTITION BY c.conversation ORDER BY c.created_at DESC, c.id DESC
			) AS rn
			FROM (
				SELECT m.*, CASE
					WHEN m.group_id IS NOT NULL THEN 'g:' || m.group_id
					WHEN m.sender_id = ? THEN 'u:' || m.recipient_id
					ELSE 'u:' || m.sender_id
				END AS conversation
				FROM messages m
				WHERE (
					(m.group_id IS NULL AND (m.sender_id = ? OR (m.recipient_id = ? AND m.suppressed = FALSE)))
					OR m.group_id IN (SELECT gm.group_id FROM group_members gm WHERE gm.user_id = ?)
				)
				  AND NOT EXISTS (
					SELECT 1 FROM message_hidden h WHERE h.message_id = m.id AND h.user_id = ?
				  )
			) c
		) t
		WHERE t.rn = 1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ?
	`, viewerID, viewerID, viewerID, viewerID, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent conversations: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachState(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *MessageRepo) DeleteDirect(ctx context.Context, userA, userB string) (int64, error) {
	res, err := r.db.exec(ctx, r.db.sql, `
		DELETE FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
	`, userA, userB, userB, userA)
	if err != nil {
		return 0, fmt.Errorf("delete conversation: %w", err)
	}
	return res.RowsAffected()
}

func (r *MessageRepo) DeleteGroup(ctx context.Context, groupID string) (int64, error) {
	res, err := r.db.exec(ctx, r.db.sql, `DELETE FROM messages WHERE group_id = ?`, groupID)
	if err != nil {
		return 0, fmt.Errorf("delete group messages: %w", err)
	}
	return res.RowsAffected()
}

func (r *MessageRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.exec(ctx, r.db.sql,
		`DELETE FROM messages WHERE created_at < ?`, toNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete expired messages: %w", err)
	}
	return res.RowsAffected()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (r *MessageRepo) mustExist(ctx context.Context, id string) error {
	var exists bool
	err := r.db.queryRow(ctx, r.db.sql,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE id = ?)`, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check message: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MessageRepo) finishList(ctx context.Context, rows *sql.Rows) ([]*domain.Message, error) {
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if err := r.attachState(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// attachState loads reactions and hide-lists for msgs. Callers must have
// closed the message rows first: the SQLite pool holds a single connection.
func (r *MessageRepo) attachState(ctx context.Context, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Message, len(msgs))
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
		m.Reactions = []domain.Reaction{}
		m.DeletedBy = []string{}
		ids = append(ids, m.ID)
	}
	in, args := placeholders(ids)

	rows, err := r.db.query(ctx, r.db.sql, `
		SELECT message_id, user_id, emoji, created_at FROM message_reactions
		WHERE message_id IN (`+in+`)
		ORDER BY created_at ASC, user_id ASC, emoji ASC
	`, args...)
	if err != nil {
		return fmt.Errorf("list reactions: %w", err)
	}
	for rows.Next() {
		var mid string
		var created int64
		var rc domain.Reaction
		if err := rows.Scan(&mid, &rc.UserID, &rc.Emoji, &created); err != nil {
			rows.Close()
			return fmt.Errorf("scan reaction: %w", err)
		}
		rc.CreatedAt = fromNanos(created)
		if m, ok := byID[mid]; ok {
			m.Reactions = append(m.Reactions, rc)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = r.db.query(ctx, r.db.sql, `
		SELECT message_id, user_id FROM message_hidden
		WHERE message_id IN (`+in+`)
		ORDER BY created_at ASC
	`, args...)
	if err != nil {
		return fmt.Errorf("list hidden: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mid, uid string
		if err := rows.Scan(&mid, &uid); err != nil {
			return fmt.Errorf("scan hidden: %w", err)
		}
		if m, ok := byID[mid]; ok {
			m.DeletedBy = append(m.DeletedBy, uid)
		}
	}
	return rows.Err()
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	var created int64
	err := row.Scan(
		&m.ID, &m.SenderID, &m.RecipientID, &m.GroupID, &m.Content, &m.AttachmentURL,
		&m.IsRead, &m.IsEdited, &m.ReplyToID, &m.DeletedForEveryone, &m.Suppressed, &created,
	)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = fromNanos(created)
	return m, nil
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	defer rows.Close()
	var msgs []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
