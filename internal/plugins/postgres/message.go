package postgres

import (
	"context"
	"database/sql"
	"dmchat/internal/core/domain"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type MessageRepo struct {
	db    *sql.DB
	types *pgtype.Map
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{
		db:    db,
		types: pgtype.NewMap(),
	}
}

const messageColumns = `id, sender_id, receiver_id, content, image_urls, audio_urls, document_urls, created_at, seen, seen_at`

func (r *MessageRepo) CreateMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		return domain.ErrInvalidMessageID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		m.ID,
		m.SenderID,
		m.ReceiverID,
		m.Content,
		m.ImageURLs,
		m.AudioURLs,
		m.DocumentURLs,
		m.Timestamp,
		m.Seen,
		m.SeenAt,
	)
	return err
}

func (r *MessageRepo) GetMessageByID(ctx context.Context, id string) (*domain.Message, error) {
	if id == "" {
		return nil, domain.ErrInvalidMessageID
	}
	exec := GetExecutor(ctx, r.db)
	m, err := r.scan(exec.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	return m, err
}

func (r *MessageRepo) ListConversation(ctx context.Context, a, b string) ([]domain.Message, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC
	`, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := []domain.Message{}
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (r *MessageRepo) MarkSeen(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error) {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE messages SET seen = true, seen_at = $3
		WHERE sender_id = $1 AND receiver_id = $2 AND NOT seen
	`, senderID, receiverID, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *MessageRepo) FilterOwned(ctx context.Context, ids []string, senderID string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `SELECT id FROM messages WHERE id = ANY($1) AND sender_id = $2`, ids, senderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var owned []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owned = append(owned, id)
	}
	return owned, rows.Err()
}

func (r *MessageRepo) DeleteMessage(ctx context.Context, id string) error {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepo) DeleteMessages(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `DELETE FROM messages WHERE id = ANY($1) RETURNING id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var removed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		removed = append(removed, id)
	}
	return removed, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *MessageRepo) scan(row rowScanner) (*domain.Message, error) {
	var (
		m      domain.Message
		seenAt sql.NullTime
	)
	if err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Content,
		r.types.SQLScanner(&m.ImageURLs),
		r.types.SQLScanner(&m.AudioURLs),
		r.types.SQLScanner(&m.DocumentURLs),
		&m.Timestamp,
		&m.Seen,
		&seenAt,
	); err != nil {
		return nil, err
	}
	if seenAt.Valid {
		m.SeenAt = &seenAt.Time
	}
	return &m, nil
}

var _ domain.MessageRepository = (*MessageRepo)(nil)
