package postgres

import (
	"context"
	"database/sql"
	"dmchat/internal/core/domain"
)

type UserChatRepo struct {
	db *sql.DB
}

func NewUserChatRepo(db *sql.DB) *UserChatRepo {
	return &UserChatRepo{db: db}
}

func (r *UserChatRepo) GetUserChats(ctx context.Context, userID string) (*domain.UserChat, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT chat_with_id, username FROM user_chats
		WHERE user_id = $1
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	uc := &domain.UserChat{UserID: userID, Chats: []domain.ChatPartner{}}
	for rows.Next() {
		var c domain.ChatPartner
		if err := rows.Scan(&c.ChatWithID, &c.Username); err != nil {
			return nil, err
		}
		uc.Chats = append(uc.Chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(uc.Chats) == 0 {
		return nil, domain.ErrUserChatNotFound
	}
	return uc, nil
}

// SaveUserChats rewrites the whole list in one transaction so positions
// stay contiguous.
func (r *UserChatRepo) SaveUserChats(ctx context.Context, uc *domain.UserChat, _ bool) error {
	return WithTx(ctx, r.db, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, r.db)
		if _, err := exec.ExecContext(txCtx, `DELETE FROM user_chats WHERE user_id = $1`, uc.UserID); err != nil {
			return err
		}
		for i, c := range uc.Chats {
			if _, err := exec.ExecContext(txCtx, `
				INSERT INTO user_chats (user_id, chat_with_id, username, position)
				VALUES ($1, $2, $3, $4)
			`, uc.UserID, c.ChatWithID, c.Username, i); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ domain.UserChatRepository = (*UserChatRepo)(nil)
