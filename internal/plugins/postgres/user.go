package postgres

import (
	"context"
	"database/sql"
	"dmchat/internal/core/domain"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type UserRepo struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		return domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx,
		`INSERT INTO users (id, username, password, last_seen) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Username, u.PasswordHash, u.LastSeen)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrUserAlreadyExists
	}
	return err
}

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrInvalidUserID
	}
	return r.getOne(ctx, `SELECT id, username, password, last_seen FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT id, username, password, last_seen FROM users WHERE username = $1`, username)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var u domain.User
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `SELECT id, username, last_seen FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.LastSeen); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `UPDATE users SET last_seen = GREATEST(last_seen, $2) WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

var _ domain.UserRepository = (*UserRepo)(nil)
