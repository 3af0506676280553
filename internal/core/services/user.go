package services

import (
	"context"
	"dmchat/internal/core/domain"
	"dmchat/pkg/logging"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 10

// Credentials is the body of the register and login requests.
type Credentials struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

type UserService struct {
	log  *slog.Logger
	repo domain.UserRepository
}

func NewUserService(log *slog.Logger, repo domain.UserRepository) *UserService {
	return &UserService{
		log:  log,
		repo: repo,
	}
}

// Register creates a user with a bcrypt password hash.
func (s *UserService) Register(ctx context.Context, in Credentials) (*domain.User, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, domain.ErrUserAlreadyExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		s.log.ErrorContext(ctx, "user - register - lookup failed", "username", in.Username, logging.Err(err))
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := domain.NewUser(in.Username, string(hash))
	if err := s.repo.CreateUser(ctx, u); err != nil {
		s.log.ErrorContext(ctx, "user - register - create user failed", "username", in.Username, logging.Err(err))
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	s.log.InfoContext(ctx, "user - register - success", logging.User(u.ID))
	return u, nil
}

// Login verifies the password. Unknown users and wrong passwords both
// return ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, in Credentials) (*domain.User, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	u, err := s.repo.GetUserByUsername(ctx, in.Username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		s.log.WarnContext(ctx, "user - login - wrong password", logging.User(u.ID))
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}
