package domain

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidMessageID   = errors.New("invalid message id")
	ErrMessageNotFound    = errors.New("message not found")
	ErrUserChatNotFound   = errors.New("chat list not found")
	ErrUnknownEvent       = errors.New("unknown event")
)
