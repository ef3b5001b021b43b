package domain

import (
	"errors"

	"github.com/cristianortiz/quickbid/internal/shared/storage"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidUser      = errors.New("invalid user")
	ErrEmailTaken       = errors.New("email is already registered")
	ErrStoreUnavailable = storage.ErrUnavailable
)
