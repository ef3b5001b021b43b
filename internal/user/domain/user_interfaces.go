package domain

import "context"

//go:generate mockgen -source=user_interfaces.go -destination=mocks/user_store_mock.go -package=mocks

// UserStore persists users. Create must assign a unique id that GetByID resolves right after it returns.
type UserStore interface {
	GetAll(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, fields NewUser) (*User, error)
	// Update replaces name and email, the email must stay unique
	Update(ctx context.Context, id int64, profile Profile) (*User, error)
	Delete(ctx context.Context, id int64) error
}
