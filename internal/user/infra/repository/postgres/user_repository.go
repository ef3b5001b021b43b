package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/quickbid/internal/shared/db"
	"github.com/cristianortiz/quickbid/internal/shared/storage"
	"github.com/cristianortiz/quickbid/internal/user/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, is_admin, registered_at`

// UserRepository implements domain.UserStore for PostgreSQL.
type UserRepository struct {
	db db.DBTX
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db db.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetAll(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("user repository: get all", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.RegisteredAt); err != nil {
			return nil, storage.Unavailable("user repository: scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("user repository: get all", err)
	}
	return users, nil
}

// GetByID obtiene un usuario por su ID desde la base de datos.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, fmt.Sprintf("get user %d", id), query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return r.getOne(ctx, "get user by email", query, email)
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user repository: %s: %w", op, domain.ErrUserNotFound)
		}
		return nil, storage.Unavailable("user repository: "+op, err)
	}
	return &u, nil
}

// Create inserts the user, the database assigns id and registered_at.
func (r *UserRepository) Create(ctx context.Context, fields domain.NewUser) (*domain.User, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("user repository: create: %w", err)
	}

	query := `
        INSERT INTO users (name, email, is_admin)
        VALUES ($1, $2, $3)
        RETURNING id, registered_at
    `
	u := domain.User{Name: fields.Name, Email: fields.Email, IsAdmin: fields.IsAdmin}
	err := r.db.QueryRow(ctx, query, u.Name, u.Email, u.IsAdmin).Scan(&u.ID, &u.RegisteredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("user repository: create %s: %w", u.Email, domain.ErrEmailTaken)
		}
		return nil, storage.Unavailable("user repository: create", err)
	}
	return &u, nil
}

// Update replaces name and email of user id.
func (r *UserRepository) Update(ctx context.Context, id int64, profile domain.Profile) (*domain.User, error) {
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("user repository: update user %d: %w", id, err)
	}

	query := `
        UPDATE users SET name = $2, email = $3
        WHERE id = $1
        RETURNING ` + userColumns

	var u domain.User
	err := r.db.QueryRow(ctx, query, id, profile.Name, profile.Email).
		Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user repository: update user %d: %w", id, domain.ErrUserNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("user repository: update user %d to %s: %w", id, profile.Email, domain.ErrEmailTaken)
		}
		return nil, storage.Unavailable("user repository: update", err)
	}
	return &u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return storage.Unavailable("user repository: delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user repository: delete user %d: %w", id, domain.ErrUserNotFound)
	}
	return nil
}
