package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cristianortiz/quickbid/internal/user/domain"
)

// UserRepository is a concurrency-safe in-memory implementation of domain.UserStore
type UserRepository struct {
	mu      sync.RWMutex
	users   map[int64]domain.User
	byEmail map[string]int64
	nextID  int64
	now     func() time.Time
}

// NewUserRepository creates an empty repository. now stamps RegisteredAt, nil means time.Now in UTC.
func NewUserRepository(now func() time.Time) *UserRepository {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &UserRepository{
		users:   make(map[int64]domain.User),
		byEmail: make(map[string]int64),
		now:     now,
	}
}

// GetAll returns the users ordered by id
func (r *UserRepository) GetAll(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user repository: get user %d: %w", id, domain.ErrUserNotFound)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, fmt.Errorf("user repository: get user by email: %w", domain.ErrUserNotFound)
	}
	u := r.users[id]
	return &u, nil
}

// Create validates fields and stores a new user with the next id
func (r *UserRepository) Create(ctx context.Context, fields domain.NewUser) (*domain.User, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("user repository: create: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[fields.Email]; taken {
		return nil, fmt.Errorf("user repository: create %s: %w", fields.Email, domain.ErrEmailTaken)
	}

	r.nextID++
	u := domain.User{
		ID:           r.nextID,
		Name:         fields.Name,
		Email:        fields.Email,
		RegisteredAt: r.now(),
		IsAdmin:      fields.IsAdmin,
	}
	r.users[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return &u, nil
}

// Update replaces the profile of user id, keeping the email index in sync
func (r *UserRepository) Update(ctx context.Context, id int64, profile domain.Profile) (*domain.User, error) {
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("user repository: update user %d: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user repository: update user %d: %w", id, domain.ErrUserNotFound)
	}
	if owner, taken := r.byEmail[profile.Email]; taken && owner != id {
		return nil, fmt.Errorf("user repository: update user %d to %s: %w", id, profile.Email, domain.ErrEmailTaken)
	}

	delete(r.byEmail, u.Email)
	u.Name = profile.Name
	u.Email = profile.Email
	r.users[id] = u
	r.byEmail[u.Email] = id
	return &u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user repository: delete user %d: %w", id, domain.ErrUserNotFound)
	}
	delete(r.users, id)
	delete(r.byEmail, u.Email)
	return nil
}
