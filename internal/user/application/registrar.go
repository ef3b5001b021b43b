package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	auctiondomain "github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/cristianortiz/quickbid/internal/user/domain"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// BidLister is the part of the bid store the user module reads
type BidLister interface {
	GetByUserID(ctx context.Context, userID int64) ([]auctiondomain.Bid, error)
}

// Registrar handles self registration and user queries.
type Registrar struct {
	users domain.UserStore
	bids  BidLister
}

func NewRegistrar(users domain.UserStore, bids BidLister) *Registrar {
	return &Registrar{users: users, bids: bids}
}

// Register creates a bidder. The returned id resolves through the store as soon as Register returns.
func (r *Registrar) Register(ctx context.Context, name, email string) (*domain.User, error) {
	fields := domain.NewUser{Name: name, Email: email}.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	_, err := r.users.GetByEmail(ctx, fields.Email)
	switch {
	case err == nil:
		log.Warn("Registration rejected: email taken", zap.String("email", fields.Email))
		return nil, fmt.Errorf("register %s: %w", fields.Email, domain.ErrEmailTaken)
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("register: %w", err)
	}

	u, err := r.users.Create(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	log.Info("User registered", zap.Int64("userID", u.ID), zap.String("email", u.Email))
	return u, nil
}

// ProfileUpdate carries the fields a user changes on their profile, nil keeps the current value.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// UpdateProfile edits name and email of userID with the registration rules.
// The new email must not belong to another user.
func (r *Registrar) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*domain.User, error) {
	current, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("update profile %d: %w", userID, err)
	}

	profile := domain.Profile{Name: current.Name, Email: current.Email}
	if update.Name != nil {
		profile.Name = *update.Name
	}
	if update.Email != nil {
		profile.Email = *update.Email
	}
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("update profile %d: %w", userID, err)
	}

	owner, err := r.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil && owner.ID != userID:
		log.Warn("Profile update rejected: email taken",
			zap.Int64("userID", userID),
			zap.String("email", profile.Email),
		)
		return nil, fmt.Errorf("update profile %d to %s: %w", userID, profile.Email, domain.ErrEmailTaken)
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("update profile %d: %w", userID, err)
	}

	u, err := r.users.Update(ctx, userID, profile)
	if err != nil {
		return nil, fmt.Errorf("update profile %d: %w", userID, err)
	}
	log.Info("Profile updated", zap.Int64("userID", u.ID), zap.String("email", u.Email))
	return u, nil
}

func (r *Registrar) List(ctx context.Context) ([]domain.User, error) {
	return r.users.GetAll(ctx)
}

func (r *Registrar) Get(ctx context.Context, id int64) (*domain.User, error) {
	return r.users.GetByID(ctx, id)
}

// BidsOf returns the bids of a user, newest first.
func (r *Registrar) BidsOf(ctx context.Context, userID int64) ([]auctiondomain.Bid, error) {
	if _, err := r.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("bids of user %d: %w", userID, err)
	}
	bids, err := r.bids.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("bids of user %d: %w", userID, err)
	}

	out := append([]auctiondomain.Bid(nil), bids...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
