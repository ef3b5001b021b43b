package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	userdomain "github.com/cristianortiz/quickbid/internal/user/domain"
	"go.uber.org/zap"
)

// ErrNotAdmin is returned when a non admin user calls an admin operation
var ErrNotAdmin = errors.New("user is not an admin")

// AdminService manages auctions and users on behalf of an admin.
type AdminService struct {
	auctions domain.AuctionStore
	users    userdomain.UserStore
	history  *HistoryRefresher
}

func NewAdminService(auctions domain.AuctionStore, users userdomain.UserStore, history *HistoryRefresher) *AdminService {
	return &AdminService{auctions: auctions, users: users, history: history}
}

// Authorize resolves userID and checks it is an admin. It is a capability check, not authentication.
func (s *AdminService) Authorize(ctx context.Context, userID int64) (*userdomain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("admin: authorize user %d: %w", userID, err)
	}
	if !u.IsAdmin {
		log.Warn("Admin operation refused", zap.Int64("userID", userID))
		return nil, fmt.Errorf("admin: user %d: %w", userID, ErrNotAdmin)
	}
	return u, nil
}

// CreateAuction stores a new auction, its price starts at the starting bid.
func (s *AdminService) CreateAuction(ctx context.Context, fields domain.NewAuction) (*domain.Auction, error) {
	a, err := s.auctions.Create(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("admin: create auction: %w", err)
	}
	return a, nil
}

// DeleteAuction removes an auction with its bids. It is an override and ignores the auction state.
func (s *AdminService) DeleteAuction(ctx context.Context, auctionID int64) error {
	if err := s.auctions.Delete(ctx, auctionID); err != nil {
		return fmt.Errorf("admin: delete auction: %w", err)
	}
	s.history.Forget(auctionID)
	log.Info("Auction deleted", zap.Int64("auctionID", auctionID))
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]userdomain.User, error) {
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("admin: list users: %w", err)
	}
	return users, nil
}

func (s *AdminService) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("admin: delete user: %w", err)
	}
	log.Info("User deleted", zap.Int64("userID", userID))
	return nil
}
