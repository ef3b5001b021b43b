package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/shopspring/decimal"
)

// BidRepository implements domain.BidStore and domain.BidCommitter on a shared DB
type BidRepository struct {
	db *DB
}

func NewBidRepository(db *DB) *BidRepository {
	return &BidRepository{db: db}
}

// GetAll returns every bid ordered by id
func (r *BidRepository) GetAll(ctx context.Context) ([]domain.Bid, error) {
	return r.filter(func(domain.Bid) bool { return true }), nil
}

func (r *BidRepository) GetByID(ctx context.Context, id int64) (*domain.Bid, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	b, ok := r.db.bids[id]
	if !ok {
		return nil, fmt.Errorf("bid repository: get bid %d: %w", id, domain.ErrBidNotFound)
	}
	return &b, nil
}

// GetByAuctionID returns the bids of an auction ordered by id. An unknown auction has no bids.
func (r *BidRepository) GetByAuctionID(ctx context.Context, auctionID int64) ([]domain.Bid, error) {
	return r.filter(func(b domain.Bid) bool { return b.AuctionID == auctionID }), nil
}

func (r *BidRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Bid, error) {
	return r.filter(func(b domain.Bid) bool { return b.UserID == userID }), nil
}

// Create appends a bid without touching the auction. The bidding engine uses CommitBid.
func (r *BidRepository) Create(ctx context.Context, fields domain.NewBid) (*domain.Bid, error) {
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("bid repository: create: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.auctions[fields.AuctionID]; !ok {
		return nil, fmt.Errorf("bid repository: create bid for auction %d: %w", fields.AuctionID, domain.ErrAuctionNotFound)
	}
	b := r.appendLocked(fields)
	return &b, nil
}

// CommitBid appends the bid and raises the auction price in one critical section.
func (r *BidRepository) CommitBid(ctx context.Context, fields domain.NewBid, expectedCurrent decimal.Decimal) (*domain.Bid, *domain.Auction, error) {
	if err := fields.Validate(); err != nil {
		return nil, nil, fmt.Errorf("bid repository: commit: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.auctions[fields.AuctionID]
	if !ok {
		return nil, nil, fmt.Errorf("bid repository: commit bid for auction %d: %w", fields.AuctionID, domain.ErrAuctionNotFound)
	}
	if !a.CurrentBid.Equal(expectedCurrent) {
		return nil, nil, fmt.Errorf("bid repository: commit bid for auction %d: expected %s, found %s: %w",
			fields.AuctionID, expectedCurrent.StringFixed(2), a.CurrentBid.StringFixed(2), domain.ErrStaleBid)
	}

	patch := domain.AuctionPatch{CurrentBid: &fields.Amount, HighestBidderID: &fields.UserID}
	if err := patch.Validate(a); err != nil {
		return nil, nil, fmt.Errorf("bid repository: commit bid for auction %d: %w", fields.AuctionID, err)
	}
	a = patch.Apply(a)
	r.db.auctions[a.ID] = a
	b := r.appendLocked(fields)
	return &b, copyAuction(a), nil
}

// appendLocked must be called with the write lock held
func (r *BidRepository) appendLocked(fields domain.NewBid) domain.Bid {
	r.db.nextBidID++
	b := fields.Build(r.db.nextBidID)
	r.db.bids[b.ID] = b
	return b
}

func (r *BidRepository) filter(keep func(domain.Bid) bool) []domain.Bid {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	bids := make([]domain.Bid, 0)
	for _, b := range r.db.bids {
		if keep(b) {
			bids = append(bids, b)
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].ID < bids[j].ID })
	return bids
}
