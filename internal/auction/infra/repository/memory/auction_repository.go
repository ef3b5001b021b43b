package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
)

// AuctionRepository implements domain.AuctionStore on a shared DB
type AuctionRepository struct {
	db *DB
}

func NewAuctionRepository(db *DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

// GetAll returns the auctions ordered by id
func (r *AuctionRepository) GetAll(ctx context.Context) ([]domain.Auction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	auctions := make([]domain.Auction, 0, len(r.db.auctions))
	for _, a := range r.db.auctions {
		auctions = append(auctions, *copyAuction(a))
	}
	sort.Slice(auctions, func(i, j int) bool { return auctions[i].ID < auctions[j].ID })
	return auctions, nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id int64) (*domain.Auction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	a, ok := r.db.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction repository: get auction %d: %w", id, domain.ErrAuctionNotFound)
	}
	return copyAuction(a), nil
}

func (r *AuctionRepository) Create(ctx context.Context, fields domain.NewAuction) (*domain.Auction, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("auction repository: create: %w", err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.nextAuctionID++
	a := fields.Build(r.db.nextAuctionID, r.db.now())
	r.db.auctions[a.ID] = a
	return copyAuction(a), nil
}

// Update validates and applies patch while holding the write lock.
func (r *AuctionRepository) Update(ctx context.Context, id int64, patch domain.AuctionPatch) (*domain.Auction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction repository: update auction %d: %w", id, domain.ErrAuctionNotFound)
	}
	if err := patch.Validate(a); err != nil {
		return nil, fmt.Errorf("auction repository: update auction %d: %w", id, err)
	}
	a = patch.Apply(a)
	r.db.auctions[id] = a
	return copyAuction(a), nil
}

// Delete removes the auction together with its bids.
func (r *AuctionRepository) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.auctions[id]; !ok {
		return fmt.Errorf("auction repository: delete auction %d: %w", id, domain.ErrAuctionNotFound)
	}
	delete(r.db.auctions, id)
	for bidID, b := range r.db.bids {
		if b.AuctionID == id {
			delete(r.db.bids, bidID)
		}
	}
	return nil
}
