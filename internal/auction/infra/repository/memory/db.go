package memory

import (
	"sync"
	"time"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
)

// DB owns the auctions and their bids for one process. The auction and bid
// repositories share it so a bid commit can touch both under one lock.
type DB struct {
	mu            sync.RWMutex
	auctions      map[int64]domain.Auction
	bids          map[int64]domain.Bid
	nextAuctionID int64
	nextBidID     int64
	now           func() time.Time
}

// NewDB creates an empty DB. now stamps CreatedAt, nil means time.Now in UTC.
func NewDB(now func() time.Time) *DB {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DB{
		auctions: make(map[int64]domain.Auction),
		bids:     make(map[int64]domain.Bid),
		now:      now,
	}
}

// copyAuction detaches the slices and pointers of a stored auction from the caller.
func copyAuction(a domain.Auction) *domain.Auction {
	a.Images = append([]string(nil), a.Images...)
	if a.HighestBidderID != nil {
		id := *a.HighestBidderID
		a.HighestBidderID = &id
	}
	return &a
}
