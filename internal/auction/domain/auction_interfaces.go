package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=auction_interfaces.go -destination=mocks/auction_store_mock.go -package=mocks

// AuctionStore persists auctions. Update is atomic per auction.
type AuctionStore interface {
	GetAll(ctx context.Context) ([]Auction, error)
	GetByID(ctx context.Context, id int64) (*Auction, error)
	Create(ctx context.Context, fields NewAuction) (*Auction, error)
	Update(ctx context.Context, id int64, patch AuctionPatch) (*Auction, error)
	Delete(ctx context.Context, id int64) error
}

// BidStore persists bids, append-only.
type BidStore interface {
	GetAll(ctx context.Context) ([]Bid, error)
	GetByID(ctx context.Context, id int64) (*Bid, error)
	GetByAuctionID(ctx context.Context, auctionID int64) ([]Bid, error)
	GetByUserID(ctx context.Context, userID int64) ([]Bid, error)
	Create(ctx context.Context, fields NewBid) (*Bid, error)
}

// BidCommitter is the single write step of an accepted bid: it appends the bid and moves
// the auction price to its amount, only if the auction current bid still equals expectedCurrent.
// Otherwise nothing is written and ErrStaleBid is returned.
type BidCommitter interface {
	CommitBid(ctx context.Context, fields NewBid, expectedCurrent decimal.Decimal) (*Bid, *Auction, error)
}
