package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bid is an accepted, immutable claim of a registered user on an auction.
// Ids grow in acceptance order.
type Bid struct {
	ID         int64
	AuctionID  int64
	UserID     int64
	BidderName string // captured at submission time
	Amount     decimal.Decimal
	Timestamp  time.Time // assigned by the engine
}

// NewBid holds the fields accepted by BidStore.Create and BidCommitter.CommitBid
type NewBid struct {
	AuctionID  int64
	UserID     int64
	BidderName string
	Amount     decimal.Decimal
	Timestamp  time.Time
}

// Validate checks the shape of a NewBid
func (n NewBid) Validate() error {
	if n.AuctionID <= 0 {
		return fmt.Errorf("%w: auction id is required", ErrInvalidBid)
	}
	if n.UserID <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidBid)
	}
	if !n.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidBid)
	}
	if n.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidBid)
	}
	return nil
}

// Build returns the stored Bid for these fields
func (n NewBid) Build(id int64) Bid {
	return Bid{
		ID:         id,
		AuctionID:  n.AuctionID,
		UserID:     n.UserID,
		BidderName: strings.TrimSpace(n.BidderName),
		Amount:     n.Amount,
		Timestamp:  n.Timestamp,
	}
}
