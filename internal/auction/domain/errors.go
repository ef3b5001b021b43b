package domain

import (
	"errors"
	"fmt"

	"github.com/cristianortiz/quickbid/internal/shared/storage"
	"github.com/shopspring/decimal"
)

var (
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrBidNotFound         = errors.New("bid not found")
	ErrAuctionEnded        = errors.New("auction has ended")
	ErrBidderNotRegistered = errors.New("bidder is not registered")
	ErrBidTooLow           = errors.New("bid amount is below the minimum bid")
	ErrBidNotHighEnough    = errors.New("bid amount must be higher than the current bid")
	ErrInvalidAmount       = errors.New("bid amount must be positive and in whole cents")
	ErrInvalidAuction      = errors.New("invalid auction")
	ErrInvalidBid          = errors.New("invalid bid")
	// the auction price moved between validation and commit
	ErrStaleBid         = errors.New("auction current bid changed before commit")
	ErrStoreUnavailable = storage.ErrUnavailable
)

// RejectionError is returned when a bid fails admission. It wraps one of the
// sentinel errors above and carries the price the bid was checked against.
type RejectionError struct {
	Err        error
	AuctionID  int64
	CurrentBid decimal.Decimal
	// zero when the rejection is not about the amount
	MinimumBid decimal.Decimal
}

func (e *RejectionError) Error() string {
	switch {
	case errors.Is(e.Err, ErrBidTooLow):
		return fmt.Sprintf("minimum bid is $%s", e.MinimumBid.StringFixed(2))
	case errors.Is(e.Err, ErrBidNotHighEnough):
		return fmt.Sprintf("bid must be higher than current bid of $%s", e.CurrentBid.StringFixed(2))
	case errors.Is(e.Err, ErrAuctionEnded):
		return fmt.Sprintf("auction %d has ended", e.AuctionID)
	default:
		return e.Err.Error()
	}
}

func (e *RejectionError) Unwrap() error { return e.Err }

// IsRejection reports whether err is a bid the caller can correct, as opposed to
// a missing entity or a store failure.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}
