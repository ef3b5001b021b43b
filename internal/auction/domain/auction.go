package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// CentDigits is the precision money is stored with
const CentDigits = 2

// DefaultImage is used when an auction is created without images
const DefaultImage = "https://via.placeholder.com/800x600/6366f1/ffffff?text=Auction+Item"

// AuctionState is derived from the clock, it is never stored
type AuctionState string

const (
	StateActive AuctionState = "active"
	StateEnded  AuctionState = "ended"
)

type Auction struct {
	ID          int64
	Title       string
	Description string
	Terms       string
	Images      []string
	StartingBid decimal.Decimal
	// CurrentBid never decreases and is only moved by an accepted bid
	CurrentBid decimal.Decimal
	// nil until the first bid is accepted
	HighestBidderID *int64
	EndTime         time.Time
	CreatedAt       time.Time
}

// NewAuction holds the fields accepted by AuctionStore.Create
type NewAuction struct {
	Title       string
	Description string
	Terms       string
	Images      []string
	StartingBid decimal.Decimal
	EndTime     time.Time
}

// AuctionPatch is a partial update, nil fields are left untouched.
type AuctionPatch struct {
	Title           *string
	Description     *string
	Terms           *string
	Images          []string
	EndTime         *time.Time
	CurrentBid      *decimal.Decimal
	HighestBidderID *int64
}

// Normalize trims text fields, drops blank images and falls back to DefaultImage.
func (n NewAuction) Normalize() NewAuction {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	n.Terms = strings.TrimSpace(n.Terms)
	images := make([]string, 0, len(n.Images))
	for _, img := range n.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	if len(images) == 0 {
		images = append(images, DefaultImage)
	}
	n.Images = images
	return n
}

// Validate checks the shape of a normalized NewAuction.
func (n NewAuction) Validate() error {
	if n.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidAuction)
	}
	if !n.StartingBid.IsPositive() {
		return fmt.Errorf("%w: starting bid must be positive", ErrInvalidAuction)
	}
	if !n.StartingBid.Equal(n.StartingBid.Round(CentDigits)) {
		return fmt.Errorf("%w: starting bid must be in whole cents", ErrInvalidAuction)
	}
	if n.EndTime.IsZero() {
		return fmt.Errorf("%w: end time is required", ErrInvalidAuction)
	}
	if len(n.Images) == 0 {
		return fmt.Errorf("%w: at least one image is required", ErrInvalidAuction)
	}
	return nil
}

// Build returns the initial Auction for these fields: price at the starting bid and no bidder.
func (n NewAuction) Build(id int64, createdAt time.Time) Auction {
	return Auction{
		ID:          id,
		Title:       n.Title,
		Description: n.Description,
		Terms:       n.Terms,
		Images:      append([]string(nil), n.Images...),
		StartingBid: n.StartingBid,
		CurrentBid:  n.StartingBid,
		EndTime:     n.EndTime,
		CreatedAt:   createdAt,
	}
}

// Validate checks a patch against the auction it applies to.
// Price fields may only move the current bid upwards and must come together.
func (p AuctionPatch) Validate(a Auction) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidAuction)
	}
	if p.Images != nil && len(p.Images) == 0 {
		return fmt.Errorf("%w: at least one image is required", ErrInvalidAuction)
	}
	if p.EndTime != nil && p.EndTime.IsZero() {
		return fmt.Errorf("%w: end time is required", ErrInvalidAuction)
	}
	if (p.CurrentBid == nil) != (p.HighestBidderID == nil) {
		return fmt.Errorf("%w: current bid and highest bidder change together", ErrInvalidAuction)
	}
	if p.CurrentBid != nil && !p.CurrentBid.GreaterThan(a.CurrentBid) {
		return fmt.Errorf("%w: current bid cannot go from %s to %s", ErrInvalidAuction, a.CurrentBid.StringFixed(2), p.CurrentBid.StringFixed(2))
	}
	return nil
}

// Apply returns a copy of a with the patch applied.
func (p AuctionPatch) Apply(a Auction) Auction {
	if p.Title != nil {
		a.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Terms != nil {
		a.Terms = *p.Terms
	}
	if p.Images != nil {
		a.Images = append([]string(nil), p.Images...)
	}
	if p.EndTime != nil {
		a.EndTime = *p.EndTime
	}
	if p.CurrentBid != nil {
		a.CurrentBid = *p.CurrentBid
		id := *p.HighestBidderID
		a.HighestBidderID = &id
	}
	return a
}

// State derives the auction state at now
func (a *Auction) State(now time.Time) AuctionState {
	if IsActive(a, now) {
		return StateActive
	}
	return StateEnded
}

// HasBids reports whether a bid was ever accepted
func (a *Auction) HasBids() bool {
	return a.HighestBidderID != nil
}

// MinimumBid is the lowest admissible amount for the next bid.
func (a *Auction) MinimumBid(increment decimal.Decimal) decimal.Decimal {
	return MinimumBid(a.CurrentBid, a.StartingBid, increment)
}

// CheckOpen rejects bids once the auction ended.
func (a *Auction) CheckOpen(now time.Time) error {
	if IsActive(a, now) {
		return nil
	}
	log.Warn("Bid rejected: auction ended",
		zap.Int64("auctionID", a.ID),
		zap.Time("endTime", a.EndTime),
		zap.Time("now", now),
	)
	return a.reject(ErrAuctionEnded, nil)
}

// CheckAmount runs the amount checks of the admission in order: minimum bid first,
// then strictly above the current bid (which still matters when increment is zero).
func (a *Auction) CheckAmount(amount, increment decimal.Decimal) error {
	minimum := a.MinimumBid(increment)
	if !amount.IsPositive() || !amount.Equal(amount.Round(CentDigits)) {
		log.Warn("Bid rejected: invalid amount",
			zap.Int64("auctionID", a.ID),
			zap.Stringer("bidAmount", amount),
		)
		return a.reject(ErrInvalidAmount, &minimum)
	}

	if amount.LessThan(minimum) {
		log.Warn("Bid rejected: below minimum bid",
			zap.Int64("auctionID", a.ID),
			zap.Stringer("bidAmount", amount),
			zap.Stringer("minimumBid", minimum),
		)
		return a.reject(ErrBidTooLow, &minimum)
	}

	if !amount.GreaterThan(a.CurrentBid) {
		log.Warn("Bid rejected: not above current bid",
			zap.Int64("auctionID", a.ID),
			zap.Stringer("bidAmount", amount),
			zap.Stringer("currentBid", a.CurrentBid),
		)
		return a.reject(ErrBidNotHighEnough, &minimum)
	}
	return nil
}

func (a *Auction) reject(err error, minimum *decimal.Decimal) *RejectionError {
	rej := &RejectionError{
		Err:        err,
		AuctionID:  a.ID,
		CurrentBid: a.CurrentBid,
	}
	if minimum != nil {
		rej.MinimumBid = *minimum
	}
	return rej
}

// IsActive reports whether auction accepts bids at now.
func IsActive(a *Auction, now time.Time) bool {
	return now.Before(a.EndTime)
}

// MinimumBid = max(currentBid + increment, startingBid)
func MinimumBid(currentBid, startingBid, increment decimal.Decimal) decimal.Decimal {
	return decimal.Max(currentBid.Add(increment), startingBid)
}

var suggestionSteps = []decimal.Decimal{
	decimal.NewFromInt(50),
	decimal.NewFromInt(100),
	decimal.NewFromInt(250),
	decimal.NewFromInt(500),
}

// SuggestedBids are advisory quick-pick amounts shown next to the bid form.
func SuggestedBids(currentBid decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(suggestionSteps))
	for i, step := range suggestionSteps {
		out[i] = currentBid.Add(step)
	}
	return out
}
