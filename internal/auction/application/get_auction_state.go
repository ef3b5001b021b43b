package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BidDTO is the output DTO of a single bid
type BidDTO struct {
	ID         int64           `json:"id"`
	AuctionID  int64           `json:"auction_id"`
	UserID     int64           `json:"user_id"`
	BidderName string          `json:"bidder_name"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewBidDTO maps a domain bid to its DTO
func NewBidDTO(b domain.Bid) BidDTO {
	return BidDTO{
		ID:         b.ID,
		AuctionID:  b.AuctionID,
		UserID:     b.UserID,
		BidderName: b.BidderName,
		Amount:     b.Amount,
		Timestamp:  b.Timestamp,
	}
}

type CountdownDTO struct {
	Days             int   `json:"days"`
	Hours            int   `json:"hours"`
	Minutes          int   `json:"minutes"`
	Seconds          int   `json:"seconds"`
	RemainingSeconds int64 `json:"remaining_seconds"`
	Ended            bool  `json:"ended"`
	Urgent           bool  `json:"urgent"`
}

// AuctionStateDTO is the output DTO exposing the auction state to clients
type AuctionStateDTO struct {
	ID              int64             `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Terms           string            `json:"terms"`
	Images          []string          `json:"images"`
	StartingBid     decimal.Decimal   `json:"starting_bid"`
	CurrentBid      decimal.Decimal   `json:"current_bid"`
	HighestBidderID *int64            `json:"highest_bidder_id,omitempty"`
	EndTime         time.Time         `json:"end_time"`
	State           string            `json:"state"`
	Countdown       CountdownDTO      `json:"countdown"`
	MinimumBid      decimal.Decimal   `json:"minimum_bid"`
	SuggestedBids   []decimal.Decimal `json:"suggested_bids"`
	BidCount        int               `json:"bid_count"`
	LastBidAmount   *decimal.Decimal  `json:"last_bid_amount,omitempty"`
	LastBidUserID   *int64            `json:"last_bid_user_id,omitempty"`
	LastBidTime     *time.Time        `json:"last_bid_time,omitempty"`
	WinningBid      *BidDTO           `json:"winning_bid,omitempty"`
}

// GetAuctionStateUseCase retrieves the current state of auctions
type GetAuctionStateUseCase struct {
	auctions  domain.AuctionStore
	bids      domain.BidStore
	clock     domain.Clock
	increment decimal.Decimal
}

// NewGetAuctionStateUseCase creates a new instance of GetAuctionStateUseCase.
func NewGetAuctionStateUseCase(auctions domain.AuctionStore, bids domain.BidStore, clock domain.Clock, increment decimal.Decimal) *GetAuctionStateUseCase {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &GetAuctionStateUseCase{
		auctions:  auctions,
		bids:      bids,
		clock:     clock,
		increment: increment,
	}
}

func (uc *GetAuctionStateUseCase) Execute(ctx context.Context, auctionID int64) (*AuctionStateDTO, error) {
	var (
		auction *domain.Auction
		bids    []domain.Bid
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		auction, err = uc.auctions.GetByID(gctx, auctionID)
		return err
	})
	g.Go(func() (err error) {
		bids, err = uc.bids.GetByAuctionID(gctx, auctionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get auction state %d: %w", auctionID, err)
	}

	dto := BuildAuctionState(auction, bids, uc.increment, uc.clock.Now())
	return &dto, nil
}

// List returns the state of every auction, ordered by id.
func (uc *GetAuctionStateUseCase) List(ctx context.Context) ([]AuctionStateDTO, error) {
	var (
		auctions []domain.Auction
		bids     []domain.Bid
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		auctions, err = uc.auctions.GetAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		bids, err = uc.bids.GetAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	byAuction := make(map[int64][]domain.Bid, len(auctions))
	for _, b := range bids {
		byAuction[b.AuctionID] = append(byAuction[b.AuctionID], b)
	}
	now := uc.clock.Now()
	out := make([]AuctionStateDTO, 0, len(auctions))
	for i := range auctions {
		out = append(out, BuildAuctionState(&auctions[i], byAuction[auctions[i].ID], uc.increment, now))
	}
	return out, nil
}

// BuildAuctionState derives the state DTO of auction at now from its bids.
func BuildAuctionState(auction *domain.Auction, bids []domain.Bid, increment decimal.Decimal, now time.Time) AuctionStateDTO {
	c := domain.CountdownAt(auction.EndTime, now)
	dto := AuctionStateDTO{
		ID:              auction.ID,
		Title:           auction.Title,
		Description:     auction.Description,
		Terms:           auction.Terms,
		Images:          auction.Images,
		StartingBid:     auction.StartingBid,
		CurrentBid:      auction.CurrentBid,
		HighestBidderID: auction.HighestBidderID,
		EndTime:         auction.EndTime,
		State:           string(auction.State(now)),
		Countdown: CountdownDTO{
			Days:             c.Days,
			Hours:            c.Hours,
			Minutes:          c.Minutes,
			Seconds:          c.Seconds,
			RemainingSeconds: int64(c.Remaining / time.Second),
			Ended:            c.Ended,
			Urgent:           c.Urgent,
		},
		MinimumBid:    auction.MinimumBid(increment),
		SuggestedBids: domain.SuggestedBids(auction.CurrentBid),
	}

	ranked := Rank(bids)
	dto.BidCount = len(ranked)
	if len(ranked) > 0 {
		last := ranked[0].Bid
		dto.LastBidAmount = &last.Amount
		dto.LastBidUserID = &last.UserID
		dto.LastBidTime = &last.Timestamp
	}
	if winner := winnerOf(auction, ranked, now); winner != nil {
		w := NewBidDTO(*winner)
		dto.WinningBid = &w
	}
	return dto
}
