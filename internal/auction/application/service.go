package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"go.uber.org/zap"
)

// PlaceBidResult is the accepted bid together with the auction state after it
type PlaceBidResult struct {
	Bid     BidDTO          `json:"bid"`
	Auction AuctionStateDTO `json:"auction"`
}

// AuctionService defines application interface layer of auction module
// exposes uses cases to external layer, aka infra
type AuctionService interface {
	// PlaceBid submits a bid, the result already reflects it
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResult, error)
	GetAuctionState(ctx context.Context, auctionID int64) (*AuctionStateDTO, error)
	ListAuctions(ctx context.Context) ([]AuctionStateDTO, error)
	// GetBidHistory is served from the periodically refreshed snapshot
	GetBidHistory(ctx context.Context, auctionID, viewerID int64) (*History, error)
}

// concrete implementation of AuctionService
type auctionService struct {
	engine     *Engine
	getStateUC *GetAuctionStateUseCase
	history    *HistoryRefresher
	clock      domain.Clock
}

func NewAuctionService(engine *Engine, getStateUC *GetAuctionStateUseCase, history *HistoryRefresher, clock domain.Clock) AuctionService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &auctionService{
		engine:     engine,
		getStateUC: getStateUC,
		history:    history,
		clock:      clock,
	}
}

// PlaceBid implements AuctionService.
func (as *auctionService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResult, error) {
	bid, auction, err := as.engine.SubmitBid(ctx, cmd.AuctionID, cmd.UserID, cmd.Amount)
	if err != nil {
		return nil, err
	}

	// the submitter sees its own bid without waiting for the next poll
	if err := as.history.Refresh(ctx, cmd.AuctionID); err != nil {
		log.Warn("Failed to refresh bid history after accepted bid",
			zap.Int64("auctionID", cmd.AuctionID),
			zap.Error(err),
		)
	}

	state, err := as.getStateUC.Execute(ctx, cmd.AuctionID)
	if err != nil {
		// the bid is committed, fall back to the auction returned by the commit
		log.Warn("Failed to load auction state after accepted bid",
			zap.Int64("auctionID", cmd.AuctionID),
			zap.Error(err),
		)
		fallback := BuildAuctionState(auction, []domain.Bid{*bid}, as.engine.Increment(), as.clock.Now())
		state = &fallback
	}
	return &PlaceBidResult{Bid: NewBidDTO(*bid), Auction: *state}, nil
}

// GetAuctionState implements AuctionService
func (as *auctionService) GetAuctionState(ctx context.Context, auctionID int64) (*AuctionStateDTO, error) {
	return as.getStateUC.Execute(ctx, auctionID)
}

func (as *auctionService) ListAuctions(ctx context.Context) ([]AuctionStateDTO, error) {
	return as.getStateUC.List(ctx)
}

func (as *auctionService) GetBidHistory(ctx context.Context, auctionID, viewerID int64) (*History, error) {
	h, err := as.history.Get(ctx, auctionID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("get bid history: %w", err)
	}
	return h, nil
}
