package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/shared/lock"
	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/cristianortiz/quickbid/internal/shared/storage"
	userdomain "github.com/cristianortiz/quickbid/internal/user/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// PlaceBidDTO is the input of a bid submission
type PlaceBidDTO struct {
	AuctionID int64           `json:"auction_id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Engine is the only component allowed to accept bids and move auction prices.
type Engine struct {
	auctions  domain.AuctionStore
	committer domain.BidCommitter
	users     userdomain.UserStore
	locker    lock.Locker
	clock     domain.Clock
	increment decimal.Decimal
}

// NewEngine creates a new Engine, it receives its dependencies through injection.
// A nil clock means domain.SystemClock.
func NewEngine(auctions domain.AuctionStore,
	committer domain.BidCommitter,
	users userdomain.UserStore,
	locker lock.Locker,
	clock domain.Clock,
	increment decimal.Decimal) *Engine {

	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Engine{
		auctions:  auctions,
		committer: committer,
		users:     users,
		locker:    locker,
		clock:     clock,
		increment: increment,
	}
}

// Increment is the configured minimum raise over the current bid
func (e *Engine) Increment() decimal.Decimal { return e.increment }

// SubmitBid admits or rejects a bid of bidderID on auctionID. Checks run in order and the
// first failure wins: auction open, bidder registered, minimum bid, above current bid.
// On success the bid and the new auction state are returned, as persisted.
func (e *Engine) SubmitBid(ctx context.Context, auctionID, bidderID int64, amount decimal.Decimal) (*domain.Bid, *domain.Auction, error) {
	log.Info("Submitting bid",
		zap.Int64("auctionID", auctionID),
		zap.Int64("userID", bidderID),
		zap.Stringer("amount", amount),
	)

	unlock, err := e.locker.Lock(ctx, lockKey(auctionID))
	if err != nil {
		if errors.Is(err, lock.ErrBackendUnavailable) {
			log.Error("Engine: failed to lock auction", zap.Int64("auctionID", auctionID), zap.Error(err))
			return nil, nil, storage.Unavailable("engine: lock auction", err)
		}
		return nil, nil, fmt.Errorf("engine: lock auction %d: %w", auctionID, err)
	}
	defer unlock()

	auction, err := e.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if !errors.Is(err, domain.ErrAuctionNotFound) {
			log.Error("Engine: failed to get auction", zap.Int64("auctionID", auctionID), zap.Error(err))
		}
		return nil, nil, fmt.Errorf("engine: submit bid: %w", err)
	}

	now := e.clock.Now()
	if err := auction.CheckOpen(now); err != nil {
		return nil, nil, err
	}

	bidder, err := e.users.GetByID(ctx, bidderID)
	if err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			log.Warn("Bid rejected: bidder not registered",
				zap.Int64("auctionID", auctionID),
				zap.Int64("userID", bidderID),
			)
			return nil, nil, &domain.RejectionError{
				Err:        domain.ErrBidderNotRegistered,
				AuctionID:  auctionID,
				CurrentBid: auction.CurrentBid,
				MinimumBid: auction.MinimumBid(e.increment),
			}
		}
		log.Error("Engine: failed to resolve bidder", zap.Int64("userID", bidderID), zap.Error(err))
		return nil, nil, fmt.Errorf("engine: resolve bidder %d: %w", bidderID, err)
	}

	if err := auction.CheckAmount(amount, e.increment); err != nil {
		return nil, nil, err
	}

	bid, updated, err := e.committer.CommitBid(ctx, domain.NewBid{
		AuctionID:  auctionID,
		UserID:     bidder.ID,
		BidderName: bidder.Name,
		Amount:     amount,
		Timestamp:  now,
	}, auction.CurrentBid)
	if err != nil {
		if errors.Is(err, domain.ErrStaleBid) {
			return nil, nil, e.staleRejection(ctx, auctionID, amount)
		}
		if errors.Is(err, domain.ErrBidderNotRegistered) {
			return nil, nil, &domain.RejectionError{Err: domain.ErrBidderNotRegistered, AuctionID: auctionID, CurrentBid: auction.CurrentBid}
		}
		log.Error("Engine: failed to commit bid",
			zap.Int64("auctionID", auctionID),
			zap.Int64("userID", bidderID),
			zap.Error(err),
		)
		return nil, nil, fmt.Errorf("engine: commit bid on auction %d: %w", auctionID, err)
	}

	log.Info("Bid accepted",
		zap.Int64("auctionID", auctionID),
		zap.Int64("bidID", bid.ID),
		zap.Int64("userID", bid.UserID),
		zap.Stringer("amount", bid.Amount),
	)
	return bid, updated, nil
}

// staleRejection reports a lost compare-and-set against the price found now.
func (e *Engine) staleRejection(ctx context.Context, auctionID int64, amount decimal.Decimal) error {
	log.Warn("Bid rejected: auction price moved before commit",
		zap.Int64("auctionID", auctionID),
		zap.Stringer("amount", amount),
	)
	fresh, err := e.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("engine: reload auction %d: %w", auctionID, err)
	}
	return &domain.RejectionError{
		Err:        domain.ErrBidNotHighEnough,
		AuctionID:  auctionID,
		CurrentBid: fresh.CurrentBid,
		MinimumBid: fresh.MinimumBid(e.increment),
	}
}

func lockKey(auctionID int64) string {
	return "auction:" + strconv.FormatInt(auctionID, 10)
}
