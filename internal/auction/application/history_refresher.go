package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultHistoryInterval is how often tracked bid histories are reloaded
const DefaultHistoryInterval = 10 * time.Second

type historySnapshot struct {
	auction  domain.Auction
	bids     []domain.Bid
	loadedAt time.Time
}

// HistoryRefresher serves bid histories from snapshots reloaded on a fixed interval.
// Viewers may see a history up to one interval old; callers refresh explicitly after their own writes.
type HistoryRefresher struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	clock    domain.Clock
	interval time.Duration

	group     singleflight.Group
	mu        sync.RWMutex
	snapshots map[int64]*historySnapshot
}

// NewHistoryRefresher creates a HistoryRefresher, interval <= 0 means DefaultHistoryInterval.
func NewHistoryRefresher(auctions domain.AuctionStore, bids domain.BidStore, clock domain.Clock, interval time.Duration) *HistoryRefresher {
	if interval <= 0 {
		interval = DefaultHistoryInterval
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &HistoryRefresher{
		auctions:  auctions,
		bids:      bids,
		clock:     clock,
		interval:  interval,
		snapshots: make(map[int64]*historySnapshot),
	}
}

// Get returns the history of auctionID as seen by viewerID. The first request for an
// auction loads it; concurrent first requests share one load.
func (r *HistoryRefresher) Get(ctx context.Context, auctionID, viewerID int64) (*History, error) {
	r.mu.RLock()
	snap, ok := r.snapshots[auctionID]
	r.mu.RUnlock()

	if !ok {
		var err error
		if snap, err = r.load(ctx, auctionID); err != nil {
			return nil, err
		}
	}
	h := BuildHistory(snap.auction, snap.bids, viewerID, r.clock.Now())
	h.RefreshedAt = snap.loadedAt
	return &h, nil
}

// Refresh reloads auctionID now, without joining a load that may have started before the caller's write.
func (r *HistoryRefresher) Refresh(ctx context.Context, auctionID int64) error {
	r.group.Forget(key(auctionID))
	_, err := r.load(ctx, auctionID)
	return err
}

// Forget drops the snapshot of a deleted auction
func (r *HistoryRefresher) Forget(auctionID int64) {
	r.mu.Lock()
	delete(r.snapshots, auctionID)
	r.mu.Unlock()
}

// Run reloads every tracked auction each interval until ctx is cancelled.
func (r *HistoryRefresher) Run(ctx context.Context) error {
	log.Info("History refresher started", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("History refresher stopped")
			return nil
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *HistoryRefresher) refreshAll(ctx context.Context) {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.snapshots))
	for id := range r.snapshots {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		if err := r.Refresh(ctx, id); err != nil {
			if errors.Is(err, domain.ErrAuctionNotFound) {
				r.Forget(id)
				continue
			}
			log.Error("Failed to refresh bid history", zap.Int64("auctionID", id), zap.Error(err))
		}
	}
}

func (r *HistoryRefresher) load(ctx context.Context, auctionID int64) (*historySnapshot, error) {
	v, err, _ := r.group.Do(key(auctionID), func() (any, error) {
		started := r.clock.Now()
		auction, err := r.auctions.GetByID(ctx, auctionID)
		if err != nil {
			return nil, fmt.Errorf("history: load auction: %w", err)
		}
		bids, err := r.bids.GetByAuctionID(ctx, auctionID)
		if err != nil {
			return nil, fmt.Errorf("history: load bids of auction %d: %w", auctionID, err)
		}

		snap := &historySnapshot{auction: *auction, bids: bids, loadedAt: started}
		r.mu.Lock()
		// a slower load that started earlier must not replace a newer snapshot
		if prev, ok := r.snapshots[auctionID]; !ok || !prev.loadedAt.After(started) {
			r.snapshots[auctionID] = snap
		}
		r.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*historySnapshot), nil
}

func key(auctionID int64) string {
	return strconv.FormatInt(auctionID, 10)
}
