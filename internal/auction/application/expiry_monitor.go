package application

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/shared/notify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultExpiryInterval is how often the monitor checks every auction's clock
const DefaultExpiryInterval = time.Second

// ExpiryEvent is published once when an auction is observed to go from active to ended.
type ExpiryEvent struct {
	AuctionID       int64           `json:"auction_id"`
	Title           string          `json:"title"`
	EndTime         time.Time       `json:"end_time"`
	ObservedAt      time.Time       `json:"observed_at"`
	CurrentBid      decimal.Decimal `json:"current_bid"`
	HighestBidderID *int64          `json:"highest_bidder_id,omitempty"`
}

// ExpiryMonitor watches auction clocks and notifies subscribers of expirations.
// It never writes to the stores: ended is a function of time only.
type ExpiryMonitor struct {
	auctions domain.AuctionStore
	clock    domain.Clock
	hub      *notify.Hub[ExpiryEvent]

	mu         sync.Mutex
	lastActive map[int64]bool
	notified   map[int64]bool
}

// NewExpiryMonitor creates an ExpiryMonitor publishing on hub, whose Run loop is owned by the caller.
func NewExpiryMonitor(auctions domain.AuctionStore, clock domain.Clock, hub *notify.Hub[ExpiryEvent]) *ExpiryMonitor {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ExpiryMonitor{
		auctions:   auctions,
		clock:      clock,
		hub:        hub,
		lastActive: make(map[int64]bool),
		notified:   make(map[int64]bool),
	}
}

// Observe computes the countdown of auction at now and records its liveness.
// An observed active to ended transition publishes one ExpiryEvent; an auction first
// seen already ended publishes nothing.
func (m *ExpiryMonitor) Observe(auction *domain.Auction, now time.Time) domain.Countdown {
	countdown := domain.CountdownAt(auction.EndTime, now)
	active := !countdown.Ended

	m.mu.Lock()
	wasActive, seen := m.lastActive[auction.ID]
	m.lastActive[auction.ID] = active
	fire := seen && wasActive && !active && !m.notified[auction.ID]
	if fire {
		m.notified[auction.ID] = true
	}
	m.mu.Unlock()

	if fire {
		event := ExpiryEvent{
			AuctionID:       auction.ID,
			Title:           auction.Title,
			EndTime:         auction.EndTime,
			ObservedAt:      now,
			CurrentBid:      auction.CurrentBid,
			HighestBidderID: auction.HighestBidderID,
		}
		log.Info("Auction ended",
			zap.Int64("auctionID", auction.ID),
			zap.Time("endTime", auction.EndTime),
			zap.Stringer("currentBid", auction.CurrentBid),
		)
		if !m.hub.Publish(strconv.FormatInt(auction.ID, 10), event) {
			log.Warn("Expiry notification dropped", zap.Int64("auctionID", auction.ID))
		}
	}
	return countdown
}

// Subscribe returns a subscription receiving the expiry of auctionID
func (m *ExpiryMonitor) Subscribe(ctx context.Context, auctionID int64) (*notify.Subscriber[ExpiryEvent], error) {
	return m.hub.Subscribe(ctx, strconv.FormatInt(auctionID, 10))
}

// SubscribeAll returns a subscription receiving every expiry
func (m *ExpiryMonitor) SubscribeAll(ctx context.Context) (*notify.Subscriber[ExpiryEvent], error) {
	return m.hub.Subscribe(ctx, notify.WildcardTopic)
}

func (m *ExpiryMonitor) Unsubscribe(sub *notify.Subscriber[ExpiryEvent]) {
	m.hub.Unsubscribe(sub)
}

// Run checks every auction at startup and then each interval, until ctx is cancelled.
// Store failures are logged and retried on the next tick.
func (m *ExpiryMonitor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultExpiryInterval
	}
	log.Info("Expiry monitor started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Expiry monitor stopped")
			return nil
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *ExpiryMonitor) check(ctx context.Context) {
	auctions, err := m.auctions.GetAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("Expiry monitor: failed to list auctions", zap.Error(err))
		}
		return
	}

	now := m.clock.Now()
	present := make(map[int64]struct{}, len(auctions))
	for i := range auctions {
		present[auctions[i].ID] = struct{}{}
		m.Observe(&auctions[i], now)
	}

	// deleted auctions can never fire again
	m.mu.Lock()
	for id := range m.lastActive {
		if _, ok := present[id]; !ok {
			delete(m.lastActive, id)
		}
	}
	for id := range m.notified {
		if _, ok := present[id]; !ok {
			delete(m.notified, id)
		}
	}
	m.mu.Unlock()
}
