package application

import (
	"sort"
	"time"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/shopspring/decimal"
)

// RankedBid is a bid as shown in the history list
type RankedBid struct {
	domain.Bid
	Position int
	// only the first entry, the current leader
	Highest bool
	// the bid belongs to the user looking at the list
	IsViewer bool
}

// History is the display model of an auction's bids.
type History struct {
	AuctionID    int64
	Entries      []RankedBid
	Count        int
	Empty        bool
	CurrentPrice decimal.Decimal
	WinningBid   *domain.Bid
	RefreshedAt  time.Time
}

// Rank orders bids newest first, ties broken by ascending id, dropping repeated ids.
// The input slice is left untouched.
func Rank(bids []domain.Bid) []RankedBid {
	seen := make(map[int64]struct{}, len(bids))
	sorted := make([]domain.Bid, 0, len(bids))
	for _, b := range bids {
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		sorted = append(sorted, b)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.After(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	ranked := make([]RankedBid, len(sorted))
	for i, b := range sorted {
		ranked[i] = RankedBid{Bid: b, Position: i + 1, Highest: i == 0}
	}
	return ranked
}

// BuildHistory derives the history of auction as seen by viewerID (0 for anonymous) at now.
func BuildHistory(auction domain.Auction, bids []domain.Bid, viewerID int64, now time.Time) History {
	entries := Rank(bids)
	for i := range entries {
		entries[i].IsViewer = viewerID != 0 && entries[i].UserID == viewerID
	}

	h := History{
		AuctionID:    auction.ID,
		Entries:      entries,
		Count:        len(entries),
		Empty:        len(entries) == 0,
		CurrentPrice: auction.CurrentBid,
		RefreshedAt:  now,
	}
	if h.Empty {
		h.CurrentPrice = auction.StartingBid
	}
	h.WinningBid = winnerOf(&auction, entries, now)
	return h
}

// WinningBid is the leading bid of an ended auction, nil while it is active or without bids.
// It is always derived from the log, never stored.
func WinningBid(auction *domain.Auction, bids []domain.Bid, now time.Time) *domain.Bid {
	return winnerOf(auction, Rank(bids), now)
}

func winnerOf(auction *domain.Auction, ranked []RankedBid, now time.Time) *domain.Bid {
	if domain.IsActive(auction, now) || len(ranked) == 0 {
		return nil
	}
	winner := ranked[0].Bid
	return &winner
}
