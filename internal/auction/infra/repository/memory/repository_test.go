package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepos(t *testing.T) (*AuctionRepository, *BidRepository) {
	t.Helper()
	db := NewDB(func() time.Time { return t0 })
	return NewAuctionRepository(db), NewBidRepository(db)
}

func createAuction(t *testing.T, r *AuctionRepository, starting string) *domain.Auction {
	t.Helper()
	a, err := r.Create(context.Background(), domain.NewAuction{
		Title:       "Vintage Rolex",
		StartingBid: decimal.RequireFromString(starting),
		EndTime:     t0.Add(time.Hour),
	})
	require.NoError(t, err)
	return a
}

func newBid(auctionID, userID int64, amount string) domain.NewBid {
	return domain.NewBid{
		AuctionID:  auctionID,
		UserID:     userID,
		BidderName: "Ana",
		Amount:     decimal.RequireFromString(amount),
		Timestamp:  t0,
	}
}

func TestAuctionRepository_CreateAndGet(t *testing.T) {
	auctions, _ := newRepos(t)
	ctx := context.Background()

	a := createAuction(t, auctions, "100")
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, t0, a.CreatedAt)
	assert.Equal(t, []string{domain.DefaultImage}, a.Images)
	assert.True(t, a.CurrentBid.Equal(a.StartingBid))

	b := createAuction(t, auctions, "200")
	assert.Equal(t, int64(2), b.ID)

	got, err := auctions.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)

	// returned values are detached from the store
	got.Images[0] = "changed"
	again, err := auctions.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultImage, again.Images[0])

	all, err := auctions.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)

	_, err = auctions.GetByID(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	_, err = auctions.Create(ctx, domain.NewAuction{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidAuction)
}

func TestAuctionRepository_Update(t *testing.T) {
	auctions, _ := newRepos(t)
	ctx := context.Background()
	a := createAuction(t, auctions, "100")

	title := "Rolex Submariner"
	updated, err := auctions.Update(ctx, a.ID, domain.AuctionPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	lower := decimal.NewFromInt(50)
	bidder := int64(3)
	_, err = auctions.Update(ctx, a.ID, domain.AuctionPatch{CurrentBid: &lower, HighestBidderID: &bidder})
	assert.ErrorIs(t, err, domain.ErrInvalidAuction)

	_, err = auctions.Update(ctx, 42, domain.AuctionPatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestAuctionRepository_DeleteRemovesBids(t *testing.T) {
	auctions, bids := newRepos(t)
	ctx := context.Background()
	a := createAuction(t, auctions, "100")
	other := createAuction(t, auctions, "100")

	_, _, err := bids.CommitBid(ctx, newBid(a.ID, 1, "150"), decimal.NewFromInt(100))
	require.NoError(t, err)
	_, _, err = bids.CommitBid(ctx, newBid(other.ID, 1, "150"), decimal.NewFromInt(100))
	require.NoError(t, err)

	require.NoError(t, auctions.Delete(ctx, a.ID))
	assert.ErrorIs(t, auctions.Delete(ctx, a.ID), domain.ErrAuctionNotFound)

	left, err := bids.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, other.ID, left[0].AuctionID)
}

func TestBidRepository_CommitBid(t *testing.T) {
	auctions, bids := newRepos(t)
	ctx := context.Background()
	a := createAuction(t, auctions, "100")

	bid, updated, err := bids.CommitBid(ctx, newBid(a.ID, 5, "150"), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(1), bid.ID)
	assert.True(t, updated.CurrentBid.Equal(decimal.NewFromInt(150)))
	require.NotNil(t, updated.HighestBidderID)
	assert.Equal(t, int64(5), *updated.HighestBidderID)

	// the auction moved on, a commit validated against the old price is refused
	_, _, err = bids.CommitBid(ctx, newBid(a.ID, 6, "160"), decimal.NewFromInt(100))
	require.ErrorIs(t, err, domain.ErrStaleBid)

	stored, err := auctions.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentBid.Equal(decimal.NewFromInt(150)))
	byAuction, err := bids.GetByAuctionID(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, byAuction, 1)

	_, _, err = bids.CommitBid(ctx, newBid(77, 6, "160"), decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	_, _, err = bids.CommitBid(ctx, newBid(a.ID, 6, "0"), decimal.NewFromInt(150))
	assert.ErrorIs(t, err, domain.ErrInvalidBid)
}

func TestBidRepository_ConcurrentCommitsOnlyOneWins(t *testing.T) {
	auctions, bids := newRepos(t)
	ctx := context.Background()
	a := createAuction(t, auctions, "100")

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = bids.CommitBid(ctx, newBid(a.ID, int64(i+1), "150"), a.CurrentBid)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrStaleBid)
	}
	assert.Equal(t, 1, wins)
}

func TestBidRepository_Queries(t *testing.T) {
	auctions, bids := newRepos(t)
	ctx := context.Background()
	a := createAuction(t, auctions, "100")

	_, err := bids.Create(ctx, newBid(a.ID, 1, "110"))
	require.NoError(t, err)
	_, err = bids.Create(ctx, newBid(a.ID, 2, "120"))
	require.NoError(t, err)

	byUser, err := bids.GetByUserID(ctx, 2)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, int64(2), byUser[0].ID)

	got, err := bids.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.BidderName)

	_, err = bids.GetByID(ctx, 9)
	assert.ErrorIs(t, err, domain.ErrBidNotFound)

	none, err := bids.GetByAuctionID(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = bids.Create(ctx, newBid(404, 1, "110"))
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}
