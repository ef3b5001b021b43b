package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0        = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	increment = decimal.NewFromInt(25)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleAuction() *Auction {
	a := NewAuction{
		Title:       "Vintage Rolex",
		StartingBid: dec("500"),
		EndTime:     t0.Add(time.Hour),
	}.Normalize().Build(1, t0)
	a.CurrentBid = dec("1000")
	bidder := int64(7)
	a.HighestBidderID = &bidder
	return &a
}

func TestMinimumBid(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		starting string
		want     string
	}{
		{"current plus increment", "1000", "500", "1025"},
		{"starting bid dominates", "200", "225", "225"},
		{"no bids yet", "100", "100", "125"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MinimumBid(dec(tc.current), dec(tc.starting), increment)
			assert.True(t, got.Equal(dec(tc.want)), "got %s", got)
		})
	}
}

func TestSuggestedBids(t *testing.T) {
	got := SuggestedBids(dec("1000"))
	want := []string{"1050", "1100", "1250", "1500"}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.True(t, got[i].Equal(dec(w)), "suggestion %d: got %s", i, got[i])
	}
}

func TestAuction_CheckOpen(t *testing.T) {
	a := sampleAuction()

	assert.NoError(t, a.CheckOpen(t0))
	assert.NoError(t, a.CheckOpen(a.EndTime.Add(-time.Nanosecond)))

	err := a.CheckOpen(a.EndTime)
	require.ErrorIs(t, err, ErrAuctionEnded)
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.True(t, rej.MinimumBid.IsZero())
	assert.Equal(t, "auction 1 has ended", err.Error())
}

func TestAuction_CheckAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		inc     decimal.Decimal
		wantErr error
	}{
		{"accepted at the minimum", "1025", increment, nil},
		{"accepted above the minimum", "1500", increment, nil},
		{"zero", "0", increment, ErrInvalidAmount},
		{"negative", "-10", increment, ErrInvalidAmount},
		{"below minimum", "1010", increment, ErrBidTooLow},
		{"equal to current with no increment", "1000", decimal.Zero, ErrBidNotHighEnough},
		{"above current with no increment", "1000.01", decimal.Zero, nil},
		{"fraction of a cent", "1000.004", decimal.Zero, ErrInvalidAmount},
		{"fraction of a cent above minimum", "1025.001", increment, ErrInvalidAmount},
		{"trailing zeros are whole cents", "1025.000", increment, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := sampleAuction()
			err := a.CheckAmount(dec(tc.amount), tc.inc)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			assert.True(t, IsRejection(err))
		})
	}
}

func TestRejectionError_Messages(t *testing.T) {
	a := sampleAuction()

	err := a.CheckAmount(dec("1010"), increment)
	assert.Equal(t, "minimum bid is $1025.00", err.Error())

	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.True(t, rej.CurrentBid.Equal(dec("1000")))
	assert.True(t, rej.MinimumBid.Equal(dec("1025")))

	err = a.CheckAmount(dec("1000"), decimal.Zero)
	assert.Equal(t, "bid must be higher than current bid of $1000.00", err.Error())
}

func TestNewAuction_NormalizeAndValidate(t *testing.T) {
	n := NewAuction{
		Title:       "  Painting ",
		Images:      []string{" ", ""},
		StartingBid: dec("10"),
		EndTime:     t0,
	}.Normalize()

	require.NoError(t, n.Validate())
	assert.Equal(t, "Painting", n.Title)
	assert.Equal(t, []string{DefaultImage}, n.Images)

	a := n.Build(3, t0)
	assert.True(t, a.CurrentBid.Equal(a.StartingBid))
	assert.Nil(t, a.HighestBidderID)
	assert.False(t, a.HasBids())

	bad := []NewAuction{
		{StartingBid: dec("10"), EndTime: t0, Images: []string{"x"}},
		{Title: "x", StartingBid: dec("0"), EndTime: t0, Images: []string{"x"}},
		{Title: "x", StartingBid: dec("10"), Images: []string{"x"}},
		{Title: "x", StartingBid: dec("10"), EndTime: t0},
		{Title: "x", StartingBid: dec("10.005"), EndTime: t0, Images: []string{"x"}},
	}
	for i, b := range bad {
		assert.ErrorIs(t, b.Validate(), ErrInvalidAuction, "case %d", i)
	}
}

func TestAuctionPatch(t *testing.T) {
	a := *sampleAuction()

	lower := dec("900")
	bidder := int64(9)
	assert.ErrorIs(t, AuctionPatch{CurrentBid: &lower, HighestBidderID: &bidder}.Validate(a), ErrInvalidAuction)

	higher := dec("1100")
	assert.ErrorIs(t, AuctionPatch{CurrentBid: &higher}.Validate(a), ErrInvalidAuction)

	p := AuctionPatch{CurrentBid: &higher, HighestBidderID: &bidder}
	require.NoError(t, p.Validate(a))
	updated := p.Apply(a)
	assert.True(t, updated.CurrentBid.Equal(higher))
	assert.Equal(t, int64(9), *updated.HighestBidderID)
	// the original is untouched
	assert.True(t, a.CurrentBid.Equal(dec("1000")))
	assert.Equal(t, int64(7), *a.HighestBidderID)
}

func TestAuction_State(t *testing.T) {
	a := sampleAuction()
	assert.Equal(t, StateActive, a.State(t0))
	assert.Equal(t, StateEnded, a.State(a.EndTime))
	assert.Equal(t, StateEnded, a.State(a.EndTime.Add(time.Minute)))
}

func TestNewBid_Validate(t *testing.T) {
	ok := NewBid{AuctionID: 1, UserID: 2, Amount: dec("10"), Timestamp: t0}
	assert.NoError(t, ok.Validate())

	for _, n := range []NewBid{
		{UserID: 2, Amount: dec("10"), Timestamp: t0},
		{AuctionID: 1, Amount: dec("10"), Timestamp: t0},
		{AuctionID: 1, UserID: 2, Amount: dec("0"), Timestamp: t0},
		{AuctionID: 1, UserID: 2, Amount: dec("10")},
	} {
		assert.ErrorIs(t, n.Validate(), ErrInvalidBid)
	}
}
