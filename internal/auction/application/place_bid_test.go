package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/auction/domain/mocks"
	"github.com/cristianortiz/quickbid/internal/auction/infra/repository/memory"
	"github.com/cristianortiz/quickbid/internal/shared/lock"
	"github.com/cristianortiz/quickbid/internal/shared/storage"
	userapp "github.com/cristianortiz/quickbid/internal/user/application"
	userdomain "github.com/cristianortiz/quickbid/internal/user/domain"
	usermocks "github.com/cristianortiz/quickbid/internal/user/domain/mocks"
	usermemory "github.com/cristianortiz/quickbid/internal/user/infra/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	t0          = time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)
	defaultIncr = decimal.NewFromInt(25)
	fixedClock  = domain.ClockFunc(func() time.Time { return t0 })
	afterEnd    = domain.ClockFunc(func() time.Time { return t0.Add(2 * time.Hour) })
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fixture wires the engine on the in-memory stores
type fixture struct {
	auctions *memory.AuctionRepository
	bids     *memory.BidRepository
	users    *usermemory.UserRepository
	locker   *lock.KeyedMutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.NewDB(fixedClock.Now)
	return &fixture{
		auctions: memory.NewAuctionRepository(db),
		bids:     memory.NewBidRepository(db),
		users:    usermemory.NewUserRepository(fixedClock.Now),
		locker:   lock.NewKeyedMutex(),
	}
}

func (f *fixture) engine(clock domain.Clock, increment decimal.Decimal) *Engine {
	return NewEngine(f.auctions, f.bids, f.users, f.locker, clock, increment)
}

func (f *fixture) auction(t *testing.T, starting string) *domain.Auction {
	t.Helper()
	a, err := f.auctions.Create(context.Background(), domain.NewAuction{
		Title:       "Vintage Rolex",
		StartingBid: dec(starting),
		EndTime:     t0.Add(time.Hour),
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) user(t *testing.T, name string) *userdomain.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), userdomain.NewUser{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return u
}

func TestEngine_SubmitBid_Accepted(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "500")
	ada := f.user(t, "ada")
	ctx := context.Background()

	bid, updated, err := f.engine(fixedClock, defaultIncr).SubmitBid(ctx, a.ID, ada.ID, dec("525"))
	require.NoError(t, err)

	assert.Equal(t, t0, bid.Timestamp)
	assert.Equal(t, "ada", bid.BidderName)
	assert.True(t, bid.Amount.Equal(dec("525")))
	assert.True(t, updated.CurrentBid.Equal(dec("525")))
	require.NotNil(t, updated.HighestBidderID)
	assert.Equal(t, ada.ID, *updated.HighestBidderID)

	stored, err := f.auctions.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentBid.Equal(bid.Amount))
	assert.True(t, stored.CurrentBid.GreaterThanOrEqual(stored.StartingBid))
}

func TestEngine_SubmitBid_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		clock     domain.Clock
		increment decimal.Decimal
		bidder    func(f *fixture, t *testing.T) int64
		amount    string
		wantErr   error
	}{
		{
			name: "auction ended", clock: afterEnd, increment: defaultIncr,
			bidder: func(f *fixture, t *testing.T) int64 { return f.user(t, "ada").ID },
			amount: "5000", wantErr: domain.ErrAuctionEnded,
		},
		{
			name: "ended wins over unregistered and too low", clock: afterEnd, increment: defaultIncr,
			bidder: func(*fixture, *testing.T) int64 { return 404 },
			amount: "1", wantErr: domain.ErrAuctionEnded,
		},
		{
			name: "unregistered bidder", clock: fixedClock, increment: defaultIncr,
			bidder: func(*fixture, *testing.T) int64 { return 404 },
			amount: "5000", wantErr: domain.ErrBidderNotRegistered,
		},
		{
			name: "unregistered wins over too low", clock: fixedClock, increment: defaultIncr,
			bidder: func(*fixture, *testing.T) int64 { return 404 },
			amount: "1", wantErr: domain.ErrBidderNotRegistered,
		},
		{
			name: "below minimum bid", clock: fixedClock, increment: defaultIncr,
			bidder: func(f *fixture, t *testing.T) int64 { return f.user(t, "ada").ID },
			amount: "1020", wantErr: domain.ErrBidTooLow,
		},
		{
			name: "equal to current bid without increment", clock: fixedClock, increment: decimal.Zero,
			bidder: func(f *fixture, t *testing.T) int64 { return f.user(t, "ada").ID },
			amount: "1000", wantErr: domain.ErrBidNotHighEnough,
		},
		{
			name: "zero amount", clock: fixedClock, increment: defaultIncr,
			bidder: func(f *fixture, t *testing.T) int64 { return f.user(t, "ada").ID },
			amount: "0", wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "ended wins over zero amount", clock: afterEnd, increment: defaultIncr,
			bidder: func(f *fixture, t *testing.T) int64 { return f.user(t, "ada").ID },
			amount: "0", wantErr: domain.ErrAuctionEnded,
		},
		{
			name: "ended wins over negative amount", clock: afterEnd, increment: defaultIncr,
			bidder: func(f *fixture, t *testing.T) int64 { return f.user(t, "ada").ID },
			amount: "-5", wantErr: domain.ErrAuctionEnded,
		},
		{
			name: "unregistered wins over zero amount", clock: fixedClock, increment: defaultIncr,
			bidder: func(*fixture, *testing.T) int64 { return 404 },
			amount: "0", wantErr: domain.ErrBidderNotRegistered,
		},
		{
			name: "fraction of a cent without increment", clock: fixedClock, increment: decimal.Zero,
			bidder: func(f *fixture, t *testing.T) int64 { return f.user(t, "ada").ID },
			amount: "1000.004", wantErr: domain.ErrInvalidAmount,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			a := f.auction(t, "500")
			leader := f.user(t, "leader")
			_, _, err := f.engine(fixedClock, defaultIncr).SubmitBid(ctx, a.ID, leader.ID, dec("1000"))
			require.NoError(t, err)
			before, err := f.auctions.GetByID(ctx, a.ID)
			require.NoError(t, err)

			_, _, err = f.engine(tc.clock, tc.increment).SubmitBid(ctx, a.ID, tc.bidder(f, t), dec(tc.amount))
			require.ErrorIs(t, err, tc.wantErr)
			assert.True(t, domain.IsRejection(err))

			after, err := f.auctions.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			bids, err := f.bids.GetByAuctionID(ctx, a.ID)
			require.NoError(t, err)
			assert.Len(t, bids, 1)
		})
	}
}

func TestEngine_SubmitBid_RejectionCarriesPrices(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "200")
	ada := f.user(t, "ada")

	_, _, err := f.engine(fixedClock, defaultIncr).SubmitBid(context.Background(), a.ID, ada.ID, dec("210"))
	var rej *domain.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.True(t, rej.MinimumBid.Equal(dec("225")))
	assert.True(t, rej.CurrentBid.Equal(dec("200")))
	assert.Equal(t, "minimum bid is $225.00", err.Error())
}

func TestEngine_SubmitBid_UnknownAuction(t *testing.T) {
	f := newFixture(t)
	ada := f.user(t, "ada")

	_, _, err := f.engine(fixedClock, defaultIncr).SubmitBid(context.Background(), 99, ada.ID, dec("10"))
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
	assert.False(t, domain.IsRejection(err))
}

// Two bidders race 150 and 160 on an auction at 100 with an increment of 25.
// Whichever commits first, the other one must see the new price and be rejected.
func TestEngine_SubmitBid_ConcurrentBidsNeverBothWin(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		a := f.auction(t, "100")
		ada, bob := f.user(t, "ada"), f.user(t, "bob")
		engine := f.engine(fixedClock, defaultIncr)

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			errs  = make([]error, 2)
		)
		for j, bid := range []struct {
			user   int64
			amount string
		}{{ada.ID, "150"}, {bob.ID, "160"}} {
			wg.Add(1)
			go func(j int, user int64, amount string) {
				defer wg.Done()
				<-start
				_, _, errs[j] = engine.SubmitBid(context.Background(), a.ID, user, dec(amount))
			}(j, bid.user, bid.amount)
		}
		close(start)
		wg.Wait()

		accepted := 0
		for _, err := range errs {
			if err == nil {
				accepted++
				continue
			}
			assert.True(t, errors.Is(err, domain.ErrBidTooLow) || errors.Is(err, domain.ErrBidNotHighEnough), "unexpected error %v", err)
		}
		require.Equal(t, 1, accepted)

		bids, err := f.bids.GetByAuctionID(context.Background(), a.ID)
		require.NoError(t, err)
		require.Len(t, bids, 1)
		stored, err := f.auctions.GetByID(context.Background(), a.ID)
		require.NoError(t, err)
		assert.True(t, stored.CurrentBid.Equal(bids[0].Amount))
		assert.Equal(t, bids[0].UserID, *stored.HighestBidderID)
	}
}

func TestEngine_SubmitBid_OrderingWithoutIncrement(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	a := f.auction(t, "100")
	ada, bob := f.user(t, "ada"), f.user(t, "bob")
	engine := f.engine(fixedClock, decimal.Zero)
	_, _, err := engine.SubmitBid(ctx, a.ID, ada.ID, dec("150"))
	require.NoError(t, err)
	_, _, err = engine.SubmitBid(ctx, a.ID, bob.ID, dec("160"))
	require.NoError(t, err)

	f = newFixture(t)
	a = f.auction(t, "100")
	ada, bob = f.user(t, "ada"), f.user(t, "bob")
	engine = f.engine(fixedClock, decimal.Zero)
	_, _, err = engine.SubmitBid(ctx, a.ID, bob.ID, dec("160"))
	require.NoError(t, err)
	// with no increment the minimum is the current bid itself
	_, _, err = engine.SubmitBid(ctx, a.ID, ada.ID, dec("150"))
	require.ErrorIs(t, err, domain.ErrBidTooLow)
}

func TestEngine_SubmitBid_PriceOnlyMovesUp(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "100")
	engine := f.engine(fixedClock, decimal.NewFromInt(1))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		u := f.user(t, fmt.Sprintf("bidder%d", i))
		wg.Add(1)
		go func(userID int64, amount decimal.Decimal) {
			defer wg.Done()
			_, _, _ = engine.SubmitBid(context.Background(), a.ID, userID, amount)
		}(u.ID, decimal.NewFromInt(int64(101+i*3)))
	}
	wg.Wait()

	bids, err := f.bids.GetByAuctionID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, bids)
	for i := 1; i < len(bids); i++ {
		assert.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount), "bid %d does not raise the price", bids[i].ID)
	}
	stored, err := f.auctions.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentBid.Equal(bids[len(bids)-1].Amount))
}

func TestEngine_SubmitBid_RegisterThenBid(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "500")
	registrar := userapp.NewRegistrar(f.users, f.bids)

	u, err := registrar.Register(context.Background(), "Grace", "grace@example.com")
	require.NoError(t, err)

	bid, _, err := f.engine(fixedClock, defaultIncr).SubmitBid(context.Background(), a.ID, u.ID, dec("525"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, bid.UserID)
	assert.Equal(t, "Grace", bid.BidderName)
}

func TestEngine_SubmitBid_LockTimeout(t *testing.T) {
	f := newFixture(t)
	a := f.auction(t, "500")
	ada := f.user(t, "ada")

	unlock, err := f.locker.Lock(context.Background(), lockKey(a.ID))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = f.engine(fixedClock, defaultIncr).SubmitBid(ctx, a.ID, ada.ID, dec("600"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_SubmitBid_StaleCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	auctions := mocks.NewMockAuctionStore(ctrl)
	committer := mocks.NewMockBidCommitter(ctrl)
	users := usermocks.NewMockUserStore(ctrl)
	engine := NewEngine(auctions, committer, users, lock.NewKeyedMutex(), fixedClock, defaultIncr)

	seen := domain.Auction{ID: 1, StartingBid: dec("100"), CurrentBid: dec("100"), EndTime: t0.Add(time.Hour)}
	moved := seen
	moved.CurrentBid = dec("200")

	gomock.InOrder(
		auctions.EXPECT().GetByID(gomock.Any(), int64(1)).Return(&seen, nil),
		users.EXPECT().GetByID(gomock.Any(), int64(7)).Return(&userdomain.User{ID: 7, Name: "ada"}, nil),
		committer.EXPECT().CommitBid(gomock.Any(), gomock.Any(), dec("100")).Return(nil, nil, domain.ErrStaleBid),
		auctions.EXPECT().GetByID(gomock.Any(), int64(1)).Return(&moved, nil),
	)

	_, _, err := engine.SubmitBid(context.Background(), 1, 7, dec("150"))
	require.ErrorIs(t, err, domain.ErrBidNotHighEnough)
	var rej *domain.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.True(t, rej.CurrentBid.Equal(dec("200")))
	assert.True(t, rej.MinimumBid.Equal(dec("225")))
}

func TestEngine_SubmitBid_StoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	auctions := mocks.NewMockAuctionStore(ctrl)
	committer := mocks.NewMockBidCommitter(ctrl)
	users := usermocks.NewMockUserStore(ctrl)
	engine := NewEngine(auctions, committer, users, lock.NewKeyedMutex(), fixedClock, defaultIncr)

	open := domain.Auction{ID: 1, StartingBid: dec("100"), CurrentBid: dec("100"), EndTime: t0.Add(time.Hour)}
	auctions.EXPECT().GetByID(gomock.Any(), int64(1)).Return(&open, nil)
	users.EXPECT().GetByID(gomock.Any(), int64(7)).
		Return(nil, storage.Unavailable("get user 7", errors.New("connection reset")))

	_, _, err := engine.SubmitBid(context.Background(), 1, 7, dec("150"))
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, domain.IsRejection(err))
	assert.NotErrorIs(t, err, domain.ErrBidderNotRegistered)
}
