package application

import (
	"context"
	"errors"
	"testing"
	"time"

	auctiondomain "github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/shared/storage"
	"github.com/cristianortiz/quickbid/internal/user/domain"
	"github.com/cristianortiz/quickbid/internal/user/domain/mocks"
	"github.com/cristianortiz/quickbid/internal/user/infra/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type bidsByUser map[int64][]auctiondomain.Bid

func (b bidsByUser) GetByUserID(ctx context.Context, userID int64) ([]auctiondomain.Bid, error) {
	return b[userID], nil
}

func TestRegistrar_Register(t *testing.T) {
	r := NewRegistrar(memory.NewUserRepository(nil), bidsByUser{})
	ctx := context.Background()

	u, err := r.Register(ctx, " Ada Lovelace ", "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.False(t, u.IsAdmin)

	got, err := r.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, *u, *got)

	_, err = r.Register(ctx, "Someone", "ADA@example.com")
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = r.Register(ctx, "Bad", "not-an-email")
	require.ErrorIs(t, err, domain.ErrInvalidUser)

	users, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegistrar_Register_StoreDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockUserStore(ctrl)
	r := NewRegistrar(store, bidsByUser{})

	store.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").
		Return(nil, storage.Unavailable("get user by email", errors.New("connection refused")))

	_, err := r.Register(context.Background(), "Ada", "ada@example.com")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestRegistrar_BidsOf(t *testing.T) {
	users := memory.NewUserRepository(nil)
	ctx := context.Background()
	u, err := users.Create(ctx, domain.NewUser{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	bids := bidsByUser{u.ID: {
		{ID: 1, AuctionID: 1, UserID: u.ID, Amount: decimal.NewFromInt(100), Timestamp: t0},
		{ID: 3, AuctionID: 2, UserID: u.ID, Amount: decimal.NewFromInt(300), Timestamp: t0.Add(time.Hour)},
		{ID: 2, AuctionID: 1, UserID: u.ID, Amount: decimal.NewFromInt(200), Timestamp: t0.Add(time.Minute)},
	}}
	r := NewRegistrar(users, bids)

	got, err := r.BidsOf(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{got[0].ID, got[1].ID, got[2].ID})
	// the source slice keeps its order
	assert.Equal(t, int64(1), bids[u.ID][0].ID)

	_, err = r.BidsOf(ctx, 99)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRegistrar_UpdateProfile(t *testing.T) {
	r := NewRegistrar(memory.NewUserRepository(nil), bidsByUser{})
	ctx := context.Background()

	ada, err := r.Register(ctx, "Ada", "ada@example.com")
	require.NoError(t, err)
	_, err = r.Register(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)

	name := " Ada Lovelace "
	u, err := r.UpdateProfile(ctx, ada.ID, ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "ada@example.com", u.Email, "absent email is kept")

	email := "Lovelace@Example.com"
	u, err = r.UpdateProfile(ctx, ada.ID, ProfileUpdate{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "lovelace@example.com", u.Email)
	assert.Equal(t, "Ada Lovelace", u.Name)

	taken := "BOB@example.com"
	_, err = r.UpdateProfile(ctx, ada.ID, ProfileUpdate{Email: &taken})
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	bad := "nope"
	_, err = r.UpdateProfile(ctx, ada.ID, ProfileUpdate{Email: &bad})
	require.ErrorIs(t, err, domain.ErrInvalidUser)

	blank := "  "
	_, err = r.UpdateProfile(ctx, ada.ID, ProfileUpdate{Name: &blank})
	require.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = r.UpdateProfile(ctx, 99, ProfileUpdate{Name: &name})
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	got, err := r.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "lovelace@example.com", got.Email)
}

func TestRegistrar_UpdateProfile_StoreDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockUserStore(ctrl)
	r := NewRegistrar(store, bidsByUser{})
	ada := &domain.User{ID: 1, Name: "Ada", Email: "ada@example.com"}
	name := "Ada L."

	store.EXPECT().GetByID(gomock.Any(), int64(1)).Return(ada, nil)
	store.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(ada, nil)
	store.EXPECT().Update(gomock.Any(), int64(1), domain.Profile{Name: "Ada L.", Email: "ada@example.com"}).
		Return(nil, storage.Unavailable("update", errors.New("connection refused")))

	_, err := r.UpdateProfile(context.Background(), 1, ProfileUpdate{Name: &name})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
