package main

import (
	"context"
	"time"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/shared/logger"
	userdomain "github.com/cristianortiz/quickbid/internal/user/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var demoAuctions = []struct {
	title       string
	description string
	startingBid int64
	duration    time.Duration
}{
	{"Vintage Rolex Submariner", "1968 reference 5513, serviced last year.", 1000, 2 * time.Hour},
	{"Signed First Edition Novel", "Hardcover first printing with dust jacket.", 200, 30 * time.Minute},
	{"Mid-Century Lounge Chair", "Walnut shell with original leather cushions.", 750, 24 * time.Hour},
	{"Landscape Oil Painting", "Framed canvas, 60x90cm.", 400, 4 * time.Minute},
}

// seedDemo loads an admin, a bidder and a few auctions into an empty store.
func seedDemo(ctx context.Context, st *stores, clock domain.Clock) error {
	log := logger.GetLogger()

	users, err := st.users.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		log.Debug("Store already has users, skipping demo seed")
		return nil
	}

	demoUsers := []userdomain.NewUser{
		{Name: "Admin", Email: "admin@quickbid.local", IsAdmin: true},
		{Name: "Demo Bidder", Email: "bidder@quickbid.local"},
	}
	for _, u := range demoUsers {
		if _, err := st.users.Create(ctx, u); err != nil {
			return err
		}
	}

	now := clock.Now()
	for _, a := range demoAuctions {
		if _, err := st.auctions.Create(ctx, domain.NewAuction{
			Title:       a.title,
			Description: a.description,
			Terms:       "Payment due within 3 days of auction end.",
			StartingBid: decimal.NewFromInt(a.startingBid),
			EndTime:     now.Add(a.duration),
		}); err != nil {
			return err
		}
	}

	log.Info("Demo data seeded",
		zap.Int("users", len(demoUsers)),
		zap.Int("auctions", len(demoAuctions)),
	)
	return nil
}
