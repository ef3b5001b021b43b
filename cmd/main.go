package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cristianortiz/quickbid/internal/auction/application"
	"github.com/cristianortiz/quickbid/internal/auction/domain"
	auctionhttp "github.com/cristianortiz/quickbid/internal/auction/infra/http"
	auctionmemory "github.com/cristianortiz/quickbid/internal/auction/infra/repository/memory"
	auctionpostgres "github.com/cristianortiz/quickbid/internal/auction/infra/repository/postgres"
	"github.com/cristianortiz/quickbid/internal/shared/config"
	"github.com/cristianortiz/quickbid/internal/shared/db"
	"github.com/cristianortiz/quickbid/internal/shared/db/migrations"
	"github.com/cristianortiz/quickbid/internal/shared/httpserver"
	"github.com/cristianortiz/quickbid/internal/shared/lock"
	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/cristianortiz/quickbid/internal/shared/notify"
	userapp "github.com/cristianortiz/quickbid/internal/user/application"
	userdomain "github.com/cristianortiz/quickbid/internal/user/domain"
	userhttp "github.com/cristianortiz/quickbid/internal/user/infra/http"
	usermemory "github.com/cristianortiz/quickbid/internal/user/infra/repository/memory"
	userpostgres "github.com/cristianortiz/quickbid/internal/user/infra/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type bidRepository interface {
	domain.BidStore
	domain.BidCommitter
}

type stores struct {
	auctions domain.AuctionStore
	bids     bidRepository
	users    userdomain.UserStore
}

func main() {
	log := logger.GetLogger()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		log.Fatal("Invalid log level", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting QuickBid server...",
		zap.String("store", cfg.StoreDriver),
		zap.Stringer("minBidIncrement", cfg.MinBidIncrement),
	)

	if err := run(ctx, cfg); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	log := logger.GetLogger()
	server := httpserver.NewServer()
	clock := domain.SystemClock{}

	st, err := openStores(ctx, cfg, server, clock)
	if err != nil {
		return err
	}

	locker, err := newLocker(ctx, cfg, server)
	if err != nil {
		return err
	}

	if cfg.SeedDemo {
		if err := seedDemo(ctx, st, clock); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	hub := notify.NewHub[application.ExpiryEvent]()
	engine := application.NewEngine(st.auctions, st.bids, st.users, locker, clock, cfg.MinBidIncrement)
	stateUC := application.NewGetAuctionStateUseCase(st.auctions, st.bids, clock, cfg.MinBidIncrement)
	history := application.NewHistoryRefresher(st.auctions, st.bids, clock, cfg.HistoryPollInterval)
	monitor := application.NewExpiryMonitor(st.auctions, clock, hub)
	auctionService := application.NewAuctionService(engine, stateUC, history, clock)
	admin := application.NewAdminService(st.auctions, st.users, history)
	registrar := userapp.NewRegistrar(st.users, st.bids)

	auctionhttp.NewAuctionHandler(auctionService, admin).Register(server.Router())
	userhttp.NewUserHandler(registrar).Register(server.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return history.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx, cfg.ExpiryCheckInterval) })
	g.Go(func() error { return logExpiries(gctx, monitor) })
	g.Go(func() error { return server.Start(gctx, cfg.HTTPAddr) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	log.Debug("Background workers finished", zap.Error(err))
	return err
}

func openStores(ctx context.Context, cfg config.Config, server *httpserver.Server, clock domain.Clock) (*stores, error) {
	log := logger.GetLogger()

	if cfg.StoreDriver == config.StoreMemory {
		mem := auctionmemory.NewDB(clock.Now)
		return &stores{
			auctions: auctionmemory.NewAuctionRepository(mem),
			bids:     auctionmemory.NewBidRepository(mem),
			users:    usermemory.NewUserRepository(clock.Now),
		}, nil
	}

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(cfg.DB.DSN()); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	pool, err := db.GetPostgresDBPool(ctx, cfg.DB.DSN())
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		pool.Close()
	}()
	server.AddHealthCheck("postgres", pool.Ping)

	return &stores{
		auctions: auctionpostgres.NewAuctionRepository(pool),
		bids:     auctionpostgres.NewBidRepository(pool),
		users:    userpostgres.NewUserRepository(pool),
	}, nil
}

// newLocker serializes bids through redis when it is configured, so several
// instances can share one store. A single instance only needs the in-process lock.
func newLocker(ctx context.Context, cfg config.Config, server *httpserver.Server) (lock.Locker, error) {
	if cfg.RedisAddr == "" {
		return lock.NewKeyedMutex(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	locker := lock.NewRedisLocker(client, cfg.RedisLockTTL)
	if err := locker.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()
	server.AddHealthCheck("redis", locker.Ping)
	logger.GetLogger().Info("Using redis bid locks", zap.String("addr", cfg.RedisAddr))
	return locker, nil
}

func logExpiries(ctx context.Context, monitor *application.ExpiryMonitor) error {
	sub, err := monitor.SubscribeAll(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, notify.ErrHubClosed) {
			return nil
		}
		return err
	}
	defer monitor.Unsubscribe(sub)

	log := logger.GetLogger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			fields := []zap.Field{
				zap.Int64("auctionID", ev.AuctionID),
				zap.String("title", ev.Title),
				zap.Stringer("finalPrice", ev.CurrentBid),
			}
			if ev.HighestBidderID != nil {
				fields = append(fields, zap.Int64("winnerID", *ev.HighestBidderID))
			}
			log.Info("Auction ended", fields...)
		}
	}
}
