package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/shared/db"
	"github.com/cristianortiz/quickbid/internal/shared/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const foreignKeyViolation = "23503"

const bidColumns = `id, auction_id, user_id, bidder_name, amount::text, "timestamp"`

// BidRepository implements domain.BidStore and domain.BidCommitter for PostgreSQL.
type BidRepository struct {
	db db.DBTX
}

// NewBidRepository creates new instance of BidRepository.
func NewBidRepository(db db.DBTX) *BidRepository {
	return &BidRepository{db: db}
}

func (r *BidRepository) GetAll(ctx context.Context) ([]domain.Bid, error) {
	return r.list(ctx, "get all", `SELECT `+bidColumns+` FROM bids ORDER BY id`)
}

func (r *BidRepository) GetByID(ctx context.Context, id int64) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`
	b, err := scanBid(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bid repository: get bid %d: %w", id, domain.ErrBidNotFound)
		}
		return nil, storage.Unavailable(fmt.Sprintf("bid repository: get bid %d", id), err)
	}
	return b, nil
}

func (r *BidRepository) GetByAuctionID(ctx context.Context, auctionID int64) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 ORDER BY id`
	return r.list(ctx, "get bids by auction", query, auctionID)
}

func (r *BidRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE user_id = $1 ORDER BY id`
	return r.list(ctx, "get bids by user", query, userID)
}

// Create only inserts the bid, the auction price is left as is. The bidding engine uses CommitBid.
func (r *BidRepository) Create(ctx context.Context, fields domain.NewBid) (*domain.Bid, error) {
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("bid repository: create: %w", err)
	}
	b, err := insertBid(ctx, r.db, fields)
	if err != nil {
		return nil, classify("bid repository: create", err)
	}
	return b, nil
}

// CommitBid moves the auction price with a compare-and-set on current_bid and inserts
// the bid in the same transaction.
func (r *BidRepository) CommitBid(ctx context.Context, fields domain.NewBid, expectedCurrent decimal.Decimal) (*domain.Bid, *domain.Auction, error) {
	if err := fields.Validate(); err != nil {
		return nil, nil, fmt.Errorf("bid repository: commit: %w", err)
	}
	if !fields.Amount.GreaterThan(expectedCurrent) {
		return nil, nil, fmt.Errorf("bid repository: commit: %w: amount %s does not exceed %s",
			domain.ErrInvalidBid, fields.Amount.StringFixed(2), expectedCurrent.StringFixed(2))
	}

	var (
		bid     *domain.Bid
		auction *domain.Auction
	)
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
            UPDATE auctions
            SET current_bid = $2::numeric, highest_bidder_id = $3, updated_at = NOW()
            WHERE id = $1 AND current_bid = $4::numeric
            RETURNING ` + auctionColumns
		a, err := scanAuction(tx.QueryRow(ctx, query,
			fields.AuctionID,
			fields.Amount.String(),
			fields.UserID,
			expectedCurrent.String(),
		))
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return storage.Unavailable("bid repository: commit: update auction", err)
			}
			// either the auction is gone or its price moved
			if _, getErr := getAuction(ctx, tx, fields.AuctionID, false); getErr != nil {
				return getErr
			}
			return fmt.Errorf("bid repository: commit bid for auction %d: expected %s: %w",
				fields.AuctionID, expectedCurrent.StringFixed(2), domain.ErrStaleBid)
		}

		b, err := insertBid(ctx, tx, fields)
		if err != nil {
			return err
		}
		bid, auction = b, a
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrStaleBid) {
			log.Error("Bid commit failed",
				zap.Int64("auctionID", fields.AuctionID),
				zap.Int64("userID", fields.UserID),
				zap.Error(err),
			)
		}
		return nil, nil, classify("bid repository: commit", err)
	}
	return bid, auction, nil
}

func insertBid(ctx context.Context, conn queryRower, fields domain.NewBid) (*domain.Bid, error) {
	query := `
        INSERT INTO bids (auction_id, user_id, bidder_name, amount, "timestamp")
        VALUES ($1, $2, $3, $4::numeric, $5)
        RETURNING id`

	b := fields.Build(0)
	err := conn.QueryRow(ctx, query,
		b.AuctionID,
		b.UserID,
		b.BidderName,
		b.Amount.String(),
		b.Timestamp,
	).Scan(&b.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			if pgErr.ConstraintName == "bids_user_id_fkey" {
				return nil, fmt.Errorf("bid repository: insert bid: user %d: %w", b.UserID, domain.ErrBidderNotRegistered)
			}
			return nil, fmt.Errorf("bid repository: insert bid: auction %d: %w", b.AuctionID, domain.ErrAuctionNotFound)
		}
		return nil, storage.Unavailable("bid repository: insert bid", err)
	}
	return &b, nil
}

func (r *BidRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.Bid, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storage.Unavailable("bid repository: "+op, err)
	}
	defer rows.Close()

	bids := []domain.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, storage.Unavailable("bid repository: scan bid", err)
		}
		bids = append(bids, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("bid repository: "+op, err)
	}
	return bids, nil
}

func scanBid(row scanner) (*domain.Bid, error) {
	var (
		b      domain.Bid
		amount string
	)
	if err := row.Scan(&b.ID, &b.AuctionID, &b.UserID, &b.BidderName, &amount, &b.Timestamp); err != nil {
		return nil, err
	}
	var err error
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &b, nil
}
