package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/shared/db"
	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/cristianortiz/quickbid/internal/shared/storage"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// money columns are read as text so the decimal keeps its exact scale
const auctionColumns = `id, title, description, terms, images, starting_bid::text, current_bid::text, highest_bidder_id, end_time, created_at`

type scanner interface {
	Scan(dest ...any) error
}

// queryRower is satisfied by db.DBTX and pgx.Tx
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AuctionRepository implements domain.AuctionStore for PostgreSQL.
type AuctionRepository struct {
	db db.DBTX
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(db db.DBTX) *AuctionRepository {
	return &AuctionRepository{db: db}
}

func (r *AuctionRepository) GetAll(ctx context.Context) ([]domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("auction repository: get all", err)
	}
	defer rows.Close()

	var auctions []domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, storage.Unavailable("auction repository: scan auction", err)
		}
		auctions = append(auctions, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("auction repository: get all", err)
	}
	return auctions, nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id int64) (*domain.Auction, error) {
	return getAuction(ctx, r.db, id, false)
}

// Create inserts the auction with its price at the starting bid.
func (r *AuctionRepository) Create(ctx context.Context, fields domain.NewAuction) (*domain.Auction, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("auction repository: create: %w", err)
	}

	query := `
        INSERT INTO auctions (title, description, terms, images, starting_bid, current_bid, end_time)
        VALUES ($1, $2, $3, $4, $5::numeric, $5::numeric, $6)
        RETURNING ` + auctionColumns

	row := r.db.QueryRow(ctx, query,
		fields.Title,
		fields.Description,
		fields.Terms,
		fields.Images,
		fields.StartingBid.String(),
		fields.EndTime,
	)
	a, err := scanAuction(row)
	if err != nil {
		return nil, storage.Unavailable("auction repository: create", err)
	}
	log.Info("Auction created", zap.Int64("auctionID", a.ID), zap.String("title", a.Title))
	return a, nil
}

// Update locks the row, validates patch against it and writes the result in one transaction.
func (r *AuctionRepository) Update(ctx context.Context, id int64, patch domain.AuctionPatch) (*domain.Auction, error) {
	var updated *domain.Auction
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		current, err := getAuction(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := patch.Validate(*current); err != nil {
			return fmt.Errorf("auction repository: update auction %d: %w", id, err)
		}
		next := patch.Apply(*current)

		query := `
            UPDATE auctions
            SET title = $2, description = $3, terms = $4, images = $5, end_time = $6,
                current_bid = $7::numeric, highest_bidder_id = $8, updated_at = NOW()
            WHERE id = $1`
		if _, err := tx.Exec(ctx, query,
			id,
			next.Title,
			next.Description,
			next.Terms,
			next.Images,
			next.EndTime,
			next.CurrentBid.String(),
			next.HighestBidderID,
		); err != nil {
			return storage.Unavailable("auction repository: update", err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, classify("auction repository: update", err)
	}
	return updated, nil
}

// Delete removes the auction, its bids go with it through the foreign key.
func (r *AuctionRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return storage.Unavailable("auction repository: delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("auction repository: delete auction %d: %w", id, domain.ErrAuctionNotFound)
	}
	return nil
}

func getAuction(ctx context.Context, conn queryRower, id int64, forUpdate bool) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAuction(conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("auction repository: get auction %d: %w", id, domain.ErrAuctionNotFound)
		}
		return nil, storage.Unavailable(fmt.Sprintf("auction repository: get auction %d", id), err)
	}
	return a, nil
}

func scanAuction(row scanner) (*domain.Auction, error) {
	var (
		a                    domain.Auction
		startingBid, current string
	)
	if err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.Terms,
		&a.Images,
		&startingBid,
		&current,
		&a.HighestBidderID,
		&a.EndTime,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if a.StartingBid, err = decimal.NewFromString(startingBid); err != nil {
		return nil, fmt.Errorf("parse starting_bid %q: %w", startingBid, err)
	}
	if a.CurrentBid, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("parse current_bid %q: %w", current, err)
	}
	return &a, nil
}

// classify keeps errors already carrying a domain or storage meaning and marks
// the rest (begin, commit) as store failures.
func classify(op string, err error) error {
	for _, known := range []error{
		storage.ErrUnavailable,
		domain.ErrAuctionNotFound,
		domain.ErrInvalidAuction,
		domain.ErrInvalidBid,
		domain.ErrStaleBid,
		domain.ErrBidderNotRegistered,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return storage.Unavailable(op, err)
}
