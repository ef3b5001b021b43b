package http

import (
	"time"

	"github.com/cristianortiz/quickbid/internal/auction/application"
	"github.com/cristianortiz/quickbid/internal/auction/domain"
	userdomain "github.com/cristianortiz/quickbid/internal/user/domain"
	"github.com/shopspring/decimal"
)

// ErrorCode identifies a failure kind for API clients
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "not_found"
	CodeAuctionEnded     ErrorCode = "auction_ended"
	CodeNotRegistered    ErrorCode = "bidder_not_registered"
	CodeBidTooLow        ErrorCode = "bid_too_low"
	CodeBidNotHighEnough ErrorCode = "bid_not_high_enough"
	CodeInvalidRequest   ErrorCode = "invalid_request"
	CodeEmailTaken       ErrorCode = "email_taken"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeForbidden        ErrorCode = "forbidden"
	CodeUnavailable      ErrorCode = "store_unavailable"
	CodeInternal         ErrorCode = "internal_error"
)

// PlaceBidRequest is the body of POST /auctions/:id/bids
type PlaceBidRequest struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateAuctionRequest is the body of POST /admin/auctions
type CreateAuctionRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Terms       string          `json:"terms"`
	Images      []string        `json:"images"`
	StartingBid decimal.Decimal `json:"starting_bid"`
	EndTime     time.Time       `json:"end_time"`
}

func (r CreateAuctionRequest) toDomain() domain.NewAuction {
	return domain.NewAuction{
		Title:       r.Title,
		Description: r.Description,
		Terms:       r.Terms,
		Images:      r.Images,
		StartingBid: r.StartingBid,
		EndTime:     r.EndTime,
	}
}

// ErrorResponse is returned with every non 2xx status.
// Bid rejections also carry the prices the bid was checked against.
type ErrorResponse struct {
	Error      string           `json:"error"`
	Code       ErrorCode        `json:"code"`
	CurrentBid *decimal.Decimal `json:"current_bid,omitempty"`
	MinimumBid *decimal.Decimal `json:"minimum_bid,omitempty"`
}

type HistoryEntryDTO struct {
	application.BidDTO
	Position int  `json:"position"`
	Highest  bool `json:"highest"`
	IsViewer bool `json:"is_viewer"`
}

// HistoryResponse is the body of GET /auctions/:id/bids
type HistoryResponse struct {
	AuctionID    int64               `json:"auction_id"`
	Count        int                 `json:"count"`
	Empty        bool                `json:"empty"`
	CurrentPrice decimal.Decimal     `json:"current_price"`
	Entries      []HistoryEntryDTO   `json:"entries"`
	WinningBid   *application.BidDTO `json:"winning_bid,omitempty"`
	RefreshedAt  time.Time           `json:"refreshed_at"`
}

func newHistoryResponse(h *application.History) HistoryResponse {
	resp := HistoryResponse{
		AuctionID:    h.AuctionID,
		Count:        h.Count,
		Empty:        h.Empty,
		CurrentPrice: h.CurrentPrice,
		Entries:      make([]HistoryEntryDTO, 0, len(h.Entries)),
		RefreshedAt:  h.RefreshedAt,
	}
	for _, e := range h.Entries {
		resp.Entries = append(resp.Entries, HistoryEntryDTO{
			BidDTO:   application.NewBidDTO(e.Bid),
			Position: e.Position,
			Highest:  e.Highest,
			IsViewer: e.IsViewer,
		})
	}
	if h.WinningBid != nil {
		w := application.NewBidDTO(*h.WinningBid)
		resp.WinningBid = &w
	}
	return resp
}

// UserDTO is a user as returned by the admin routes
type UserDTO struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
	IsAdmin      bool      `json:"is_admin"`
}

func newUserDTO(u userdomain.User) UserDTO {
	return UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, RegisteredAt: u.RegisteredAt, IsAdmin: u.IsAdmin}
}
