package http

import (
	"context"
	"errors"
	"strconv"

	"github.com/cristianortiz/quickbid/internal/auction/application"
	"github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/shared/logger"
	userdomain "github.com/cristianortiz/quickbid/internal/user/domain"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AdminHeader carries the id of the user calling an admin route
const AdminHeader = "X-User-ID"

const adminUserKey = "adminUser"

// AuctionHandler serves the auction and admin routes of the API
type AuctionHandler struct {
	auctionService application.AuctionService
	admin          *application.AdminService
}

// NewAuctionHandler creates a new instance of AuctionHandler
func NewAuctionHandler(auctionService application.AuctionService, admin *application.AdminService) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		admin:          admin,
	}
}

// Register mounts the routes on router
func (h *AuctionHandler) Register(router fiber.Router) {
	auctions := router.Group("/auctions")
	auctions.Get("/", h.listAuctions)
	auctions.Get("/:id", h.getAuction)
	auctions.Get("/:id/bids", h.getBidHistory)
	auctions.Post("/:id/bids", h.placeBid)

	admin := router.Group("/admin", h.requireAdmin)
	admin.Post("/auctions", h.createAuction)
	admin.Delete("/auctions/:id", h.deleteAuction)
	admin.Get("/users", h.listUsers)
	admin.Delete("/users/:id", h.deleteUser)
}

func (h *AuctionHandler) listAuctions(c *fiber.Ctx) error {
	states, err := h.auctionService.ListAuctions(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(states)
}

func (h *AuctionHandler) getAuction(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return writeError(c, err)
	}
	state, err := h.auctionService.GetAuctionState(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(state)
}

// getBidHistory answers from the refreshed snapshot, ?viewer=ID flags that user's bids.
func (h *AuctionHandler) getBidHistory(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return writeError(c, err)
	}
	var viewer int64
	if v := c.Query("viewer"); v != "" {
		if viewer, err = strconv.ParseInt(v, 10, 64); err != nil {
			return writeError(c, errInvalidRequest("viewer must be a user id"))
		}
	}
	history, err := h.auctionService.GetBidHistory(c.UserContext(), id, viewer)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newHistoryResponse(history))
}

func (h *AuctionHandler) placeBid(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return writeError(c, err)
	}
	var req PlaceBidRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errInvalidRequest("invalid bid body"))
	}

	result, err := h.auctionService.PlaceBid(c.UserContext(), application.PlaceBidDTO{
		AuctionID: id,
		UserID:    req.UserID,
		Amount:    req.Amount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// requireAdmin resolves the admin header and lets only admins through.
func (h *AuctionHandler) requireAdmin(c *fiber.Ctx) error {
	raw := c.Get(AdminHeader)
	if raw == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error: AdminHeader + " header is required",
			Code:  CodeUnauthorized,
		})
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error: AdminHeader + " must be a user id",
			Code:  CodeUnauthorized,
		})
	}

	u, err := h.admin.Authorize(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, application.ErrNotAdmin) || errors.Is(err, userdomain.ErrUserNotFound) {
			return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
				Error: "admin access required",
				Code:  CodeForbidden,
			})
		}
		return writeError(c, err)
	}
	c.Locals(adminUserKey, u)
	return c.Next()
}

func (h *AuctionHandler) createAuction(c *fiber.Ctx) error {
	var req CreateAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errInvalidRequest("invalid auction body"))
	}
	a, err := h.admin.CreateAuction(c.UserContext(), req.toDomain())
	if err != nil {
		return writeError(c, err)
	}
	state, err := h.auctionService.GetAuctionState(c.UserContext(), a.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *AuctionHandler) deleteAuction(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.admin.DeleteAuction(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuctionHandler) listUsers(c *fiber.Ctx) error {
	users, err := h.admin.ListUsers(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, newUserDTO(u))
	}
	return c.JSON(out)
}

func (h *AuctionHandler) deleteUser(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return writeError(c, err)
	}
	if admin, ok := c.Locals(adminUserKey).(*userdomain.User); ok && admin.ID == id {
		return writeError(c, errInvalidRequest("admins cannot delete themselves"))
	}
	if err := h.admin.DeleteUser(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type invalidRequestError struct{ msg string }

func (e *invalidRequestError) Error() string { return e.msg }

func errInvalidRequest(msg string) error { return &invalidRequestError{msg: msg} }

func idParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidRequest("id must be a positive integer")
	}
	return id, nil
}

// writeError maps err to its status and error body.
func writeError(c *fiber.Ctx, err error) error {
	status, code := statusOf(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var rej *domain.RejectionError
	if errors.As(err, &rej) {
		resp.Error = rej.Error()
		if !rej.CurrentBid.IsZero() {
			current := rej.CurrentBid
			resp.CurrentBid = &current
		}
		if !rej.MinimumBid.IsZero() {
			minimum := rej.MinimumBid
			resp.MinimumBid = &minimum
		}
	}

	if status >= fiber.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		// store details stay in the logs
		resp.Error = "service temporarily unavailable"
		if code == CodeInternal {
			resp.Error = "internal error"
		}
	}
	return c.Status(status).JSON(resp)
}

func statusOf(err error) (int, ErrorCode) {
	var invalid *invalidRequestError
	switch {
	case errors.As(err, &invalid):
		return fiber.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, domain.ErrAuctionEnded):
		return fiber.StatusConflict, CodeAuctionEnded
	case errors.Is(err, domain.ErrBidderNotRegistered):
		return fiber.StatusForbidden, CodeNotRegistered
	case errors.Is(err, domain.ErrBidTooLow):
		return fiber.StatusUnprocessableEntity, CodeBidTooLow
	case errors.Is(err, domain.ErrBidNotHighEnough):
		return fiber.StatusUnprocessableEntity, CodeBidNotHighEnough
	case errors.Is(err, domain.ErrAuctionNotFound),
		errors.Is(err, domain.ErrBidNotFound),
		errors.Is(err, userdomain.ErrUserNotFound):
		return fiber.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidAuction),
		errors.Is(err, domain.ErrInvalidBid),
		errors.Is(err, userdomain.ErrInvalidUser):
		return fiber.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, userdomain.ErrEmailTaken):
		return fiber.StatusConflict, CodeEmailTaken
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable, CodeUnavailable
	default:
		return fiber.StatusInternalServerError, CodeInternal
	}
}
