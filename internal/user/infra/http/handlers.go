package http

import (
	"errors"
	"strconv"
	"time"

	auctiondomain "github.com/cristianortiz/quickbid/internal/auction/domain"
	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/cristianortiz/quickbid/internal/user/application"
	"github.com/cristianortiz/quickbid/internal/user/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// RegisterRequest is the body of POST /users
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateProfileRequest is the body of PATCH /users/:id, absent fields are kept
type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type UserDTO struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
	IsAdmin      bool      `json:"is_admin"`
}

// UserBidDTO is an entry of the "my bids" list
type UserBidDTO struct {
	ID        int64           `json:"id"`
	AuctionID int64           `json:"auction_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// UserHandler serves registration and user queries
type UserHandler struct {
	registrar *application.Registrar
}

func NewUserHandler(registrar *application.Registrar) *UserHandler {
	return &UserHandler{registrar: registrar}
}

// Register mounts the routes on router
func (h *UserHandler) Register(router fiber.Router) {
	users := router.Group("/users")
	users.Post("/", h.register)
	users.Get("/:id", h.getUser)
	users.Patch("/:id", h.updateProfile)
	users.Get("/:id/bids", h.getUserBids)
}

func (h *UserHandler) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid registration body", Code: "invalid_request"})
	}
	u, err := h.registrar.Register(c.UserContext(), req.Name, req.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDTO(*u))
}

func (h *UserHandler) getUser(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "id must be a positive integer", Code: "invalid_request"})
	}
	u, err := h.registrar.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toDTO(*u))
}

func (h *UserHandler) updateProfile(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "id must be a positive integer", Code: "invalid_request"})
	}
	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid profile body", Code: "invalid_request"})
	}
	u, err := h.registrar.UpdateProfile(c.UserContext(), id, application.ProfileUpdate{Name: req.Name, Email: req.Email})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toDTO(*u))
}

func (h *UserHandler) getUserBids(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "id must be a positive integer", Code: "invalid_request"})
	}
	bids, err := h.registrar.BidsOf(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]UserBidDTO, 0, len(bids))
	for _, b := range bids {
		out = append(out, bidDTO(b))
	}
	return c.JSON(out)
}

func idParam(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

func toDTO(u domain.User) UserDTO {
	return UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, RegisteredAt: u.RegisteredAt, IsAdmin: u.IsAdmin}
}

func bidDTO(b auctiondomain.Bid) UserBidDTO {
	return UserBidDTO{ID: b.ID, AuctionID: b.AuctionID, Amount: b.Amount, Timestamp: b.Timestamp}
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidUser):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error(), Code: "invalid_request"})
	case errors.Is(err, domain.ErrEmailTaken):
		return c.Status(fiber.StatusConflict).JSON(errorResponse{Error: "email is already registered", Code: "email_taken"})
	case errors.Is(err, domain.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "user not found", Code: "not_found"})
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.Error("User request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: "service temporarily unavailable", Code: "store_unavailable"})
	default:
		log.Error("User request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error", Code: "internal_error"})
	}
}
