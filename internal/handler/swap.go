package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotswap/internal/model"
)

// SwapService is the swap engine used by SwapHandler.
type SwapService interface {
	Create(ctx context.Context, requesterID, mySlotID, theirSlotID uint64) (model.SwapRequest, error)
	Accept(ctx context.Context, swapID, actorID uint64) (model.SwapRequest, error)
	Reject(ctx context.Context, swapID, actorID uint64) (model.SwapRequest, error)
	Incoming(ctx context.Context, userID uint64) ([]model.SwapDetail, error)
	Outgoing(ctx context.Context, userID uint64) ([]model.SwapDetail, error)
	Swappable(ctx context.Context, userID uint64) ([]model.SwappableSlot, error)
}

// SwapHandler serves /api/swaps.
type SwapHandler struct {
	svc    SwapService
	expose bool
}

func NewSwapHandler(svc SwapService, exposeErrors bool) *SwapHandler {
	return &SwapHandler{svc: svc, expose: exposeErrors}
}

type createSwapReq struct {
	MySlot    uint64 `json:"mySlot" validate:"required"`
	TheirSlot uint64 `json:"theirSlot" validate:"required"`
}

var swapMessages = map[string]string{"required": "Both slots are required"}

// Create handles POST /api/swaps.
func (h *SwapHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	var req createSwapReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, errBadBody, h.expose)
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, invalid(err, swapMessages), h.expose)
	}
	swap, err := h.svc.Create(c.Request().Context(), uid, req.MySlot, req.TheirSlot)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	return c.JSON(http.StatusCreated, swap)
}

// Accept handles PUT /api/swaps/:id/accept.
func (h *SwapHandler) Accept(c echo.Context) error {
	return h.resolve(c, h.svc.Accept, "Swap accepted")
}

// Reject handles PUT /api/swaps/:id/reject.
func (h *SwapHandler) Reject(c echo.Context) error {
	return h.resolve(c, h.svc.Reject, "Swap rejected")
}

func (h *SwapHandler) resolve(c echo.Context, fn func(context.Context, uint64, uint64) (model.SwapRequest, error), done string) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	swap, err := fn(c.Request().Context(), id, uid)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": done, "swap": swap})
}

// Incoming handles GET /api/swaps/incoming.
func (h *SwapHandler) Incoming(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	list, err := h.svc.Incoming(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	return c.JSON(http.StatusOK, list)
}

// Outgoing handles GET /api/swaps/outgoing.
func (h *SwapHandler) Outgoing(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	list, err := h.svc.Outgoing(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	return c.JSON(http.StatusOK, list)
}

// Swappable handles GET /api/swaps/swappable.
func (h *SwapHandler) Swappable(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	list, err := h.svc.Swappable(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	return c.JSON(http.StatusOK, list)
}
