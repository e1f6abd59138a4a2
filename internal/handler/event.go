package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotswap/internal/model"
	"github.com/iliyamo/slotswap/internal/service"
)

// EventService is the event lifecycle used by EventHandler.
type EventService interface {
	Create(ctx context.Context, userID uint64, in service.EventInput) (model.Event, error)
	ListMine(ctx context.Context, userID uint64) ([]model.Event, error)
	Update(ctx context.Context, userID, eventID uint64, patch service.EventPatch) (model.Event, error)
	Delete(ctx context.Context, userID, eventID uint64) error
}

// EventHandler serves /api/events.
type EventHandler struct {
	svc    EventService
	expose bool
}

// NewEventHandler wires the handler.  exposeErrors controls whether internal
// error text reaches clients.
func NewEventHandler(svc EventService, exposeErrors bool) *EventHandler {
	return &EventHandler{svc: svc, expose: exposeErrors}
}

type createEventReq struct {
	Title     string    `json:"title" validate:"required"`
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
	Status    string    `json:"status" validate:"omitempty,oneof=BUSY SWAPPABLE"`
}

type updateEventReq struct {
	Title     *string    `json:"title"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Status    *string    `json:"status" validate:"omitempty,oneof=BUSY SWAPPABLE"`
}

var eventMessages = map[string]string{
	"required": "All fields are required",
	"oneof":    "status must be BUSY or SWAPPABLE",
}

// Create handles POST /api/events.
func (h *EventHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, errBadBody, h.expose)
	}
	req.Status = normalizeStatus(req.Status)
	if err := c.Validate(&req); err != nil {
		return writeError(c, invalid(err, eventMessages), h.expose)
	}
	e, err := h.svc.Create(c.Request().Context(), uid, service.EventInput{
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    model.EventStatus(req.Status),
	})
	if err != nil {
		return writeError(c, err, h.expose)
	}
	return c.JSON(http.StatusCreated, e)
}

// ListMine handles GET /api/events/my.
func (h *EventHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	events, err := h.svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	return c.JSON(http.StatusOK, events)
}

// Update handles PUT /api/events/:id.  Absent fields are left unchanged;
// ownership cannot be changed here.
func (h *EventHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	var req updateEventReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, errBadBody, h.expose)
	}
	if req.Status != nil {
		st := normalizeStatus(*req.Status)
		req.Status = &st
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, invalid(err, eventMessages), h.expose)
	}
	patch := service.EventPatch{Title: req.Title, StartTime: req.StartTime, EndTime: req.EndTime}
	if req.Status != nil {
		st := model.EventStatus(*req.Status)
		patch.Status = &st
	}
	e, err := h.svc.Update(c.Request().Context(), uid, id, patch)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	return c.JSON(http.StatusOK, e)
}

// Delete handles DELETE /api/events/:id.
func (h *EventHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	id, err := pathID(c)
	if err != nil {
		return writeError(c, err, h.expose)
	}
	if err := h.svc.Delete(c.Request().Context(), uid, id); err != nil {
		return writeError(c, err, h.expose)
	}
	return message(c, http.StatusOK, "Event deleted successfully")
}

// normalizeStatus accepts statuses in any case, as model.ParseEventStatus does.
func normalizeStatus(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
