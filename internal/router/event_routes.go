package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotswap/internal/handler"
)

// RegisterEvents registers the owner-scoped event endpoints under /api/events.
func RegisterEvents(e *echo.Echo, h *handler.EventHandler, jwtSecret string, mw Middlewares) {
	g := e.Group("/api/events", mw.chain(jwtSecret)...)

	g.POST("", h.Create)
	g.GET("/my", h.ListMine)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
