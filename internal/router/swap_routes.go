package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotswap/internal/handler"
)

// RegisterSwaps registers the swap lifecycle endpoints under /api/swaps.
func RegisterSwaps(e *echo.Echo, h *handler.SwapHandler, jwtSecret string, mw Middlewares) {
	g := e.Group("/api/swaps", mw.chain(jwtSecret)...)

	g.POST("", h.Create)
	g.GET("/incoming", h.Incoming)
	g.GET("/outgoing", h.Outgoing)
	g.GET("/swappable", h.Swappable)
	g.PUT("/:id/accept", h.Accept)
	g.PUT("/:id/reject", h.Reject)
}
