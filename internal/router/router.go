package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotswap/internal/handler"
	"github.com/iliyamo/slotswap/internal/middleware"
)

// Middlewares are the per-request stages applied to the authenticated API
// groups after JWT validation.  Nil entries are skipped.
type Middlewares struct {
	RateLimit  echo.MiddlewareFunc
	Cache      echo.MiddlewareFunc
	Invalidate echo.MiddlewareFunc
}

func (m Middlewares) chain(jwtSecret string) []echo.MiddlewareFunc {
	out := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret)}
	for _, mw := range []echo.MiddlewareFunc{m.RateLimit, m.Invalidate, m.Cache} {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}

// RegisterRoutes registers the unauthenticated operational endpoints.
// metrics may be nil to leave /metrics unmounted.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, metrics http.Handler) {
	e.GET("/healthz", handler.Health(db))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers /api/auth.  Token exchange endpoints are public but
// rate limited; /me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	if rateLimit != nil {
		g.Use(rateLimit)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}
