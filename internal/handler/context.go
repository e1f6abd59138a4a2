package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotswap/internal/service"
)

var errNoUser = &service.Error{Kind: service.ErrUnauthorized, Msg: "Not authorized"}

// getUserID extracts the user_id placed in the context by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		if t != 0 {
			return t, nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
			return n, nil
		}
	}
	return 0, errNoUser
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, &service.Error{Kind: service.ErrValidation, Msg: "invalid id"}
	}
	return id, nil
}
