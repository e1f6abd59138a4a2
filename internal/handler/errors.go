package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotswap/internal/service"
)

const internalErrorMessage = "internal server error"

// statusFor maps service error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"message": ...}.  Client errors carry their own
// message; internal errors show their text only when expose is set.
func writeError(c echo.Context, err error, expose bool) error {
	status := statusFor(err)
	msg := internalErrorMessage
	var se *service.Error
	switch {
	case errors.As(err, &se):
		msg = se.Msg
	case expose:
		msg = err.Error()
	}
	return c.JSON(status, echo.Map{"message": msg})
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"message": msg})
}
