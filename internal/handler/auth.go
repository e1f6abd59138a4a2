package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotswap/internal/config"
	"github.com/iliyamo/slotswap/internal/lib/logger/sl"
	"github.com/iliyamo/slotswap/internal/model"
	"github.com/iliyamo/slotswap/internal/repository"
	"github.com/iliyamo/slotswap/internal/utils"
)

const authTimeout = 5 * time.Second

// UserStore is the user persistence AuthHandler needs.
type UserStore interface {
	Create(ctx context.Context, name, email, password string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	log    *slog.Logger
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewAuthHandler(log *slog.Logger, cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	return &AuthHandler{log: log, Cfg: cfg, Users: u, Tokens: t}
}

type registerReq struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    model.UserSummary `json:"user"`
	Access  tokenPart         `json:"access"`
	Refresh tokenPart         `json:"refresh"`
}

var (
	registerMessages = map[string]string{
		"required": "name, email and password are required",
		"email":    "email is invalid",
		"min":      "password must be at least 6 characters",
	}
	loginMessages   = map[string]string{"required": "email and password are required"}
	refreshMessages = map[string]string{"required": "refreshToken is required"}
)

func (h *AuthHandler) internal(c echo.Context, op string, err error) error {
	h.log.Error("auth request failed", slog.String("op", op), sl.Err(err))
	return writeError(c, err, !h.Cfg.IsProduction())
}

// Register creates a user and returns a token pair immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	const op = "handler.AuthHandler.Register"
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, errBadBody, false)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = repository.NormalizeEmail(req.Email)
	if err := c.Validate(&req); err != nil {
		return writeError(c, invalid(err, registerMessages), false)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, h.Cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return message(c, http.StatusConflict, "email already exists")
	}
	if err != nil {
		return h.internal(c, op, err)
	}
	h.log.Info("user registered", slog.Uint64("user_id", uid))
	return h.issue(c, ctx, op, http.StatusCreated, model.UserSummary{ID: uid, Name: req.Name, Email: req.Email})
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	const op = "handler.AuthHandler.Login"
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, errBadBody, false)
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, invalid(err, loginMessages), false)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return message(c, http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return h.internal(c, op, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return message(c, http.StatusUnauthorized, "invalid credentials")
	}
	return h.issue(c, ctx, op, http.StatusOK, u.Summary())
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair issued.  Only the caller whose revoke consumed the token gets a pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	const op = "handler.AuthHandler.Refresh"
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, errBadBody, false)
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if err := c.Validate(&req); err != nil {
		return writeError(c, invalid(err, refreshMessages), false)
	}
	hash := utils.HashRefreshRaw(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return message(c, http.StatusUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return h.internal(c, op, err)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			h.log.Warn("refresh token reused", slog.String("op", op), slog.Uint64("user_id", userID))
			return message(c, http.StatusUnauthorized, "invalid refresh token")
		}
		return h.internal(c, op, err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return message(c, http.StatusUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return h.internal(c, op, err)
	}
	return h.issue(c, ctx, op, http.StatusOK, u.Summary())
}

// Logout revokes the given refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	const op = "handler.AuthHandler.Logout"
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, errBadBody, false)
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if err := c.Validate(&req); err != nil {
		return writeError(c, invalid(err, refreshMessages), false)
	}
	hash := utils.HashRefreshRaw(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return message(c, http.StatusUnauthorized, "invalid refresh token")
		}
		return h.internal(c, op, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the public identity of the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	const op = "handler.AuthHandler.Me"
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, err, false)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return writeError(c, errNoUser, false)
	}
	if err != nil {
		return h.internal(c, op, err)
	}
	return c.JSON(http.StatusOK, u.Summary())
}

func (h *AuthHandler) issue(c echo.Context, ctx context.Context, op string, status int, user model.UserSummary) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, user.ID, h.Cfg.AccessTTLMin)
	if err != nil {
		return h.internal(c, op, err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return h.internal(c, op, err)
	}
	if err := h.Tokens.StoreRefresh(ctx, user.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return h.internal(c, op, err)
	}
	return c.JSON(status, authResp{
		User:    user,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}
