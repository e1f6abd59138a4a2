package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slotswap/internal/config"
	"github.com/iliyamo/slotswap/internal/model"
	"github.com/iliyamo/slotswap/internal/repository"
	"github.com/iliyamo/slotswap/internal/utils"
)

type memUsers struct {
	byID map[uint64]model.User
}

func (m *memUsers) Create(_ context.Context, name, email, password string, cost int) (uint64, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id := uint64(len(m.byID) + 1)
	m.byID[id] = model.User{ID: id, Name: name, Email: email, PasswordHash: hash}
	return id, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range m.byID {
		if u.Email == repository.NormalizeEmail(email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

type memTokens struct {
	live map[string]uint64
}

func (m *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	m.live[hash] = userID
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	id, ok := m.live[hash]
	if !ok {
		return 0, repository.ErrTokenInvalid
	}
	return id, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	if _, ok := m.live[hash]; !ok {
		return repository.ErrTokenInvalid
	}
	delete(m.live, hash)
	return nil
}

// staleTokens answers ValidateRefresh from a snapshot taken before any
// revoke, the view a second request has when it validates concurrently
// with the first.
type staleTokens struct {
	*memTokens
	seen map[string]uint64
}

func (s *staleTokens) StoreRefresh(ctx context.Context, userID uint64, hash string, exp time.Time) error {
	s.seen[hash] = userID
	return s.memTokens.StoreRefresh(ctx, userID, hash, exp)
}

func (s *staleTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	id, ok := s.seen[hash]
	if !ok {
		return 0, repository.ErrTokenInvalid
	}
	return id, nil
}

func newAuth(t *testing.T) (*AuthHandler, *memUsers, *memTokens) {
	t.Helper()
	users := &memUsers{byID: map[uint64]model.User{}}
	tokens := &memTokens{live: map[string]uint64{}}
	cfg := config.Config{Env: config.EnvLocal, JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthHandler(log, cfg, users, tokens), users, tokens
}

func decodeAuth(t *testing.T, body []byte) authResp {
	t.Helper()
	var resp authResp
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	h, _, tokens := newAuth(t)

	c, rec := newContext(http.MethodPost, "/api/auth/register", `{"name":"Alice","email":" Alice@Example.com ","password":"secret1"}`, 0)
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := decodeAuth(t, rec.Body.Bytes())
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, "Alice", reg.User.Name)
	assert.Len(t, tokens.live, 1)

	uid, err := utils.ParseAccessToken("test-secret", reg.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, uid)

	c, rec = newContext(http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret1"}`, 0)
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reg.User.ID, decodeAuth(t, rec.Body.Bytes()).User.ID)

	c, rec = newContext(http.MethodGet, "/api/auth/me", "", reg.User.ID)
	require.NoError(t, h.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"Alice","email":"alice@example.com"}`, rec.Body.String())
}

func TestAuth_RegisterRejected(t *testing.T) {
	h, _, _ := newAuth(t)
	body := `{"name":"Alice","email":"a@example.com","password":"secret1"}`
	c, _ := newContext(http.MethodPost, "/api/auth/register", body, 0)
	require.NoError(t, h.Register(c))

	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"duplicate", body, http.StatusConflict, "email already exists"},
		{"missing name", `{"email":"b@example.com","password":"secret1"}`, http.StatusBadRequest, "name, email and password are required"},
		{"bad email", `{"name":"B","email":"nope","password":"secret1"}`, http.StatusBadRequest, "email is invalid"},
		{"short password", `{"name":"B","email":"b@example.com","password":"123"}`, http.StatusBadRequest, "password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodPost, "/api/auth/register", tt.body, 0)
			require.NoError(t, h.Register(c))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, decodeMessage(t, rec))
		})
	}
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	h, _, _ := newAuth(t)
	c, _ := newContext(http.MethodPost, "/api/auth/register", `{"name":"A","email":"a@example.com","password":"secret1"}`, 0)
	require.NoError(t, h.Register(c))

	for _, body := range []string{
		`{"email":"a@example.com","password":"wrong!!"}`,
		`{"email":"nobody@example.com","password":"secret1"}`,
	} {
		c, rec := newContext(http.MethodPost, "/api/auth/login", body, 0)
		require.NoError(t, h.Login(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid credentials", decodeMessage(t, rec))
	}
}

func TestAuth_RefreshRotatesAndLogout(t *testing.T) {
	h, _, tokens := newAuth(t)
	c, rec := newContext(http.MethodPost, "/api/auth/register", `{"name":"A","email":"a@example.com","password":"secret1"}`, 0)
	require.NoError(t, h.Register(c))
	first := decodeAuth(t, rec.Body.Bytes()).Refresh.Token

	c, rec = newContext(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+first+`"}`, 0)
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeAuth(t, rec.Body.Bytes()).Refresh.Token
	assert.NotEqual(t, first, second)
	assert.Len(t, tokens.live, 1)

	c, rec = newContext(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+first+`"}`, 0)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newContext(http.MethodPost, "/api/auth/logout", `{"refreshToken":"`+second+`"}`, 0)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, tokens.live)

	c, rec = newContext(http.MethodPost, "/api/auth/logout", `{}`, 0)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "refreshToken is required", decodeMessage(t, rec))
}

func TestAuth_RefreshConsumedOnce(t *testing.T) {
	h, _, mem := newAuth(t)
	tokens := &staleTokens{memTokens: mem, seen: map[string]uint64{}}
	h.Tokens = tokens

	c, rec := newContext(http.MethodPost, "/api/auth/register", `{"name":"A","email":"a@example.com","password":"secret1"}`, 0)
	require.NoError(t, h.Register(c))
	raw := decodeAuth(t, rec.Body.Bytes()).Refresh.Token

	c, rec = newContext(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+raw+`"}`, 0)
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// Validation still passes, but the token was already consumed.
	c, rec = newContext(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+raw+`"}`, 0)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid refresh token", decodeMessage(t, rec))
	assert.Len(t, mem.live, 1)
}

func TestAuth_LogoutUnknownToken(t *testing.T) {
	h, _, _ := newAuth(t)
	c, rec := newContext(http.MethodPost, "/api/auth/logout", `{"refreshToken":"deadbeef"}`, 0)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid refresh token", decodeMessage(t, rec))
}
