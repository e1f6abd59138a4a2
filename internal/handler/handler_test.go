package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slotswap/internal/model"
	"github.com/iliyamo/slotswap/internal/service"
)

func newContext(method, target, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("user_id", userID)
	}
	return c, rec
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["message"].(string)
	return msg
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expose     bool
		wantStatus int
		wantMsg    string
	}{
		{"validation", fmt.Errorf("op: %w", &service.Error{Kind: service.ErrValidation, Msg: "Both slots are required"}), false, http.StatusBadRequest, "Both slots are required"},
		{"not found", &service.Error{Kind: service.ErrNotFound, Msg: "Swap not found"}, false, http.StatusNotFound, "Swap not found"},
		{"unauthorized", &service.Error{Kind: service.ErrUnauthorized, Msg: "Not authorized"}, false, http.StatusUnauthorized, "Not authorized"},
		{"invalid state", &service.Error{Kind: service.ErrInvalidState, Msg: "Swap already accepted"}, false, http.StatusConflict, "Swap already accepted"},
		{"internal hidden", errors.New("dial tcp: refused"), false, http.StatusInternalServerError, internalErrorMessage},
		{"internal exposed", errors.New("dial tcp: refused"), true, http.StatusInternalServerError, "dial tcp: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/", "", 0)
			require.NoError(t, writeError(c, tt.err, tt.expose))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeMessage(t, rec))
		})
	}
}

type stubEvents struct {
	created  service.EventInput
	patch    service.EventPatch
	deleted  uint64
	err      error
	calls    int
	listResp []model.Event
}

func (s *stubEvents) Create(_ context.Context, uid uint64, in service.EventInput) (model.Event, error) {
	s.calls++
	s.created = in
	return model.Event{ID: 7, UserID: uid, Title: in.Title, StartTime: in.StartTime, EndTime: in.EndTime, Status: model.EventBusy}, s.err
}

func (s *stubEvents) ListMine(context.Context, uint64) ([]model.Event, error) {
	s.calls++
	return s.listResp, s.err
}

func (s *stubEvents) Update(_ context.Context, uid, id uint64, p service.EventPatch) (model.Event, error) {
	s.calls++
	s.patch = p
	return model.Event{ID: id, UserID: uid}, s.err
}

func (s *stubEvents) Delete(_ context.Context, _, id uint64) error {
	s.calls++
	s.deleted = id
	return s.err
}

func TestEventHandler_Create(t *testing.T) {
	svc := &stubEvents{}
	h := NewEventHandler(svc, false)
	c, rec := newContext(http.MethodPost, "/api/events",
		`{"title":"Standup","startTime":"2026-03-02T09:00:00Z","endTime":"2026-03-02T09:30:00Z","status":"SWAPPABLE"}`, 1)

	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Standup", svc.created.Title)
	assert.Equal(t, model.EventSwappable, svc.created.Status)
	assert.Equal(t, 30*time.Minute, svc.created.EndTime.Sub(svc.created.StartTime))
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, float64(7), got["id"])
	assert.Equal(t, float64(1), got["user"])
	assert.Equal(t, "BUSY", got["status"])
	assert.NotContains(t, got, "version")
}

func TestEventHandler_CreateRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing title", `{"startTime":"2026-03-02T09:00:00Z","endTime":"2026-03-02T10:00:00Z"}`, "All fields are required"},
		{"missing end", `{"title":"x","startTime":"2026-03-02T09:00:00Z"}`, "All fields are required"},
		{"bad status", `{"title":"x","startTime":"2026-03-02T09:00:00Z","endTime":"2026-03-02T10:00:00Z","status":"SWAP_PENDING"}`, "status must be BUSY or SWAPPABLE"},
		{"malformed", `{"title":`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubEvents{}
			c, rec := newContext(http.MethodPost, "/api/events", tt.body, 1)

			require.NoError(t, NewEventHandler(svc, false).Create(c))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.msg, decodeMessage(t, rec))
			assert.Zero(t, svc.calls)
		})
	}
}

func TestEventHandler_RequiresUser(t *testing.T) {
	svc := &stubEvents{}
	c, rec := newContext(http.MethodGet, "/api/events/my", "", 0)

	require.NoError(t, NewEventHandler(svc, false).ListMine(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestEventHandler_ListMineEmpty(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/events/my", "", 1)

	require.NoError(t, NewEventHandler(&stubEvents{listResp: []model.Event{}}, false).ListMine(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestEventHandler_Update(t *testing.T) {
	svc := &stubEvents{}
	c, rec := newContext(http.MethodPut, "/api/events/5", `{"status":"SWAPPABLE"}`, 1)

	require.NoError(t, NewEventHandler(svc, false).Update(withID(c, "5")))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.patch.Status)
	assert.Equal(t, model.EventSwappable, *svc.patch.Status)
	assert.Nil(t, svc.patch.Title)
}

func TestEventHandler_StatusAnyCase(t *testing.T) {
	svc := &stubEvents{}
	h := NewEventHandler(svc, false)

	c, rec := newContext(http.MethodPost, "/api/events",
		`{"title":"Standup","startTime":"2026-03-02T09:00:00Z","endTime":"2026-03-02T09:30:00Z","status":" swappable"}`, 1)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.EventSwappable, svc.created.Status)

	c, rec = newContext(http.MethodPut, "/api/events/5", `{"status":"Busy"}`, 1)
	require.NoError(t, h.Update(withID(c, "5")))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.patch.Status)
	assert.Equal(t, model.EventBusy, *svc.patch.Status)
}

func TestEventHandler_UpdateErrors(t *testing.T) {
	t.Run("bad id", func(t *testing.T) {
		svc := &stubEvents{}
		c, rec := newContext(http.MethodPut, "/api/events/abc", `{}`, 1)
		require.NoError(t, NewEventHandler(svc, false).Update(withID(c, "abc")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid id", decodeMessage(t, rec))
		assert.Zero(t, svc.calls)
	})
	t.Run("pending", func(t *testing.T) {
		svc := &stubEvents{err: fmt.Errorf("service.Events.Update: %w", &service.Error{Kind: service.ErrInvalidState, Msg: "Event has a pending swap"})}
		c, rec := newContext(http.MethodPut, "/api/events/5", `{"status":"BUSY"}`, 1)
		require.NoError(t, NewEventHandler(svc, false).Update(withID(c, "5")))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Event has a pending swap", decodeMessage(t, rec))
	})
}

func TestEventHandler_Delete(t *testing.T) {
	svc := &stubEvents{}
	c, rec := newContext(http.MethodDelete, "/api/events/9", "", 1)

	require.NoError(t, NewEventHandler(svc, false).Delete(withID(c, "9")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Event deleted successfully", decodeMessage(t, rec))
	assert.Equal(t, uint64(9), svc.deleted)
}

type stubSwaps struct {
	mine, theirs uint64
	swapID       uint64
	actor        uint64
	err          error
	calls        int
}

func (s *stubSwaps) Create(_ context.Context, requester, mine, theirs uint64) (model.SwapRequest, error) {
	s.calls++
	s.mine, s.theirs = mine, theirs
	return model.SwapRequest{ID: 11, RequesterID: requester, MySlotID: mine, TheirSlotID: theirs, Status: model.SwapPending}, s.err
}

func (s *stubSwaps) Accept(_ context.Context, id, actor uint64) (model.SwapRequest, error) {
	s.calls++
	s.swapID, s.actor = id, actor
	return model.SwapRequest{ID: id, Status: model.SwapAccepted}, s.err
}

func (s *stubSwaps) Reject(_ context.Context, id, actor uint64) (model.SwapRequest, error) {
	s.calls++
	s.swapID, s.actor = id, actor
	return model.SwapRequest{ID: id, Status: model.SwapRejected}, s.err
}

func (s *stubSwaps) Incoming(context.Context, uint64) ([]model.SwapDetail, error) {
	return []model.SwapDetail{{ID: 1}}, s.err
}

func (s *stubSwaps) Outgoing(context.Context, uint64) ([]model.SwapDetail, error) {
	return []model.SwapDetail{}, s.err
}

func (s *stubSwaps) Swappable(context.Context, uint64) ([]model.SwappableSlot, error) {
	return []model.SwappableSlot{{Event: model.Event{ID: 3}, Owner: model.UserSummary{ID: 2, Name: "bob"}}}, s.err
}

func TestSwapHandler_Create(t *testing.T) {
	svc := &stubSwaps{}
	c, rec := newContext(http.MethodPost, "/api/swaps", `{"mySlot":1,"theirSlot":2}`, 5)

	require.NoError(t, NewSwapHandler(svc, false).Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(1), svc.mine)
	assert.Equal(t, uint64(2), svc.theirs)
	assert.JSONEq(t, `"PENDING"`, mustField(t, rec, "status"))
}

func TestSwapHandler_CreateMissingSlot(t *testing.T) {
	svc := &stubSwaps{}
	c, rec := newContext(http.MethodPost, "/api/swaps", `{"mySlot":1}`, 5)

	require.NoError(t, NewSwapHandler(svc, false).Create(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Both slots are required", decodeMessage(t, rec))
	assert.Zero(t, svc.calls)
}

func TestSwapHandler_AcceptReject(t *testing.T) {
	svc := &stubSwaps{}
	h := NewSwapHandler(svc, false)

	c, rec := newContext(http.MethodPut, "/api/swaps/4/accept", "", 2)
	require.NoError(t, h.Accept(withID(c, "4")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Swap accepted", decodeMessage(t, rec))
	assert.Equal(t, uint64(4), svc.swapID)
	assert.Equal(t, uint64(2), svc.actor)

	c, rec = newContext(http.MethodPut, "/api/swaps/4/reject", "", 2)
	require.NoError(t, h.Reject(withID(c, "4")))
	assert.Equal(t, "Swap rejected", decodeMessage(t, rec))
	var body struct {
		Swap model.SwapRequest `json:"swap"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.SwapRejected, body.Swap.Status)
}

func TestSwapHandler_AcceptErrors(t *testing.T) {
	svc := &stubSwaps{err: fmt.Errorf("service.Swaps.Accept: %w", &service.Error{Kind: service.ErrUnauthorized, Msg: "Not authorized"})}
	c, rec := newContext(http.MethodPut, "/api/swaps/4/accept", "", 3)

	require.NoError(t, NewSwapHandler(svc, false).Accept(withID(c, "4")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized", decodeMessage(t, rec))
}

func TestSwapHandler_Lists(t *testing.T) {
	h := NewSwapHandler(&stubSwaps{}, false)

	c, rec := newContext(http.MethodGet, "/api/swaps/outgoing", "", 1)
	require.NoError(t, h.Outgoing(c))
	assert.JSONEq(t, `[]`, rec.Body.String())

	c, rec = newContext(http.MethodGet, "/api/swaps/swappable", "", 1)
	require.NoError(t, h.Swappable(c))
	var slots []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(t, slots, 1)
	assert.Equal(t, float64(3), slots[0]["id"])
	assert.Equal(t, "bob", slots[0]["owner"].(map[string]any)["name"])
}

func TestSwapHandler_InternalError(t *testing.T) {
	svc := &stubSwaps{err: errors.New("db gone")}

	c, rec := newContext(http.MethodGet, "/api/swaps/incoming", "", 1)
	require.NoError(t, NewSwapHandler(svc, false).Incoming(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, internalErrorMessage, decodeMessage(t, rec))

	c, rec = newContext(http.MethodGet, "/api/swaps/incoming", "", 1)
	require.NoError(t, NewSwapHandler(svc, true).Incoming(c))
	assert.Equal(t, "db gone", decodeMessage(t, rec))
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/healthz", "", 0)
	require.NoError(t, Health(pinger{})(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(http.MethodGet, "/healthz", "", 0)
	require.NoError(t, Health(pinger{err: errors.New("down")})(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func mustField(t *testing.T, rec *httptest.ResponseRecorder, key string) string {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return string(body[key])
}
