package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/iliyamo/slotswap/internal/model"
	"github.com/iliyamo/slotswap/internal/queue"
	"github.com/iliyamo/slotswap/internal/repository"
)

var errBoom = errors.New("boom")

// memStore is an in-memory stand-in for repository.Store.  WithinTx holds
// the store mutex for the whole callback and restores a snapshot when the
// callback fails, which gives the same all-or-nothing behaviour as a SQL
// transaction.
type memStore struct {
	mu     sync.Mutex
	users  map[uint64]model.UserSummary
	events map[uint64]model.Event
	swaps  map[uint64]model.SwapRequest
	nextID uint64

	// failSaveEventAt makes the n-th SaveEvent call (1-based, counted
	// across the store's lifetime) fail with errBoom.
	failSaveEventAt int
	saveEventCalls  int
	failSwapStatus  bool
	failReads       bool
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[uint64]model.UserSummary{},
		events: map[uint64]model.Event{},
		swaps:  map[uint64]model.SwapRequest{},
		nextID: 100,
	}
}

func (m *memStore) addUser(id uint64, name string) {
	m.users[id] = model.UserSummary{ID: id, Name: name, Email: name + "@example.com"}
}

func (m *memStore) addEvent(owner uint64, title string, start time.Time, status model.EventStatus) model.Event {
	m.nextID++
	e := model.Event{ID: m.nextID, UserID: owner, Title: title, StartTime: start, EndTime: start.Add(time.Hour), Status: status, Version: 1}
	m.events[e.ID] = e
	return e
}

func (m *memStore) event(id uint64) model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id]
}

func (m *memStore) swap(id uint64) model.SwapRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swaps[id]
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	events, swaps, nextID := maps.Clone(m.events), maps.Clone(m.swaps), m.nextID
	if err := fn(ctx, memTx{m}); err != nil {
		m.events, m.swaps, m.nextID = events, swaps, nextID
		return err
	}
	return nil
}

func (m *memStore) CreateEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads {
		return errBoom
	}
	m.nextID++
	e.ID, e.Version = m.nextID, 1
	m.events[e.ID] = *e
	return nil
}

func (m *memStore) EventsByOwner(_ context.Context, userID uint64) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads {
		return nil, errBoom
	}
	out := []model.Event{}
	for _, e := range m.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// SwappableEvents deliberately returns every event, unordered, so tests
// exercise the engine's own filtering and ordering.
func (m *memStore) SwappableEvents(_ context.Context, _ uint64) ([]model.SwappableSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads {
		return nil, errBoom
	}
	out := []model.SwappableSlot{}
	for _, e := range m.events {
		out = append(out, model.SwappableSlot{Event: e, Owner: m.users[e.UserID]})
	}
	return out, nil
}

func (m *memStore) IncomingSwaps(_ context.Context, userID uint64) ([]model.SwapDetail, error) {
	return m.details(func(s model.SwapRequest) bool { return s.ReceiverID == userID })
}

func (m *memStore) OutgoingSwaps(_ context.Context, userID uint64) ([]model.SwapDetail, error) {
	return m.details(func(s model.SwapRequest) bool { return s.RequesterID == userID })
}

func (m *memStore) details(keep func(model.SwapRequest) bool) ([]model.SwapDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads {
		return nil, errBoom
	}
	out := []model.SwapDetail{}
	for _, s := range m.swaps {
		if !keep(s) {
			continue
		}
		out = append(out, model.SwapDetail{
			ID:        s.ID,
			Requester: m.users[s.RequesterID],
			Receiver:  m.users[s.ReceiverID],
			MySlot:    m.events[s.MySlotID],
			TheirSlot: m.events[s.TheirSlotID],
			Status:    s.Status,
		})
	}
	return out, nil
}

type memTx struct{ m *memStore }

func (t memTx) LockEvent(_ context.Context, id uint64) (model.Event, error) {
	e, ok := t.m.events[id]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	return e, nil
}

func (t memTx) SaveEvent(_ context.Context, e *model.Event) error {
	t.m.saveEventCalls++
	if t.m.saveEventCalls == t.m.failSaveEventAt {
		return errBoom
	}
	cur, ok := t.m.events[e.ID]
	if !ok {
		return repository.ErrEventNotFound
	}
	if cur.Version != e.Version {
		return repository.ErrConflict
	}
	e.Version++
	t.m.events[e.ID] = *e
	return nil
}

func (t memTx) DeleteEvent(_ context.Context, id uint64) error {
	if _, ok := t.m.events[id]; !ok {
		return repository.ErrEventNotFound
	}
	delete(t.m.events, id)
	for sid, s := range t.m.swaps {
		if s.MySlotID == id || s.TheirSlotID == id {
			delete(t.m.swaps, sid)
		}
	}
	return nil
}

func (t memTx) CreateSwap(_ context.Context, s *model.SwapRequest) error {
	t.m.nextID++
	s.ID = t.m.nextID
	t.m.swaps[s.ID] = *s
	return nil
}

func (t memTx) LockSwap(_ context.Context, id uint64) (model.SwapRequest, error) {
	s, ok := t.m.swaps[id]
	if !ok {
		return model.SwapRequest{}, repository.ErrSwapNotFound
	}
	return s, nil
}

func (t memTx) SaveSwapStatus(_ context.Context, s *model.SwapRequest) error {
	if t.m.failSwapStatus {
		return errBoom
	}
	if _, ok := t.m.swaps[s.ID]; !ok {
		return repository.ErrSwapNotFound
	}
	t.m.swaps[s.ID] = *s
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.SwapEvent
	err    error
}

func (p *fakePublisher) PublishSwapEvent(_ context.Context, ev queue.SwapEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) types() []queue.SwapEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.SwapEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeRecorder struct{ counts map[model.SwapStatus]int }

func (r *fakeRecorder) SwapTransition(s model.SwapStatus) { r.counts[s]++ }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
