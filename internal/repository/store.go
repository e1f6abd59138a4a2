package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/slotswap/internal/model"
)

// Tx is the transaction-scoped view of the event and swap tables handed to
// Store.WithinTx callbacks.  Every Lock* call takes a row lock that is held
// until the surrounding transaction commits or rolls back.
type Tx interface {
	LockEvent(ctx context.Context, id uint64) (model.Event, error)
	SaveEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, id uint64) error
	CreateSwap(ctx context.Context, s *model.SwapRequest) error
	LockSwap(ctx context.Context, id uint64) (model.SwapRequest, error)
	SaveSwapStatus(ctx context.Context, s *model.SwapRequest) error
}

// Store groups the event and swap repositories behind a single DB handle so
// that callers can run multi-row mutations as one transaction.
type Store struct {
	db     *sql.DB
	Events *EventRepo
	Swaps  *SwapRepo
}

// NewStore builds a Store and its repositories on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, Events: NewEventRepo(db), Swaps: NewSwapRepo(db)}
}

// DB exposes the underlying sql.DB, e.g. for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// WithinTx runs fn inside a single transaction.  The transaction is
// committed only if fn returns nil; any error (or panic) rolls it back.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()
	if err := fn(ctx, &txStore{tx: sqlTx, events: s.Events, swaps: s.Swaps}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	return s.Events.Create(ctx, e)
}

func (s *Store) EventsByOwner(ctx context.Context, userID uint64) ([]model.Event, error) {
	return s.Events.ListByUser(ctx, userID)
}

func (s *Store) SwappableEvents(ctx context.Context, excludeUserID uint64) ([]model.SwappableSlot, error) {
	return s.Events.ListSwappable(ctx, excludeUserID)
}

func (s *Store) IncomingSwaps(ctx context.Context, userID uint64) ([]model.SwapDetail, error) {
	return s.Swaps.ListIncoming(ctx, userID)
}

func (s *Store) OutgoingSwaps(ctx context.Context, userID uint64) ([]model.SwapDetail, error) {
	return s.Swaps.ListOutgoing(ctx, userID)
}

type txStore struct {
	tx     *sql.Tx
	events *EventRepo
	swaps  *SwapRepo
}

func (t *txStore) LockEvent(ctx context.Context, id uint64) (model.Event, error) {
	return t.events.GetForUpdateTx(ctx, t.tx, id)
}

func (t *txStore) SaveEvent(ctx context.Context, e *model.Event) error {
	return t.events.UpdateTx(ctx, t.tx, e)
}

func (t *txStore) DeleteEvent(ctx context.Context, id uint64) error {
	return t.events.DeleteTx(ctx, t.tx, id)
}

func (t *txStore) CreateSwap(ctx context.Context, s *model.SwapRequest) error {
	return t.swaps.CreateTx(ctx, t.tx, s)
}

func (t *txStore) LockSwap(ctx context.Context, id uint64) (model.SwapRequest, error) {
	return t.swaps.GetForUpdateTx(ctx, t.tx, id)
}

func (t *txStore) SaveSwapStatus(ctx context.Context, s *model.SwapRequest) error {
	return t.swaps.UpdateStatusTx(ctx, t.tx, s)
}
