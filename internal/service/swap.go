package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/slotswap/internal/lib/logger/sl"
	"github.com/iliyamo/slotswap/internal/model"
	"github.com/iliyamo/slotswap/internal/queue"
	"github.com/iliyamo/slotswap/internal/repository"
)

// publishTimeout bounds the best-effort notification sent after a commit.
const publishTimeout = 5 * time.Second

// SwapStore is the persistence the swap engine needs.
type SwapStore interface {
	SwappableEvents(ctx context.Context, excludeUserID uint64) ([]model.SwappableSlot, error)
	IncomingSwaps(ctx context.Context, userID uint64) ([]model.SwapDetail, error)
	OutgoingSwaps(ctx context.Context, userID uint64) ([]model.SwapDetail, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

// EventPublisher delivers swap lifecycle notifications.
type EventPublisher interface {
	PublishSwapEvent(ctx context.Context, ev queue.SwapEvent) error
}

// TransitionRecorder counts swap status transitions.
type TransitionRecorder interface {
	SwapTransition(status model.SwapStatus)
}

// Swaps is the swap lifecycle engine.  Every mutation locks the swap row
// and both event rows inside one transaction, so the swap record and the
// two events change together or not at all.
type Swaps struct {
	log       *slog.Logger
	store     SwapStore
	publisher EventPublisher
	recorder  TransitionRecorder
	now       func() time.Time
}

// NewSwaps returns the engine.  publisher and recorder may be nil.
func NewSwaps(log *slog.Logger, store SwapStore, publisher EventPublisher, recorder TransitionRecorder) *Swaps {
	return &Swaps{log: log, store: store, publisher: publisher, recorder: recorder, now: time.Now}
}

// Create proposes trading requester's mySlotID for theirSlotID.  The
// receiver is whoever owns theirSlotID right now.  Both events move to
// SWAP_PENDING.
func (s *Swaps) Create(ctx context.Context, requesterID, mySlotID, theirSlotID uint64) (model.SwapRequest, error) {
	const op = "service.Swaps.Create"
	log := s.log.With(slog.String("op", op), slog.Uint64("user_id", requesterID))

	if mySlotID == 0 || theirSlotID == 0 {
		return model.SwapRequest{}, wrap(op, fail(ErrValidation, "Both slots are required"))
	}
	if mySlotID == theirSlotID {
		return model.SwapRequest{}, wrap(op, fail(ErrValidation, "Cannot swap a slot with itself"))
	}

	var swap model.SwapRequest
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		mine, theirs, err := lockPair(ctx, tx, mySlotID, theirSlotID)
		if err != nil {
			return err
		}
		if mine.UserID != requesterID {
			return fail(ErrUnauthorized, "Not authorized")
		}
		if theirs.UserID == requesterID {
			return fail(ErrValidation, "Cannot request a slot you already own")
		}
		if mine.Status == model.EventSwapPending || theirs.Status == model.EventSwapPending {
			return fail(ErrInvalidState, "Slot already has a pending swap")
		}

		swap = model.SwapRequest{
			RequesterID: requesterID,
			ReceiverID:  theirs.UserID,
			MySlotID:    mine.ID,
			TheirSlotID: theirs.ID,
			Status:      model.SwapPending,
		}
		if err := tx.CreateSwap(ctx, &swap); err != nil {
			return err
		}
		mine.Status = model.EventSwapPending
		theirs.Status = model.EventSwapPending
		if err := tx.SaveEvent(ctx, &mine); err != nil {
			return err
		}
		return tx.SaveEvent(ctx, &theirs)
	})
	if err != nil {
		s.logFailure(log, err)
		return model.SwapRequest{}, wrap(op, translate(err))
	}

	log.Info("swap requested", slog.Uint64("swap_id", swap.ID), slog.Uint64("receiver_id", swap.ReceiverID))
	s.afterCommit(ctx, log, swap)
	return swap, nil
}

// Accept completes a pending swap: the two events exchange owners and both
// return to BUSY.  Only the receiver may accept.
func (s *Swaps) Accept(ctx context.Context, swapID, actorID uint64) (model.SwapRequest, error) {
	return s.resolve(ctx, "service.Swaps.Accept", swapID, actorID, model.SwapAccepted)
}

// Reject declines a pending swap: both events return to BUSY and keep their
// owners.  Only the receiver may reject.
func (s *Swaps) Reject(ctx context.Context, swapID, actorID uint64) (model.SwapRequest, error) {
	return s.resolve(ctx, "service.Swaps.Reject", swapID, actorID, model.SwapRejected)
}

func (s *Swaps) resolve(ctx context.Context, op string, swapID, actorID uint64, target model.SwapStatus) (model.SwapRequest, error) {
	log := s.log.With(slog.String("op", op), slog.Uint64("user_id", actorID), slog.Uint64("swap_id", swapID))

	var swap model.SwapRequest
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if swap, err = tx.LockSwap(ctx, swapID); err != nil {
			return err
		}
		if swap.ReceiverID != actorID {
			return fail(ErrUnauthorized, "Not authorized")
		}
		if swap.Status.Terminal() {
			return fail(ErrInvalidState, fmt.Sprintf("Swap already %s", strings.ToLower(string(swap.Status))))
		}

		// Owners are read here, under lock, not from anything captured when
		// the request was created.
		mine, theirs, err := lockPair(ctx, tx, swap.MySlotID, swap.TheirSlotID)
		if err != nil {
			return err
		}
		if target == model.SwapAccepted {
			mine.UserID, theirs.UserID = theirs.UserID, mine.UserID
		}
		mine.Status = model.EventBusy
		theirs.Status = model.EventBusy
		if err := tx.SaveEvent(ctx, &mine); err != nil {
			return err
		}
		if err := tx.SaveEvent(ctx, &theirs); err != nil {
			return err
		}
		swap.Status = target
		return tx.SaveSwapStatus(ctx, &swap)
	})
	if err != nil {
		s.logFailure(log, err)
		return model.SwapRequest{}, wrap(op, translate(err))
	}

	log.Info("swap resolved", slog.String("status", string(swap.Status)))
	s.afterCommit(ctx, log, swap)
	return swap, nil
}

// Incoming lists swap requests addressed to userID.
func (s *Swaps) Incoming(ctx context.Context, userID uint64) ([]model.SwapDetail, error) {
	const op = "service.Swaps.Incoming"
	details, err := s.store.IncomingSwaps(ctx, userID)
	if err != nil {
		s.log.Error("list incoming swaps failed", slog.String("op", op), sl.Err(err))
		return nil, wrap(op, err)
	}
	return details, nil
}

// Outgoing lists swap requests made by userID.
func (s *Swaps) Outgoing(ctx context.Context, userID uint64) ([]model.SwapDetail, error) {
	const op = "service.Swaps.Outgoing"
	details, err := s.store.OutgoingSwaps(ctx, userID)
	if err != nil {
		s.log.Error("list outgoing swaps failed", slog.String("op", op), sl.Err(err))
		return nil, wrap(op, err)
	}
	return details, nil
}

// Swappable lists events other users offer for trade, earliest first.  It
// never returns an event owned by userID or one that is not SWAPPABLE,
// whatever the store hands back.
func (s *Swaps) Swappable(ctx context.Context, userID uint64) ([]model.SwappableSlot, error) {
	const op = "service.Swaps.Swappable"
	slots, err := s.store.SwappableEvents(ctx, userID)
	if err != nil {
		s.log.Error("list swappable slots failed", slog.String("op", op), sl.Err(err))
		return nil, wrap(op, err)
	}
	out := make([]model.SwappableSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.UserID != userID && slot.Status == model.EventSwappable {
			out = append(out, slot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// lockPair locks two events in ascending ID order, so concurrent operations
// on the same pair cannot deadlock, and returns them in argument order.
func lockPair(ctx context.Context, tx repository.Tx, firstID, secondID uint64) (model.Event, model.Event, error) {
	lo, hi := firstID, secondID
	if lo > hi {
		lo, hi = hi, lo
	}
	a, err := tx.LockEvent(ctx, lo)
	if err != nil {
		return model.Event{}, model.Event{}, err
	}
	b, err := tx.LockEvent(ctx, hi)
	if err != nil {
		return model.Event{}, model.Event{}, err
	}
	if a.ID == firstID {
		return a, b, nil
	}
	return b, a, nil
}

func (s *Swaps) afterCommit(ctx context.Context, log *slog.Logger, swap model.SwapRequest) {
	if s.recorder != nil {
		s.recorder.SwapTransition(swap.Status)
	}
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.NewSwapEvent(queue.EventTypeFor(swap.Status), swap, s.now())
	if err := s.publisher.PublishSwapEvent(pctx, ev); err != nil {
		log.Warn("swap notification not delivered", sl.Err(err))
	}
}

func (s *Swaps) logFailure(log *slog.Logger, err error) {
	err = translate(err)
	if IsClientError(err) {
		log.Info("swap operation refused", slog.String("reason", err.Error()))
		return
	}
	if errors.Is(err, context.Canceled) {
		log.Warn("swap operation cancelled", sl.Err(err))
		return
	}
	log.Error("swap operation failed", sl.Err(err))
}
