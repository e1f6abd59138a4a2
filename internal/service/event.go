package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/slotswap/internal/lib/logger/sl"
	"github.com/iliyamo/slotswap/internal/model"
	"github.com/iliyamo/slotswap/internal/repository"
)

// EventStore is the persistence the event lifecycle needs.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	EventsByOwner(ctx context.Context, userID uint64) ([]model.Event, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

// EventInput carries the fields of a new event.  A zero Status means BUSY.
type EventInput struct {
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Status    model.EventStatus
}

// EventPatch is a partial update; nil fields are left unchanged.
type EventPatch struct {
	Title     *string
	StartTime *time.Time
	EndTime   *time.Time
	Status    *model.EventStatus
}

// Events implements ownership-scoped event CRUD.
type Events struct {
	log   *slog.Logger
	store EventStore
}

func NewEvents(log *slog.Logger, store EventStore) *Events {
	return &Events{log: log, store: store}
}

// Create stores a new event owned by userID.
func (s *Events) Create(ctx context.Context, userID uint64, in EventInput) (model.Event, error) {
	const op = "service.Events.Create"

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.StartTime.IsZero() || in.EndTime.IsZero() {
		return model.Event{}, wrap(op, fail(ErrValidation, "All fields are required"))
	}
	if in.Status == "" {
		in.Status = model.EventBusy
	}
	if !in.Status.OwnerSettable() {
		return model.Event{}, wrap(op, fail(ErrValidation, "status must be BUSY or SWAPPABLE"))
	}
	if err := checkTimes(in.StartTime, in.EndTime); err != nil {
		return model.Event{}, wrap(op, err)
	}

	e := model.Event{
		UserID:    userID,
		Title:     in.Title,
		StartTime: in.StartTime.UTC(),
		EndTime:   in.EndTime.UTC(),
		Status:    in.Status,
	}
	if err := s.store.CreateEvent(ctx, &e); err != nil {
		s.log.Error("create event failed", slog.String("op", op), slog.Uint64("user_id", userID), sl.Err(err))
		return model.Event{}, wrap(op, err)
	}
	return e, nil
}

// ListMine returns the events owned by userID, earliest first.
func (s *Events) ListMine(ctx context.Context, userID uint64) ([]model.Event, error) {
	const op = "service.Events.ListMine"
	events, err := s.store.EventsByOwner(ctx, userID)
	if err != nil {
		s.log.Error("list events failed", slog.String("op", op), slog.Uint64("user_id", userID), sl.Err(err))
		return nil, wrap(op, err)
	}
	return events, nil
}

// Update applies patch to an event owned by userID.  Owners may toggle an
// event between BUSY and SWAPPABLE but cannot touch the status of an event
// that is part of a pending swap, and can never change who owns it.
func (s *Events) Update(ctx context.Context, userID, eventID uint64, patch EventPatch) (model.Event, error) {
	const op = "service.Events.Update"
	log := s.log.With(slog.String("op", op), slog.Uint64("user_id", userID), slog.Uint64("event_id", eventID))

	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return model.Event{}, wrap(op, fail(ErrValidation, "title cannot be empty"))
	}
	if patch.Status != nil && !patch.Status.OwnerSettable() {
		return model.Event{}, wrap(op, fail(ErrValidation, "status must be BUSY or SWAPPABLE"))
	}

	var updated model.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e.UserID != userID {
			return fail(ErrUnauthorized, "Not authorized")
		}
		if patch.Status != nil && *patch.Status != e.Status {
			if e.Status == model.EventSwapPending {
				return fail(ErrInvalidState, "Event has a pending swap")
			}
			e.Status = *patch.Status
		}
		if patch.Title != nil {
			e.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.StartTime != nil {
			e.StartTime = patch.StartTime.UTC()
		}
		if patch.EndTime != nil {
			e.EndTime = patch.EndTime.UTC()
		}
		if err := checkTimes(e.StartTime, e.EndTime); err != nil {
			return err
		}
		if err := tx.SaveEvent(ctx, &e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		err = translate(err)
		if !IsClientError(err) {
			log.Error("update event failed", sl.Err(err))
		}
		return model.Event{}, wrap(op, err)
	}
	return updated, nil
}

// Delete removes an event owned by userID.  Events tied up in a pending
// swap cannot be deleted.
func (s *Events) Delete(ctx context.Context, userID, eventID uint64) error {
	const op = "service.Events.Delete"
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e.UserID != userID {
			return fail(ErrUnauthorized, "Not authorized")
		}
		if e.Status == model.EventSwapPending {
			return fail(ErrInvalidState, "Event has a pending swap")
		}
		return tx.DeleteEvent(ctx, eventID)
	})
	if err != nil {
		err = translate(err)
		if !IsClientError(err) {
			s.log.Error("delete event failed", slog.String("op", op), slog.Uint64("event_id", eventID), sl.Err(err))
		}
		return wrap(op, err)
	}
	return nil
}

func checkTimes(start, end time.Time) error {
	if !end.After(start) {
		return fail(ErrValidation, "endTime must be after startTime")
	}
	return nil
}
