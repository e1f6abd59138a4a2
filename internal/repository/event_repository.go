package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/slotswap/internal/model"
)

const eventColumns = `id, user_id, title, start_time, end_time, status, version, created_at, updated_at`

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func scanEvent(row rowScanner, e *model.Event) error {
	return row.Scan(&e.ID, &e.UserID, &e.Title, &e.StartTime, &e.EndTime, &e.Status, &e.Version, &e.CreatedAt, &e.UpdatedAt)
}

// Create inserts a new event and populates the generated ID and DB-default
// fields (version, created_at, updated_at) on e.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (user_id, title, start_time, end_time, status) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.UserID, e.Title, e.StartTime.UTC(), e.EndTime.UTC(), e.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return getEvent(ctx, r.db, uint64(id), e, false)
}

// GetForUpdateTx reads an event inside tx and locks the row until the
// transaction ends.
func (r *EventRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
	var e model.Event
	err := getEvent(ctx, tx, id, &e, true)
	return e, err
}

func getEvent(ctx context.Context, q dbtx, id uint64, e *model.Event, lock bool) error {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	if err := scanEvent(q.QueryRowContext(ctx, query, id), e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return err
	}
	return nil
}

// ListByUser returns all events owned by userID ordered by start time.
func (r *EventRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE user_id = ? ORDER BY start_time ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListSwappable returns every SWAPPABLE event not owned by excludeUserID,
// joined with its owner's public identity and ordered by start time.
func (r *EventRepo) ListSwappable(ctx context.Context, excludeUserID uint64) ([]model.SwappableSlot, error) {
	const q = `SELECT e.id, e.user_id, e.title, e.start_time, e.end_time, e.status, e.version, e.created_at, e.updated_at,
                      u.id, u.name, u.email
               FROM events e
               JOIN users u ON u.id = e.user_id
               WHERE e.status = ? AND e.user_id <> ?
               ORDER BY e.start_time ASC, e.id ASC`
	rows, err := r.db.QueryContext(ctx, q, model.EventSwappable, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := []model.SwappableSlot{}
	for rows.Next() {
		var s model.SwappableSlot
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Title, &s.StartTime, &s.EndTime, &s.Status, &s.Version, &s.CreatedAt, &s.UpdatedAt,
			&s.Owner.ID, &s.Owner.Name, &s.Owner.Email,
		); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// UpdateTx writes owner, title, times and status of e inside tx.  The write
// only applies if the row still carries e.Version; otherwise ErrConflict is
// returned.  On success e is refreshed from the row.
func (r *EventRepo) UpdateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	const q = `UPDATE events
               SET user_id = ?, title = ?, start_time = ?, end_time = ?, status = ?, version = version + 1
               WHERE id = ? AND version = ?`
	res, err := tx.ExecContext(ctx, q, e.UserID, e.Title, e.StartTime.UTC(), e.EndTime.UTC(), e.Status, e.ID, e.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return getEvent(ctx, tx, e.ID, e, false)
}

// DeleteTx removes an event inside tx.  Swap requests referencing it are
// removed by the foreign key cascade.
func (r *EventRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEventNotFound
	}
	return nil
}
