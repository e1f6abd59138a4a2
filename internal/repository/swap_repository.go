package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/slotswap/internal/model"
)

const swapColumns = `id, requester_id, receiver_id, my_slot_id, their_slot_id, status, created_at, updated_at`

// SwapRepo manages persistence for swap requests.
type SwapRepo struct {
	db *sql.DB
}

// NewSwapRepo constructs a SwapRepo with the given DB handle.
func NewSwapRepo(db *sql.DB) *SwapRepo { return &SwapRepo{db: db} }

func scanSwap(row rowScanner, s *model.SwapRequest) error {
	return row.Scan(&s.ID, &s.RequesterID, &s.ReceiverID, &s.MySlotID, &s.TheirSlotID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
}

func getSwap(ctx context.Context, q dbtx, id uint64, s *model.SwapRequest, lock bool) error {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	if err := scanSwap(q.QueryRowContext(ctx, query, id), s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSwapNotFound
		}
		return err
	}
	return nil
}

// CreateTx inserts a swap request inside tx and populates the generated ID
// and timestamps on s.
func (r *SwapRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.SwapRequest) error {
	const q = `INSERT INTO swap_requests (requester_id, receiver_id, my_slot_id, their_slot_id, status) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.RequesterID, s.ReceiverID, s.MySlotID, s.TheirSlotID, s.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return getSwap(ctx, tx, uint64(id), s, false)
}

// GetForUpdateTx reads a swap request inside tx and locks the row.
func (r *SwapRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.SwapRequest, error) {
	var s model.SwapRequest
	err := getSwap(ctx, tx, id, &s, true)
	return s, err
}

// UpdateStatusTx sets the status of s inside tx and refreshes s from the row.
func (r *SwapRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, s *model.SwapRequest) error {
	// MySQL reports zero affected rows for an unchanged value, so a missing
	// row is detected by the re-read instead of RowsAffected.
	if _, err := tx.ExecContext(ctx, `UPDATE swap_requests SET status = ? WHERE id = ?`, s.Status, s.ID); err != nil {
		return err
	}
	return getSwap(ctx, tx, s.ID, s, false)
}

const swapDetailQuery = `
SELECT s.id, s.status, s.created_at, s.updated_at,
       rq.id, rq.name, rq.email,
       rc.id, rc.name, rc.email,
       m.id, m.user_id, m.title, m.start_time, m.end_time, m.status, m.version, m.created_at, m.updated_at,
       t.id, t.user_id, t.title, t.start_time, t.end_time, t.status, t.version, t.created_at, t.updated_at
FROM swap_requests s
JOIN users rq ON rq.id = s.requester_id
JOIN users rc ON rc.id = s.receiver_id
JOIN events m ON m.id = s.my_slot_id
JOIN events t ON t.id = s.their_slot_id
`

// ListIncoming returns the swap requests addressed to userID, newest first.
func (r *SwapRepo) ListIncoming(ctx context.Context, userID uint64) ([]model.SwapDetail, error) {
	return r.listDetails(ctx, swapDetailQuery+`WHERE s.receiver_id = ? ORDER BY s.id DESC`, userID)
}

// ListOutgoing returns the swap requests made by userID, newest first.
func (r *SwapRepo) ListOutgoing(ctx context.Context, userID uint64) ([]model.SwapDetail, error) {
	return r.listDetails(ctx, swapDetailQuery+`WHERE s.requester_id = ? ORDER BY s.id DESC`, userID)
}

func (r *SwapRepo) listDetails(ctx context.Context, q string, userID uint64) ([]model.SwapDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := []model.SwapDetail{}
	for rows.Next() {
		var d model.SwapDetail
		m, t := &d.MySlot, &d.TheirSlot
		if err := rows.Scan(
			&d.ID, &d.Status, &d.CreatedAt, &d.UpdatedAt,
			&d.Requester.ID, &d.Requester.Name, &d.Requester.Email,
			&d.Receiver.ID, &d.Receiver.Name, &d.Receiver.Email,
			&m.ID, &m.UserID, &m.Title, &m.StartTime, &m.EndTime, &m.Status, &m.Version, &m.CreatedAt, &m.UpdatedAt,
			&t.ID, &t.UserID, &t.Title, &t.StartTime, &t.EndTime, &t.Status, &t.Version, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}
