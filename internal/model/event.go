package model

import "time"

// Event is a calendar slot owned by exactly one user.  Ownership may move
// between users when a swap is accepted; the event keeps its ID.  This
// struct corresponds to a row in the `events` table.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – current owner.
//  Title     – free-form title.
//  StartTime – when the slot begins (UTC).
//  EndTime   – when the slot ends (UTC, after StartTime).
//  Status    – trade state (BUSY, SWAPPABLE, SWAP_PENDING).
//  Version   – bumped on every write; used as an optimistic guard.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Event struct {
	ID        uint64      `json:"id"`        // events.id
	UserID    uint64      `json:"user"`      // events.user_id
	Title     string      `json:"title"`     // events.title
	StartTime time.Time   `json:"startTime"` // events.start_time
	EndTime   time.Time   `json:"endTime"`   // events.end_time
	Status    EventStatus `json:"status"`    // events.status
	Version   uint32      `json:"-"`         // events.version
	CreatedAt time.Time   `json:"createdAt"` // events.created_at
	UpdatedAt time.Time   `json:"updatedAt"` // events.updated_at
}

// SwappableSlot is an event offered for trade together with its owner's
// public identity.
type SwappableSlot struct {
	Event
	Owner UserSummary `json:"owner"`
}
