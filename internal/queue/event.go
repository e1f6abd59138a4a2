// Package queue defines the swap lifecycle messages exchanged over RabbitMQ,
// the publisher used by the swap engine and the consumer that records them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/slotswap/internal/model"
)

// SwapEventType names the lifecycle step a SwapEvent reports.
type SwapEventType string

const (
	SwapRequested SwapEventType = "swap.requested"
	SwapAccepted  SwapEventType = "swap.accepted"
	SwapRejected  SwapEventType = "swap.rejected"
)

// SwapEvent is published after a swap request is created, accepted or
// rejected.  It carries enough for consumers to log or notify without
// querying the database.
type SwapEvent struct {
	ID          string           `json:"id"`
	Type        SwapEventType    `json:"type"`
	SwapID      uint64           `json:"swap_id"`
	RequesterID uint64           `json:"requester_id"`
	ReceiverID  uint64           `json:"receiver_id"`
	MySlotID    uint64           `json:"my_slot_id"`
	TheirSlotID uint64           `json:"their_slot_id"`
	Status      model.SwapStatus `json:"status"`
	OccurredAt  string           `json:"occurred_at"`
}

// NewSwapEvent builds the message for swap s, stamped with a fresh ID.
func NewSwapEvent(typ SwapEventType, s model.SwapRequest, at time.Time) SwapEvent {
	return SwapEvent{
		ID:          uuid.NewString(),
		Type:        typ,
		SwapID:      s.ID,
		RequesterID: s.RequesterID,
		ReceiverID:  s.ReceiverID,
		MySlotID:    s.MySlotID,
		TheirSlotID: s.TheirSlotID,
		Status:      s.Status,
		OccurredAt:  at.UTC().Format(time.RFC3339),
	}
}

// EventTypeFor maps a swap status to the event announcing it.
func EventTypeFor(status model.SwapStatus) SwapEventType {
	switch status {
	case model.SwapAccepted:
		return SwapAccepted
	case model.SwapRejected:
		return SwapRejected
	}
	return SwapRequested
}
