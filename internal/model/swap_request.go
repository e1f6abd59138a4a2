package model

import "time"

// SwapRequest proposes exchanging ownership of two events.  The requester
// offers MySlot and asks for TheirSlot; the receiver is whoever owned
// TheirSlot when the request was created and is the only user allowed to
// accept or reject it.
type SwapRequest struct {
	ID          uint64     `json:"id"`        // swap_requests.id
	RequesterID uint64     `json:"requester"` // swap_requests.requester_id
	ReceiverID  uint64     `json:"receiver"`  // swap_requests.receiver_id
	MySlotID    uint64     `json:"mySlot"`    // swap_requests.my_slot_id
	TheirSlotID uint64     `json:"theirSlot"` // swap_requests.their_slot_id
	Status      SwapStatus `json:"status"`    // swap_requests.status
	CreatedAt   time.Time  `json:"createdAt"` // swap_requests.created_at
	UpdatedAt   time.Time  `json:"updatedAt"` // swap_requests.updated_at
}

// SwapDetail is the expanded form of a swap request returned by the incoming
// and outgoing listings: both parties' public identity and both events in
// full.
type SwapDetail struct {
	ID        uint64      `json:"id"`
	Requester UserSummary `json:"requester"`
	Receiver  UserSummary `json:"receiver"`
	MySlot    Event       `json:"mySlot"`
	TheirSlot Event       `json:"theirSlot"`
	Status    SwapStatus  `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
