package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus is returned when a status string does not name one of the
// known event or swap states.
var ErrUnknownStatus = errors.New("unknown status")

// EventStatus is the trade state of an event.  The zero value is not a valid
// status; use one of the constants below.
type EventStatus string

const (
	EventBusy        EventStatus = "BUSY"         // not offered for trade
	EventSwappable   EventStatus = "SWAPPABLE"    // visible to other users as a trade candidate
	EventSwapPending EventStatus = "SWAP_PENDING" // referenced by an unresolved swap request
)

// Valid reports whether s is one of the known event states.
func (s EventStatus) Valid() bool {
	switch s {
	case EventBusy, EventSwappable, EventSwapPending:
		return true
	}
	return false
}

// OwnerSettable reports whether an owner may put an event into s through a
// plain edit.  SWAP_PENDING is reserved for the swap engine.
func (s EventStatus) OwnerSettable() bool {
	return s == EventBusy || s == EventSwappable
}

// ParseEventStatus normalizes raw and checks it against the known states.
func ParseEventStatus(raw string) (EventStatus, error) {
	s := EventStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: event status %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

func (s *EventStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseEventStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Scan implements sql.Scanner so that an out-of-range column value fails the
// row scan instead of leaking into the domain.
func (s *EventStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseEventStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s EventStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: event status %q", ErrUnknownStatus, string(s))
	}
	return string(s), nil
}

// SwapStatus is the state of a swap request.  PENDING is the only
// non-terminal state.
type SwapStatus string

const (
	SwapPending  SwapStatus = "PENDING"
	SwapAccepted SwapStatus = "ACCEPTED"
	SwapRejected SwapStatus = "REJECTED"
)

// Valid reports whether s is one of the known swap states.
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapPending, SwapAccepted, SwapRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s SwapStatus) Terminal() bool {
	return s == SwapAccepted || s == SwapRejected
}

// ParseSwapStatus normalizes raw and checks it against the known states.
func ParseSwapStatus(raw string) (SwapStatus, error) {
	s := SwapStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: swap status %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

func (s *SwapStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseSwapStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *SwapStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseSwapStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s SwapStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: swap status %q", ErrUnknownStatus, string(s))
	}
	return string(s), nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("%w: NULL", ErrUnknownStatus)
	}
	return "", fmt.Errorf("%w: unsupported column type %T", ErrUnknownStatus, src)
}
