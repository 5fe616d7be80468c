package data

import "time"

// DeliveryState is the per-message state machine: sent, then delivered, then
// seen, derived from the message timestamp fields. Transitions are
// one-directional: the store only ever sets delivered_at and seen_at, never
// clears them.
type DeliveryState string

const (
	StateSent      DeliveryState = "sent"
	StateDelivered DeliveryState = "delivered"
	StateSeen      DeliveryState = "seen"
)

// StateOf interprets the three message timestamps as a delivery state.
// A seen_at with a missing delivered_at cannot be produced by the store; it
// is still reported as seen so a corrupt record never regresses client state.
func StateOf(sentAt time.Time, deliveredAt, seenAt *time.Time) DeliveryState {
	switch {
	case seenAt != nil:
		return StateSeen
	case deliveredAt != nil:
		return StateDelivered
	default:
		return StateSent
	}
}

// State returns the message's current delivery state.
func (m *Message) State() DeliveryState {
	return StateOf(m.SentAt, m.DeliveredAt, m.SeenAt)
}
