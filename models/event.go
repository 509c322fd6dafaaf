package models

import "time"

// EventStatus is an explicit lifecycle state; there is no soft-delete
// timestamp scattered through queries.
type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
	EventDeleted   EventStatus = "deleted"
)

// Event is a capacity-bound pickup skate. Registrations beyond Capacity go
// onto the event's waitlist.
type Event struct {
	ID          int         `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description *string     `json:"description,omitempty" db:"description"`
	Location    *string     `json:"location,omitempty" db:"location"`
	OrganizerID int         `json:"organizer_id" db:"organizer_id"`
	StartsAt    time.Time   `json:"starts_at" db:"starts_at"`
	Capacity    int         `json:"capacity" db:"capacity"`
	FeeCents    int         `json:"fee_cents" db:"fee_cents"`
	Status      EventStatus `json:"status" db:"status"`

	ReminderSentAt *time.Time `json:"-" db:"reminder_sent_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

func (e *Event) ChargesFee() bool {
	return e.FeeCents > 0
}
