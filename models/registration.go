package models

import "time"

type RegistrationStatus string

const (
	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
	RegistrationAssigned   RegistrationStatus = "assigned"
	RegistrationCancelled  RegistrationStatus = "cancelled"
)

// Active reports whether the registration occupies a capacity slot.
func (s RegistrationStatus) Active() bool {
	return s == RegistrationRegistered || s == RegistrationAssigned
}

// ParentKind identifies what a registration is attached to. The waitlist
// manager is written once against this reference; events and tournaments
// share the same ordering and promotion rules.
type ParentKind string

const (
	ParentEvent      ParentKind = "event"
	ParentTournament ParentKind = "tournament"
)

// ParentRef addresses one waitlist queue.
type ParentRef struct {
	Kind ParentKind `json:"kind"`
	ID   int        `json:"id"`
}

type Registration struct {
	ID         int                `json:"id" db:"id"`
	ParentKind ParentKind         `json:"parent_kind" db:"parent_kind"`
	ParentID   int                `json:"parent_id" db:"parent_id"`
	UserID     int                `json:"user_id" db:"user_id"`
	Status     RegistrationStatus `json:"status" db:"status"`

	// WaitlistPosition is 1-based and dense among waitlisted entries of the
	// same parent; nil unless Status is waitlisted.
	WaitlistPosition *int `json:"waitlist_position,omitempty" db:"waitlist_position"`

	PromotedAt        *time.Time `json:"promoted_at,omitempty" db:"promoted_at"`
	PaymentDeadlineAt *time.Time `json:"payment_deadline_at,omitempty" db:"payment_deadline_at"`
	PaidAt            *time.Time `json:"paid_at,omitempty" db:"paid_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (r *Registration) Parent() ParentRef {
	return ParentRef{Kind: r.ParentKind, ID: r.ParentID}
}
