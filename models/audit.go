package models

import "time"

// Audit actions. Status transitions use the state machine action names
// prefixed with "tournament."; other mutations get their own entries.
const (
	AuditActionMatchResult      = "match.result"
	AuditActionBracketGenerated = "bracket.generate"
	AuditActionWaitlistPromote  = "waitlist.promote"
	AuditActionWaitlistDemote   = "waitlist.demote"
)

// TournamentAuditLog rows are append-only: created in the same transaction
// as the state change they record, never updated or deleted.
type TournamentAuditLog struct {
	ID           int64  `json:"id" db:"id"`
	TournamentID *int   `json:"tournament_id,omitempty" db:"tournament_id"`
	ActorID      int    `json:"actor_id" db:"actor_id"`
	Action       string `json:"action" db:"action"`

	FromStatus *string `json:"from_status,omitempty" db:"from_status"`
	ToStatus   *string `json:"to_status,omitempty" db:"to_status"`

	EntityType *string `json:"entity_type,omitempty" db:"entity_type"`
	EntityID   *int    `json:"entity_id,omitempty" db:"entity_id"`
	OldValue   *string `json:"old_value,omitempty" db:"old_value"`
	NewValue   *string `json:"new_value,omitempty" db:"new_value"`
	Details    *string `json:"details,omitempty" db:"details"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
