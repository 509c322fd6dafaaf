package models

import "time"

type NotificationType string

const (
	NotificationWaitlistPromoted NotificationType = "waitlist_promoted"
	NotificationWaitlistDemoted  NotificationType = "waitlist_demoted"
	NotificationMatchCompleted   NotificationType = "match_completed"
	NotificationTournamentStatus NotificationType = "tournament_status"
	NotificationEventReminder    NotificationType = "event_reminder"
)

// Notification is the persisted inbox row; push delivery is best-effort on
// top of it.
type Notification struct {
	ID     int              `json:"id" db:"id"`
	UserID int              `json:"user_id" db:"user_id"`
	Type   NotificationType `json:"type" db:"type"`
	Title  string           `json:"title" db:"title"`
	Body   string           `json:"body" db:"body"`

	// Data is an opaque JSON payload forwarded to the client.
	Data *string `json:"data,omitempty" db:"data"`

	ReadAt    *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// PushToken is an Expo push token registered by a mobile client.
type PushToken struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	Platform  *string   `json:"platform,omitempty" db:"platform"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
