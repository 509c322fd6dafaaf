package services

import (
	"context"
	"fmt"

	"github.com/adilp/bhmhockey/models"
)

// Live message types pushed to websocket rooms.
const (
	LiveBracketUpdated   = "BRACKET_UPDATED"
	LiveMatchUpdated     = "MATCH_UPDATED"
	LiveStandingsUpdated = "STANDINGS_UPDATED"
	LiveTournamentStatus = "TOURNAMENT_STATUS"
)

// LiveMessage is the envelope delivered to every client in a room.
type LiveMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Broadcaster fans a message out to everyone watching a room. Implementations
// must be safe for concurrent use; services call this after commit.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

// Notifier delivers a user notification best-effort. Failures are logged by
// the implementation, never surfaced to the caller's transaction.
type Notifier interface {
	Notify(ctx context.Context, userID int, typ models.NotificationType, title, body string, data interface{})
}

func tournamentRoom(tournamentID int) string {
	return fmt.Sprintf("tournament:%d", tournamentID)
}
