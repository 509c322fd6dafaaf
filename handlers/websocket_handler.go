package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/adilp/bhmhockey/live"
)

type WebSocketHandler struct {
	hub    *live.Hub
	logger *slog.Logger

	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *live.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the app origin; auth happens at
			// the subscription level, not the socket level.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SubscribeTournamentHandler handles GET /ws/tournaments/{tournamentID}.
// The room name must match what the services broadcast to.
func (h *WebSocketHandler) SubscribeTournamentHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.hub.Join(conn, fmt.Sprintf("tournament:%d", tournamentID))
	h.logger.Info("websocket client subscribed", "tournament_id", tournamentID, "remote", r.RemoteAddr)
}
