package handlers

import (
	"net/http"

	"github.com/adilp/bhmhockey/middleware"
	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/services"
)

type RegistrationHandler struct {
	waitlistService services.WaitlistService
}

func NewRegistrationHandler(ws services.WaitlistService) *RegistrationHandler {
	return &RegistrationHandler{waitlistService: ws}
}

func (h *RegistrationHandler) register(w http.ResponseWriter, r *http.Request, kind models.ParentKind, paramName string) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to register")
		return
	}
	parentID, err := getIDFromURL(r, paramName)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registration, err := h.waitlistService.Register(r.Context(), userID, models.ParentRef{Kind: kind, ID: parentID})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegisterForEventHandler handles POST /events/{eventID}/registrations
func (h *RegistrationHandler) RegisterForEventHandler(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, models.ParentEvent, "eventID")
}

// RegisterForTournamentHandler handles POST /tournaments/{tournamentID}/registrations
func (h *RegistrationHandler) RegisterForTournamentHandler(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, models.ParentTournament, "tournamentID")
}

func (h *RegistrationHandler) listQueue(w http.ResponseWriter, r *http.Request, kind models.ParentKind, paramName string) {
	parentID, err := getIDFromURL(r, paramName)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registrations, err := h.waitlistService.ListQueue(r.Context(), models.ParentRef{Kind: kind, ID: parentID})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": registrations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// EventQueueHandler handles GET /events/{eventID}/registrations
func (h *RegistrationHandler) EventQueueHandler(w http.ResponseWriter, r *http.Request) {
	h.listQueue(w, r, models.ParentEvent, "eventID")
}

// TournamentQueueHandler handles GET /tournaments/{tournamentID}/registrations
func (h *RegistrationHandler) TournamentQueueHandler(w http.ResponseWriter, r *http.Request) {
	h.listQueue(w, r, models.ParentTournament, "tournamentID")
}

// CancelHandler handles DELETE /registrations/{registrationID}
func (h *RegistrationHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.waitlistService.Cancel(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "registration cancelled"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MarkPaidHandler handles POST /registrations/{registrationID}/payment
func (h *RegistrationHandler) MarkPaidHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registration, err := h.waitlistService.MarkPaid(r.Context(), actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
