package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/adilp/bhmhockey/middleware"
	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/repositories"
	"github.com/adilp/bhmhockey/services"
)

type EventHandler struct {
	eventService services.EventService
}

func NewEventHandler(es services.EventService) *EventHandler {
	return &EventHandler{eventService: es}
}

type eventPayload struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartsAt    *time.Time `json:"starts_at"`
	Capacity    *int       `json:"capacity"`
	FeeCents    *int       `json:"fee_cents"`
}

// CreateHandler handles POST /events
func (h *EventHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create event")
		return
	}

	var payload eventPayload
	if err := readJSON(w, r, &payload); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	input := services.CreateEventInput{
		Description: payload.Description,
		Location:    payload.Location,
	}
	if payload.Name != nil {
		input.Name = *payload.Name
	}
	if payload.StartsAt != nil {
		input.StartsAt = *payload.StartsAt
	}
	if payload.Capacity != nil {
		input.Capacity = *payload.Capacity
	}
	if payload.FeeCents != nil {
		input.FeeCents = *payload.FeeCents
	}

	event, err := h.eventService.Create(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /events/{eventID}
func (h *EventHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.eventService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /events
func (h *EventHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListEventsFilter{Limit: 20}

	q := r.URL.Query()
	if v := q.Get("organizer_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			errorResponse(w, r, http.StatusBadRequest, "organizer_id must be an integer")
			return
		}
		filter.OrganizerID = &id
	}
	if v := q.Get("status"); v != "" {
		status := models.EventStatus(v)
		filter.Status = &status
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			errorResponse(w, r, http.StatusBadRequest, "from must be an RFC3339 timestamp")
			return
		}
		filter.From = &from
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 100 {
			errorResponse(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			errorResponse(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	events, err := h.eventService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"events": events}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler handles PATCH /events/{eventID}
func (h *EventHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var payload eventPayload
	if err := readJSON(w, r, &payload); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.eventService.Update(r.Context(), actor, id, services.UpdateEventInput{
		Name:        payload.Name,
		Description: payload.Description,
		Location:    payload.Location,
		StartsAt:    payload.StartsAt,
		Capacity:    payload.Capacity,
		FeeCents:    payload.FeeCents,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"event": event}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CancelHandler handles POST /events/{eventID}/cancel
func (h *EventHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.eventService.Cancel(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "event cancelled"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHandler handles DELETE /events/{eventID}
func (h *EventHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.eventService.Delete(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
