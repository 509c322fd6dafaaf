package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/adilp/bhmhockey/middleware"
	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/repositories"
	"github.com/adilp/bhmhockey/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	standingsService  services.StandingsService
}

func NewTournamentHandler(ts services.TournamentService, ss services.StandingsService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		standingsService:  ss,
	}
}

type tournamentPayload struct {
	Name            *string                    `json:"name"`
	Description     *string                    `json:"description"`
	Format          *models.TournamentFormat   `json:"format"`
	StartDate       *time.Time                 `json:"start_date"`
	EndDate         *time.Time                 `json:"end_date"`
	Location        *string                    `json:"location"`
	MinTeamSize     *int                       `json:"min_team_size"`
	MaxTeamSize     *int                       `json:"max_team_size"`
	MaxTeams        *int                       `json:"max_teams"`
	FeeCents        *int                       `json:"fee_cents"`
	PointsWin       *int                       `json:"points_win"`
	PointsTie       *int                       `json:"points_tie"`
	PointsLoss      *int                       `json:"points_loss"`
	TiebreakerOrder []models.TiebreakCriterion `json:"tiebreaker_order"`
	ThirdPlaceMatch *bool                      `json:"third_place_match"`
	GrandFinalReset *bool                      `json:"grand_final_reset"`
}

// CreateHandler handles POST /tournaments
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create tournament")
		return
	}

	var payload tournamentPayload
	if err := readJSON(w, r, &payload); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	input := services.CreateTournamentInput{
		Description:     payload.Description,
		Location:        payload.Location,
		TiebreakerOrder: payload.TiebreakerOrder,
		PointsWin:       payload.PointsWin,
		PointsTie:       payload.PointsTie,
		PointsLoss:      payload.PointsLoss,
	}
	if payload.Name != nil {
		input.Name = *payload.Name
	}
	if payload.Format != nil {
		input.Format = *payload.Format
	}
	if payload.StartDate != nil {
		input.StartDate = *payload.StartDate
	}
	if payload.EndDate != nil {
		input.EndDate = *payload.EndDate
	}
	if payload.MinTeamSize != nil {
		input.MinTeamSize = *payload.MinTeamSize
	}
	if payload.MaxTeamSize != nil {
		input.MaxTeamSize = *payload.MaxTeamSize
	}
	if payload.MaxTeams != nil {
		input.MaxTeams = *payload.MaxTeams
	}
	if payload.FeeCents != nil {
		input.FeeCents = *payload.FeeCents
	}
	if payload.ThirdPlaceMatch != nil {
		input.ThirdPlaceMatch = *payload.ThirdPlaceMatch
	}
	if payload.GrandFinalReset != nil {
		input.GrandFinalReset = *payload.GrandFinalReset
	}

	tournament, err := h.tournamentService.Create(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /tournaments/{tournamentID}
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /tournaments
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var filter repositories.ListTournamentsFilter
	query := r.URL.Query()

	if organizerIDStr := query.Get("organizer_id"); organizerIDStr != "" {
		id, err := strconv.Atoi(organizerIDStr)
		if err != nil || id <= 0 {
			badRequestResponse(w, r, errors.New("invalid organizer_id query parameter"))
			return
		}
		filter.OrganizerID = &id
	}
	if statusStr := query.Get("status"); statusStr != "" {
		status := models.TournamentStatus(statusStr)
		filter.Status = &status
	}
	if formatStr := query.Get("format"); formatStr != "" {
		format := models.TournamentFormat(formatStr)
		filter.Format = &format
	}
	filter.Limit = 20
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			badRequestResponse(w, r, errors.New("invalid limit query parameter"))
			return
		}
		filter.Limit = limit
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			badRequestResponse(w, r, errors.New("invalid offset query parameter"))
			return
		}
		filter.Offset = offset
	}

	tournaments, err := h.tournamentService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler handles PATCH /tournaments/{tournamentID}
func (h *TournamentHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var payload tournamentPayload
	if err := readJSON(w, r, &payload); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Update(r.Context(), actor, id, services.UpdateTournamentInput{
		Name:            payload.Name,
		Description:     payload.Description,
		StartDate:       payload.StartDate,
		EndDate:         payload.EndDate,
		Location:        payload.Location,
		MinTeamSize:     payload.MinTeamSize,
		MaxTeamSize:     payload.MaxTeamSize,
		MaxTeams:        payload.MaxTeams,
		FeeCents:        payload.FeeCents,
		ThirdPlaceMatch: payload.ThirdPlaceMatch,
		GrandFinalReset: payload.GrandFinalReset,
		TiebreakerOrder: payload.TiebreakerOrder,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHandler handles DELETE /tournaments/{tournamentID}
func (h *TournamentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.Delete(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActionHandler handles POST /tournaments/{tournamentID}/actions/{action}
func (h *TournamentHandler) ActionHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	action := models.TournamentAction(urlParam(r, "action"))

	tournament, err := h.tournamentService.ApplyAction(r.Context(), actor, id, action)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadLogoHandler handles PUT /tournaments/{tournamentID}/logo
func (h *TournamentHandler) UploadLogoHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		badRequestResponse(w, r, errors.New("Content-Type header is required"))
		return
	}

	tournament, err := h.tournamentService.UploadLogo(r.Context(), actor, id, contentType, r.Body)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AuditLogHandler handles GET /tournaments/{tournamentID}/audit-log
func (h *TournamentHandler) AuditLogHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.CurrentUser(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	limit, offset := 50, 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	entries, err := h.tournamentService.ListAuditLog(r.Context(), actor, id, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"audit_log": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StandingsHandler handles GET /tournaments/{tournamentID}/standings
func (h *TournamentHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.standingsService.GetStandings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
