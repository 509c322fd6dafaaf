package handlers

import (
	"net/http"
	"strconv"

	"github.com/adilp/bhmhockey/middleware"
	"github.com/adilp/bhmhockey/services"
)

type NotificationHandler struct {
	notificationService services.NotificationService
}

func NewNotificationHandler(ns services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: ns}
}

// InboxHandler handles GET /notifications
func (h *NotificationHandler) InboxHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			errorResponse(w, r, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	notifications, err := h.notificationService.ListInbox(r.Context(), userID, unreadOnly, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"notifications": notifications}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MarkReadHandler handles POST /notifications/{notificationID}/read
func (h *NotificationHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "notificationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), userID, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "notification marked as read"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegisterPushTokenHandler handles POST /notifications/push-tokens
func (h *NotificationHandler) RegisterPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var payload struct {
		Token    string  `json:"token"`
		Platform *string `json:"platform"`
	}
	if err := readJSON(w, r, &payload); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if payload.Token == "" {
		errorResponse(w, r, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.notificationService.RegisterPushToken(r.Context(), userID, payload.Token, payload.Platform); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"message": "push token registered"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UnregisterPushTokenHandler handles DELETE /notifications/push-tokens
func (h *NotificationHandler) UnregisterPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.GetUserIDFromContext(r.Context()); err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := readJSON(w, r, &payload); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if payload.Token == "" {
		errorResponse(w, r, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.notificationService.UnregisterPushToken(r.Context(), payload.Token); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
