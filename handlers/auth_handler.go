package handlers

import (
	"net/http"

	"github.com/adilp/bhmhockey/middleware"
	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SignUpHandler handles POST /auth/signup
func (h *AuthHandler) SignUpHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string          `json:"email"`
		Name     string          `json:"name"`
		Password string          `json:"password"`
		Role     models.UserRole `json:"role"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.authService.SignUp(r.Context(), services.SignUpInput{
		Email:    input.Email,
		Name:     input.Name,
		Password: input.Password,
		Role:     input.Role,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"user": result.User, "token": result.Token}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SignInHandler handles POST /auth/signin
func (h *AuthHandler) SignInHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.authService.SignIn(r.Context(), services.SignInInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"user": result.User, "token": result.Token}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MeHandler handles GET /auth/me
func (h *AuthHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	user, err := h.authService.GetUser(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"user": user}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
