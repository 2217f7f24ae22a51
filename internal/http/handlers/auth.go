package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/auth"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *auth.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// registerRequest is the request body for POST /auth/register
type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	NIC      string `json:"nic" validate:"required"`
}

// refreshRequest is the request body for POST /auth/refresh
type refreshRequest struct {
	RefreshToken  string `json:"refresh_token" validate:"required"`
	RefreshSecret string `json:"refresh_secret" validate:"required"`
}

// logoutRequest is the request body for POST /auth/logout
type logoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// userResponse is the user object in API responses
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// authResponse is the JSON response for successful login and registration
type authResponse struct {
	AccessToken   string       `json:"access_token"`
	RefreshToken  string       `json:"refresh_token"`
	RefreshSecret string       `json:"refresh_secret"`
	TokenType     string       `json:"token_type"`
	User          userResponse `json:"user"`
}

// refreshResponse is the JSON response for a successful refresh
type refreshResponse struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	RefreshSecret string `json:"refresh_secret"`
	TokenType     string `json:"token_type"`
}

// outcomeError is the uniform failure shape for auth endpoints
type outcomeError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	outcome := h.authService.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if outcome.Status != auth.StatusSuccess {
		respondWithOutcomeError(w, outcome.Status)
		return
	}
	respondWithJSON(w, http.StatusOK, authSuccessResponse(outcome))
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	outcome := h.authService.RegisterOwner(r.Context(), strings.TrimSpace(req.Email), req.Password, strings.TrimSpace(req.NIC))
	if outcome.Status != auth.StatusSuccess {
		respondWithOutcomeError(w, outcome.Status)
		return
	}
	respondWithJSON(w, http.StatusCreated, authSuccessResponse(outcome))
}

// HandleRefresh handles POST /auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	outcome := h.authService.Refresh(r.Context(), strings.TrimSpace(req.RefreshToken), strings.TrimSpace(req.RefreshSecret))
	if outcome.Status != auth.StatusSuccess {
		respondWithOutcomeError(w, outcome.Status)
		return
	}
	respondWithJSON(w, http.StatusOK, refreshResponse{
		AccessToken:   outcome.AccessToken,
		RefreshToken:  outcome.RefreshToken.PublicToken,
		RefreshSecret: outcome.RefreshToken.Secret,
		TokenType:     "bearer",
	})
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.authService.Logout(r.Context(), strings.TrimSpace(req.RefreshToken)); err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			respondWithOutcomeError(w, auth.StatusInvalidRefreshToken)
			return
		}
		log.Printf("logout: %v", err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

func authSuccessResponse(outcome auth.AuthOutcome) authResponse {
	return authResponse{
		AccessToken:   outcome.AccessToken,
		RefreshToken:  outcome.RefreshToken.PublicToken,
		RefreshSecret: outcome.RefreshToken.Secret,
		TokenType:     "bearer",
		User: userResponse{
			ID:    outcome.User.ID.String(),
			Email: outcome.User.Email,
			Role:  string(outcome.User.Role),
		},
	}
}

// respondWithOutcomeError maps a failure status to its HTTP shape. The message
// comes from the closed status set, never from internal errors.
func respondWithOutcomeError(w http.ResponseWriter, status auth.Status) {
	code := http.StatusUnauthorized
	if status == auth.StatusFailed {
		code = http.StatusInternalServerError
	}
	respondWithJSON(w, code, outcomeError{
		Status:  string(status),
		Message: status.Message(),
	})
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
