package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/auth"
)

// SessionHandler handles refresh session listing and revocation
type SessionHandler struct {
	authService *auth.AuthService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(authService *auth.AuthService) *SessionHandler {
	return &SessionHandler{authService: authService}
}

// sessionResponse is one active session in API responses. The secret is never
// included; the public token id is the handle for revocation.
type sessionResponse struct {
	TokenID    string     `json:"token_id"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// HandleList handles GET /users/{userId}/sessions
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	recs, err := h.authService.ListSessions(r.Context(), userID)
	if err != nil {
		log.Printf("list sessions for user %s: %v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sessions := make([]sessionResponse, 0, len(recs))
	for _, rec := range recs {
		sessions = append(sessions, sessionResponse{
			TokenID:    rec.PublicToken,
			IssuedAt:   rec.IssuedAt,
			ExpiresAt:  rec.ExpiresAt,
			LastUsedAt: rec.LastUsedAt,
		})
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// HandleRevoke handles DELETE /users/{userId}/sessions/{tokenId}
func (h *SessionHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	tokenID := chi.URLParam(r, "tokenId")
	if tokenID == "" {
		respondWithError(w, http.StatusBadRequest, "token id is required")
		return
	}

	if err := h.authService.RevokeSession(r.Context(), userID, tokenID); err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			respondWithError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Printf("revoke session %s for user %s: %v", tokenID, userID, err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "session revoked"})
}
