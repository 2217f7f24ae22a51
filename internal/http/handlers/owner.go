package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/repo"
)

// OwnerHandler handles EV-owner profile reads
type OwnerHandler struct {
	owners repo.OwnerRepo
}

// NewOwnerHandler creates a new owner handler
func NewOwnerHandler(owners repo.OwnerRepo) *OwnerHandler {
	return &OwnerHandler{owners: owners}
}

// ownerResponse is the owner profile in API responses
type ownerResponse struct {
	NIC           string `json:"nic"`
	UserID        string `json:"user_id"`
	IsDeactivated bool   `json:"is_deactivated"`
}

// HandleGet handles GET /owners/{nic}
func (h *OwnerHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	nic := chi.URLParam(r, "nic")
	if nic == "" {
		respondWithError(w, http.StatusBadRequest, "nic is required")
		return
	}

	profile, err := h.owners.FindByNIC(r.Context(), nic)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "owner not found")
			return
		}
		log.Printf("get owner profile: %v", err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, ownerResponse{
		NIC:           profile.NIC,
		UserID:        profile.UserID.String(),
		IsDeactivated: profile.IsDeactivated,
	})
}
