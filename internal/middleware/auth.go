package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/auth"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/model"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/repo"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

// RequireAuth validates the bearer token and, when roles are given, enforces
// that the token's role claim is one of them. Claims are attached to the
// request context for handlers and the ownership gate.
func RequireAuth(jwtService *auth.JWTService, roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				respondWithError(w, http.StatusUnauthorized, "missing token")
				return
			}

			claims, err := jwtService.VerifyToken(tokenString)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if len(allowed) > 0 && !allowed[claims.Role] {
				respondWithError(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, roleKey, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwnership enforces that an EVOwner caller acts only on their own
// resource. Admin and StationUser callers bypass the gate. The target is
// resolved from the userIDParam path parameter (must equal the caller's id),
// or from the nicParam owner key (must map to a profile linked to the caller).
// With neither parameter present the gate degrades to "some profile linked to
// the caller exists". Pass "" to skip a parameter.
func RequireOwnership(owners repo.OwnerRepo, userIDParam, nicParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetRole(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if role != model.RoleEVOwner {
				next.ServeHTTP(w, r)
				return
			}

			callerID, ok := GetUserID(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if userIDParam != "" {
				if target := chi.URLParam(r, userIDParam); target != "" {
					if target != callerID.String() {
						respondWithError(w, http.StatusForbidden, "forbidden")
						return
					}
					next.ServeHTTP(w, r)
					return
				}
			}

			if nicParam != "" {
				if nic := chi.URLParam(r, nicParam); nic != "" {
					profile, err := owners.FindByNIC(r.Context(), nic)
					if err != nil {
						if errors.Is(err, repo.ErrNotFound) {
							respondWithError(w, http.StatusForbidden, "forbidden")
							return
						}
						log.Printf("ownership check: owner lookup failed: %v", err)
						respondWithError(w, http.StatusInternalServerError, "internal server error")
						return
					}
					if profile.UserID != callerID {
						respondWithError(w, http.StatusForbidden, "forbidden")
						return
					}
					next.ServeHTTP(w, r)
					return
				}
			}

			// No target parameter: coarse allow if any profile is linked to
			// the caller.
			exists, err := owners.ExistsForUser(r.Context(), callerID)
			if err != nil {
				log.Printf("ownership check: profile existence lookup failed: %v", err)
				respondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !exists {
				respondWithError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID extracts the authenticated user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok
}

// GetRole extracts the authenticated role from context
func GetRole(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(roleKey).(model.Role)
	return role, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}
