package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/auth"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/model"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/repo"
)

type fakeOwnerRepo struct {
	byNIC   map[string]model.EVOwnerProfile
	byUser  map[uuid.UUID]bool
	failAll bool
}

func newFakeOwnerRepo() *fakeOwnerRepo {
	return &fakeOwnerRepo{
		byNIC:  make(map[string]model.EVOwnerProfile),
		byUser: make(map[uuid.UUID]bool),
	}
}

func (f *fakeOwnerRepo) FindByNIC(_ context.Context, nic string) (model.EVOwnerProfile, error) {
	if f.failAll {
		return model.EVOwnerProfile{}, errors.New("store unavailable")
	}
	p, ok := f.byNIC[nic]
	if !ok {
		return model.EVOwnerProfile{}, repo.ErrNotFound
	}
	return p, nil
}

func (f *fakeOwnerRepo) FindByUserID(_ context.Context, userID uuid.UUID) (model.EVOwnerProfile, error) {
	if f.failAll {
		return model.EVOwnerProfile{}, errors.New("store unavailable")
	}
	for _, p := range f.byNIC {
		if p.UserID == userID {
			return p, nil
		}
	}
	return model.EVOwnerProfile{}, repo.ErrNotFound
}

func (f *fakeOwnerRepo) ExistsForUser(_ context.Context, userID uuid.UUID) (bool, error) {
	if f.failAll {
		return false, errors.New("store unavailable")
	}
	return f.byUser[userID], nil
}

func (f *fakeOwnerRepo) Create(_ context.Context, nic string, userID uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	f.byNIC[nic] = model.EVOwnerProfile{ID: id, NIC: nic, UserID: userID}
	f.byUser[userID] = true
	return id, nil
}

func bearerFor(t *testing.T, jwtService *auth.JWTService, userID uuid.UUID, role model.Role) string {
	t.Helper()
	token, err := jwtService.SignAccessToken(userID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func TestRequireAuth_MissingAndMalformedHeaders(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	handler := RequireAuth(jwtService)(okHandler())

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc123"},
		{"no token", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireAuth_RejectsExpiredToken(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	expiredSvc := auth.NewJWTService(testJWTSecret, -time.Minute)
	handler := RequireAuth(jwtService)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", bearerFor(t, expiredSvc, uuid.New(), model.RoleAdmin))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_RoleGate(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	handler := RequireAuth(jwtService, model.RoleAdmin, model.RoleStationUser)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, uuid.New(), model.RoleEVOwner))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code, "role outside the allowed set is forbidden, not unauthorized")

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, uuid.New(), model.RoleStationUser))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth_AttachesClaimsToContext(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	userID := uuid.New()

	var gotID uuid.UUID
	var gotRole model.Role
	handler := RequireAuth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserID(r.Context())
		gotRole, _ = GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, userID, model.RoleEVOwner))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, model.RoleEVOwner, gotRole)
}

// ownershipServer mounts the auth and ownership gates on a chi router so path
// parameters resolve the way they do in production.
func ownershipServer(jwtService *auth.JWTService, owners repo.OwnerRepo) *chi.Mux {
	r := chi.NewRouter()
	r.With(RequireAuth(jwtService), RequireOwnership(owners, "userId", "")).
		Get("/users/{userId}/sessions", okHandler())
	r.With(RequireAuth(jwtService), RequireOwnership(owners, "", "nic")).
		Get("/owners/{nic}", okHandler())
	r.With(RequireAuth(jwtService), RequireOwnership(owners, "", "")).
		Get("/me", okHandler())
	return r
}

func TestRequireOwnership_AdminAndStationUserBypass(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	owners := newFakeOwnerRepo()
	srv := ownershipServer(jwtService, owners)

	for _, role := range []model.Role{model.RoleAdmin, model.RoleStationUser} {
		r := httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString()+"/sessions", nil)
		r.Header.Set("Authorization", bearerFor(t, jwtService, uuid.New(), role))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code, "role %s must bypass the ownership gate", role)
	}
}

func TestRequireOwnership_UserIDParam(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	owners := newFakeOwnerRepo()
	srv := ownershipServer(jwtService, owners)
	callerID := uuid.New()

	r := httptest.NewRequest(http.MethodGet, "/users/"+callerID.String()+"/sessions", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, callerID, model.RoleEVOwner))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString()+"/sessions", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, callerID, model.RoleEVOwner))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code, "an owner must not read another user's sessions")
}

func TestRequireOwnership_NICParam(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	owners := newFakeOwnerRepo()
	srv := ownershipServer(jwtService, owners)

	callerID := uuid.New()
	_, err := owners.Create(context.Background(), "990123456V", callerID)
	require.NoError(t, err)
	otherID := uuid.New()
	_, err = owners.Create(context.Background(), "880123456V", otherID)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/owners/990123456V", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, callerID, model.RoleEVOwner))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/owners/880123456V", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, callerID, model.RoleEVOwner))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code, "another owner's profile must be forbidden")

	// Unknown NIC reads as forbidden rather than not-found to avoid leaking
	// which identifiers exist.
	r = httptest.NewRequest(http.MethodGet, "/owners/000000000V", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, callerID, model.RoleEVOwner))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireOwnership_StoreErrorIsInternal(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	owners := newFakeOwnerRepo()
	owners.failAll = true
	srv := ownershipServer(jwtService, owners)

	r := httptest.NewRequest(http.MethodGet, "/owners/990123456V", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, uuid.New(), model.RoleEVOwner))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireOwnership_FallbackProfileExistence(t *testing.T) {
	jwtService := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	owners := newFakeOwnerRepo()
	srv := ownershipServer(jwtService, owners)

	linkedID := uuid.New()
	_, err := owners.Create(context.Background(), "990123456V", linkedID)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, linkedID, model.RoleEVOwner))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", bearerFor(t, jwtService, uuid.New(), model.RoleEVOwner))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code, "an owner with no linked profile is rejected")
}
