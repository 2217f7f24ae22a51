package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/model"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/repo"
)

// tokenRetention is how long used and revoked records are kept before the
// cleanup worker may delete them. Keeping spent records around is what makes
// reuse detection possible, so the window errs long.
const tokenRetention = 24 * time.Hour

// AuthService orchestrates login, refresh, and logout. It owns no persistent
// state of its own; everything lives in the store or the ledger.
type AuthService struct {
	users  repo.UserRepo
	owners repo.OwnerRepo
	ledger *RefreshTokenLedger
	jwt    *JWTService
}

// NewAuthService creates a new auth service
func NewAuthService(users repo.UserRepo, owners repo.OwnerRepo, ledger *RefreshTokenLedger, jwt *JWTService) *AuthService {
	return &AuthService{
		users:  users,
		owners: owners,
		ledger: ledger,
		jwt:    jwt,
	}
}

// Login verifies credentials and, on success, issues a fresh token family and
// a short-lived access token.
func (s *AuthService) Login(ctx context.Context, email, password string) AuthOutcome {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return authFailure(StatusUserNotFound)
		}
		log.Printf("login: user lookup failed: %v", err)
		return authFailure(StatusFailed)
	}

	if !CheckPassword(password, user.PasswordHash) {
		return authFailure(StatusInvalidCredentials)
	}
	if st := s.livenessStatus(ctx, user); st != StatusSuccess {
		return authFailure(st)
	}

	return s.issueFor(ctx, user)
}

// Refresh rotates the presented refresh token. The owning user must still be
// active: an account deactivated after issuance cannot refresh, even with an
// otherwise valid unused token.
func (s *AuthService) Refresh(ctx context.Context, publicToken, secret string) RefreshOutcome {
	rec, pair, err := s.ledger.Rotate(ctx, publicToken, secret)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return refreshFailure(StatusInvalidRefreshToken)
		}
		log.Printf("refresh: rotation failed: %v", err)
		return refreshFailure(StatusFailed)
	}

	user, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return refreshFailure(StatusUserNotFound)
		}
		log.Printf("refresh: user lookup failed: %v", err)
		return refreshFailure(StatusFailed)
	}
	switch st := s.livenessStatus(ctx, user); st {
	case StatusSuccess:
	case StatusFailed:
		return refreshFailure(StatusFailed)
	default:
		if err := s.ledger.RevokeFamily(ctx, rec.FamilyID, ReasonUserDeactivated); err != nil {
			log.Printf("refresh: revoke family for deactivated user: %v", err)
		}
		return refreshFailure(st)
	}

	accessToken, err := s.jwt.SignAccessToken(user.ID, user.Role)
	if err != nil {
		log.Printf("refresh: sign access token: %v", err)
		return refreshFailure(StatusFailed)
	}

	return RefreshOutcome{
		Status:       StatusSuccess,
		AccessToken:  accessToken,
		RefreshToken: pair,
	}
}

// Logout revokes the single presented token. Sibling sessions in the same
// family are untouched.
func (s *AuthService) Logout(ctx context.Context, publicToken string) error {
	return s.ledger.Revoke(ctx, publicToken, ReasonLogout)
}

// RegisterOwner creates an EVOwner account with a linked owner profile and
// logs the new user in.
func (s *AuthService) RegisterOwner(ctx context.Context, email, password, nic string) AuthOutcome {
	hash, err := HashPassword(password)
	if err != nil {
		log.Printf("register: hash password: %v", err)
		return authFailure(StatusFailed)
	}

	userID, err := s.users.Create(ctx, email, hash, model.RoleEVOwner)
	if err != nil {
		log.Printf("register: create user: %v", err)
		return authFailure(StatusFailed)
	}
	if _, err := s.owners.Create(ctx, nic, userID); err != nil {
		log.Printf("register: create owner profile: %v", err)
		return authFailure(StatusFailed)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("register: load user: %v", err)
		return authFailure(StatusFailed)
	}
	return s.issueFor(ctx, user)
}

// ListSessions returns the user's active refresh sessions
func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]model.RefreshTokenRecord, error) {
	return s.ledger.ListActiveSessions(ctx, userID)
}

// RevokeSession revokes one of the user's sessions by its public token id
func (s *AuthService) RevokeSession(ctx context.Context, userID uuid.UUID, tokenID string) error {
	return s.ledger.RevokeSession(ctx, userID, tokenID, ReasonRevokedByUser)
}

// CleanupExpiredTokens removes stale ledger records. Invoked by the cleanup
// worker; failures are advisory.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.ledger.Cleanup(ctx, time.Now().UTC().Add(-tokenRetention))
}

func (s *AuthService) issueFor(ctx context.Context, user model.User) AuthOutcome {
	pair, err := s.ledger.Issue(ctx, user.ID)
	if err != nil {
		log.Printf("issue refresh token for user %s: %v", user.ID, err)
		return authFailure(StatusFailed)
	}
	accessToken, err := s.jwt.SignAccessToken(user.ID, user.Role)
	if err != nil {
		log.Printf("sign access token for user %s: %v", user.ID, err)
		return authFailure(StatusFailed)
	}
	return AuthOutcome{
		Status:       StatusSuccess,
		AccessToken:  accessToken,
		RefreshToken: pair,
		User: UserInfo{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
		},
	}
}

// livenessStatus returns StatusSuccess when the account may authenticate.
// An EV owner is blocked both by the account-level active flag and by a
// deactivated owner profile; an owner account with no profile yet is allowed.
func (s *AuthService) livenessStatus(ctx context.Context, user model.User) Status {
	if !user.IsActive {
		return s.inactiveStatus(user.Role)
	}
	if user.Role != model.RoleEVOwner {
		return StatusSuccess
	}
	profile, err := s.owners.FindByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return StatusSuccess
		}
		log.Printf("liveness check: owner profile lookup failed: %v", err)
		return StatusFailed
	}
	if profile.IsDeactivated {
		return StatusOwnerDeactivated
	}
	return StatusSuccess
}

func (s *AuthService) inactiveStatus(role model.Role) Status {
	if role == model.RoleEVOwner {
		return StatusOwnerDeactivated
	}
	return StatusUserInactive
}
