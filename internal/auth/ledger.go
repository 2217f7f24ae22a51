package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/model"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/repo"
)

// ErrInvalidRefreshToken is the single error surfaced for every refresh token
// failure: unknown, expired, revoked, reused, or secret mismatch. Callers must
// not be able to tell these apart.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

const (
	// ReasonReuseDetected marks family-wide revocation after a spent token
	// was presented again.
	ReasonReuseDetected = "reuse detected"
	// ReasonLogout marks a single-token revocation from a logout.
	ReasonLogout = "logout"
	// ReasonUserDeactivated marks revocation after the owning account was
	// deactivated.
	ReasonUserDeactivated = "user deactivated"
	// ReasonRevokedByUser marks a session revoked through session management.
	ReasonRevokedByUser = "revoked by user"
)

// RefreshTokenLedger issues, rotates, and revokes refresh token records.
// It exclusively owns RefreshTokenRecord rows; request handlers go through
// the AuthService, never through the repo directly.
type RefreshTokenLedger struct {
	tokens repo.RefreshTokenRepo
	ttl    time.Duration
}

// NewRefreshTokenLedger creates a ledger. ttl is the refresh token lifetime.
func NewRefreshTokenLedger(tokens repo.RefreshTokenRepo, ttl time.Duration) *RefreshTokenLedger {
	return &RefreshTokenLedger{tokens: tokens, ttl: ttl}
}

// Issue creates a new token family for the user. The returned secret is shown
// to the caller exactly once and cannot be recovered afterwards.
func (l *RefreshTokenLedger) Issue(ctx context.Context, userID uuid.UUID) (TokenPair, error) {
	publicToken, secret, salt, err := GenerateRefreshSecret()
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	now := time.Now().UTC()
	rec := model.RefreshTokenRecord{
		UserID:      userID,
		PublicToken: publicToken,
		SecretHash:  HashRefreshSecret(secret, salt),
		Salt:        salt,
		FamilyID:    uuid.New(),
		IssuedAt:    now,
		ExpiresAt:   now.Add(l.ttl),
	}
	if _, err := l.tokens.Create(ctx, rec); err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return TokenPair{PublicToken: publicToken, Secret: secret}, nil
}

// Rotate redeems a refresh token for a successor in the same family.
// A token may be redeemed exactly once: presenting a spent token is treated as
// a stolen-token signal and revokes the whole family. The unused -> used
// transition is a conditional store update, so two concurrent rotations of the
// same token cannot both succeed.
func (l *RefreshTokenLedger) Rotate(ctx context.Context, publicToken, secret string) (model.RefreshTokenRecord, TokenPair, error) {
	rec, err := l.tokens.FindByPublicToken(ctx, publicToken)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.RefreshTokenRecord{}, TokenPair{}, ErrInvalidRefreshToken
		}
		return model.RefreshTokenRecord{}, TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	now := time.Now().UTC()
	if rec.IsRevoked || rec.Expired(now) {
		return model.RefreshTokenRecord{}, TokenPair{}, ErrInvalidRefreshToken
	}
	if rec.IsUsed {
		// Reuse detected: collapse trust in the whole rotation chain.
		if err := l.tokens.RevokeFamily(ctx, rec.FamilyID, ReasonReuseDetected, now); err != nil {
			return model.RefreshTokenRecord{}, TokenPair{}, fmt.Errorf("revoke family on reuse: %w", err)
		}
		return model.RefreshTokenRecord{}, TokenPair{}, ErrInvalidRefreshToken
	}
	if !SecretMatches(secret, rec.Salt, rec.SecretHash) {
		return model.RefreshTokenRecord{}, TokenPair{}, ErrInvalidRefreshToken
	}

	swapped, err := l.tokens.MarkUsed(ctx, rec.ID, now)
	if err != nil {
		return model.RefreshTokenRecord{}, TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !swapped {
		// Lost the race to a concurrent rotation of the same token: that is
		// reuse by definition.
		if err := l.tokens.RevokeFamily(ctx, rec.FamilyID, ReasonReuseDetected, now); err != nil {
			return model.RefreshTokenRecord{}, TokenPair{}, fmt.Errorf("revoke family on reuse: %w", err)
		}
		return model.RefreshTokenRecord{}, TokenPair{}, ErrInvalidRefreshToken
	}

	newPublic, newSecret, newSalt, err := GenerateRefreshSecret()
	if err != nil {
		return model.RefreshTokenRecord{}, TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	next := model.RefreshTokenRecord{
		UserID:        rec.UserID,
		PublicToken:   newPublic,
		SecretHash:    HashRefreshSecret(newSecret, newSalt),
		Salt:          newSalt,
		FamilyID:      rec.FamilyID,
		ParentTokenID: &rec.ID,
		IssuedAt:      now,
		ExpiresAt:     now.Add(l.ttl),
	}
	next.ID, err = l.tokens.Create(ctx, next)
	if err != nil {
		return model.RefreshTokenRecord{}, TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	return next, TokenPair{PublicToken: newPublic, Secret: newSecret}, nil
}

// Revoke marks a single token revoked. Revoking an already-revoked token is a
// no-op; sibling sessions in the same family stay valid.
func (l *RefreshTokenLedger) Revoke(ctx context.Context, publicToken, reason string) error {
	rec, err := l.tokens.FindByPublicToken(ctx, publicToken)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if err := l.tokens.Revoke(ctx, rec.ID, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeSession revokes a token only if it belongs to the given user. A token
// owned by someone else is indistinguishable from an unknown token.
func (l *RefreshTokenLedger) RevokeSession(ctx context.Context, userID uuid.UUID, publicToken, reason string) error {
	rec, err := l.tokens.FindByPublicToken(ctx, publicToken)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	if rec.UserID != userID {
		return ErrInvalidRefreshToken
	}
	if err := l.tokens.Revoke(ctx, rec.ID, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeFamily revokes every non-revoked member of a family
func (l *RefreshTokenLedger) RevokeFamily(ctx context.Context, familyID uuid.UUID, reason string) error {
	if err := l.tokens.RevokeFamily(ctx, familyID, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	return nil
}

// ListActiveSessions returns the user's redeemable sessions: not revoked, not
// yet rotated, not expired.
func (l *RefreshTokenLedger) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]model.RefreshTokenRecord, error) {
	recs, err := l.tokens.ListActiveByUser(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return recs, nil
}

// Cleanup deletes records that are expired, or used/revoked before olderThan.
// Returns the number removed. Safe to run concurrently with Issue and Rotate;
// the store's per-row atomicity is the only coordination.
func (l *RefreshTokenLedger) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := l.tokens.DeleteBefore(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleanup refresh tokens: %w", err)
	}
	return n, nil
}
