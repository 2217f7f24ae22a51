package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/model"
)

// RefreshTokenRepo defines the interface for refresh token record operations.
// The ledger is the only caller; handlers never touch records directly.
type RefreshTokenRepo interface {
	Create(ctx context.Context, rec model.RefreshTokenRecord) (uuid.UUID, error)
	FindByPublicToken(ctx context.Context, publicToken string) (model.RefreshTokenRecord, error)
	// MarkUsed flips is_used on the record only if it is still unused and not
	// revoked. Returns false when the conditional update matched no row, which
	// means a concurrent caller won the race.
	MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) (bool, error)
	Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	RevokeFamily(ctx context.Context, familyID uuid.UUID, reason string, at time.Time) error
	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.RefreshTokenRecord, error)
	DeleteBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

type refreshTokenRepo struct {
	db *sql.DB
}

// NewRefreshTokenRepo creates a new RefreshTokenRepo instance
func NewRefreshTokenRepo(db *sql.DB) RefreshTokenRepo {
	return &refreshTokenRepo{db: db}
}

const tokenColumns = `id, user_id, public_token, secret_hash, salt, family_id, parent_token_id,
		issued_at, expires_at, last_used_at, is_revoked, revoked_at, revoked_reason, is_used, used_at`

func scanToken(scan func(dest ...any) error) (model.RefreshTokenRecord, error) {
	var rec model.RefreshTokenRecord
	var idStr, userIDStr, familyIDStr string
	var parentStr sql.NullString
	err := scan(
		&idStr, &userIDStr, &rec.PublicToken, &rec.SecretHash, &rec.Salt, &familyIDStr, &parentStr,
		&rec.IssuedAt, &rec.ExpiresAt, &rec.LastUsedAt, &rec.IsRevoked, &rec.RevokedAt, &rec.RevokedReason,
		&rec.IsUsed, &rec.UsedAt,
	)
	if err != nil {
		return model.RefreshTokenRecord{}, err
	}
	if rec.ID, err = uuid.Parse(idStr); err != nil {
		return model.RefreshTokenRecord{}, fmt.Errorf("parse token ID: %w", err)
	}
	if rec.UserID, err = uuid.Parse(userIDStr); err != nil {
		return model.RefreshTokenRecord{}, fmt.Errorf("parse token user ID: %w", err)
	}
	if rec.FamilyID, err = uuid.Parse(familyIDStr); err != nil {
		return model.RefreshTokenRecord{}, fmt.Errorf("parse token family ID: %w", err)
	}
	if parentStr.Valid && parentStr.String != "" {
		p, err := uuid.Parse(parentStr.String)
		if err != nil {
			return model.RefreshTokenRecord{}, fmt.Errorf("parse parent token ID: %w", err)
		}
		rec.ParentTokenID = &p
	}
	return rec, nil
}

// Create inserts a new refresh token record
func (r *refreshTokenRepo) Create(ctx context.Context, rec model.RefreshTokenRecord) (uuid.UUID, error) {
	var parent any
	if rec.ParentTokenID != nil {
		parent = rec.ParentTokenID.String()
	}
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (user_id, public_token, secret_hash, salt, family_id, parent_token_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, rec.UserID, rec.PublicToken, rec.SecretHash, rec.Salt, rec.FamilyID, parent, rec.IssuedAt, rec.ExpiresAt).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert refresh token: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse token ID: %w", err)
	}
	return id, nil
}

// FindByPublicToken returns the record regardless of state (used for reuse detection)
func (r *refreshTokenRepo) FindByPublicToken(ctx context.Context, publicToken string) (model.RefreshTokenRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tokenColumns+`
		FROM refresh_tokens
		WHERE public_token = $1
	`, publicToken)
	rec, err := scanToken(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.RefreshTokenRecord{}, ErrNotFound
		}
		return model.RefreshTokenRecord{}, fmt.Errorf("query refresh token: %w", err)
	}
	return rec, nil
}

// MarkUsed performs the conditional unused -> used transition
func (r *refreshTokenRepo) MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET is_used = TRUE, used_at = $2, last_used_at = $2
		WHERE id = $1 AND is_used = FALSE AND is_revoked = FALSE
	`, id, usedAt)
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark token used rows: %w", err)
	}
	return n == 1, nil
}

// Revoke marks the record revoked if it is not already; already-revoked is a no-op
func (r *refreshTokenRepo) Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $2, revoked_reason = $3
		WHERE id = $1 AND is_revoked = FALSE
	`, id, at, reason)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeFamily revokes every non-revoked member of a token family
func (r *refreshTokenRepo) RevokeFamily(ctx context.Context, familyID uuid.UUID, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $2, revoked_reason = $3
		WHERE family_id = $1 AND is_revoked = FALSE
	`, familyID, at, reason)
	if err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	return nil
}

// ListActiveByUser returns non-revoked, non-used, non-expired records for the user
func (r *refreshTokenRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.RefreshTokenRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tokenColumns+`
		FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = FALSE AND is_used = FALSE AND expires_at > $2
		ORDER BY issued_at DESC
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	defer rows.Close()

	var recs []model.RefreshTokenRecord
	for rows.Next() {
		rec, err := scanToken(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan active token: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active tokens: %w", err)
	}
	return recs, nil
}

// DeleteBefore removes expired records, plus used or revoked records whose
// terminal transition happened before the cutoff. Returns the removed count.
func (r *refreshTokenRepo) DeleteBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
		   OR (is_revoked = TRUE AND revoked_at < $1)
		   OR (is_used = TRUE AND used_at < $1)
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete stale tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale tokens rows: %w", err)
	}
	return n, nil
}
