package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/model"
)

// OwnerRepo defines the interface for EV-owner profile repository operations
type OwnerRepo interface {
	FindByNIC(ctx context.Context, nic string) (model.EVOwnerProfile, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (model.EVOwnerProfile, error)
	ExistsForUser(ctx context.Context, userID uuid.UUID) (bool, error)
	Create(ctx context.Context, nic string, userID uuid.UUID) (uuid.UUID, error)
}

type ownerRepo struct {
	db *sql.DB
}

// NewOwnerRepo creates a new OwnerRepo instance
func NewOwnerRepo(db *sql.DB) OwnerRepo {
	return &ownerRepo{db: db}
}

// FindByNIC retrieves an owner profile by national identity number
func (r *ownerRepo) FindByNIC(ctx context.Context, nic string) (model.EVOwnerProfile, error) {
	var p model.EVOwnerProfile
	var idStr, userIDStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, nic, user_id, is_deactivated, created_at
		FROM ev_owner_profiles
		WHERE nic = $1
	`, nic).Scan(&idStr, &p.NIC, &userIDStr, &p.IsDeactivated, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.EVOwnerProfile{}, ErrNotFound
		}
		return model.EVOwnerProfile{}, fmt.Errorf("query owner profile by nic: %w", err)
	}
	if p.ID, err = uuid.Parse(idStr); err != nil {
		return model.EVOwnerProfile{}, fmt.Errorf("parse profile ID: %w", err)
	}
	if p.UserID, err = uuid.Parse(userIDStr); err != nil {
		return model.EVOwnerProfile{}, fmt.Errorf("parse profile user ID: %w", err)
	}
	return p, nil
}

// FindByUserID retrieves the owner profile linked to a user account
func (r *ownerRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (model.EVOwnerProfile, error) {
	var p model.EVOwnerProfile
	var idStr, userIDStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, nic, user_id, is_deactivated, created_at
		FROM ev_owner_profiles
		WHERE user_id = $1
	`, userID).Scan(&idStr, &p.NIC, &userIDStr, &p.IsDeactivated, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.EVOwnerProfile{}, ErrNotFound
		}
		return model.EVOwnerProfile{}, fmt.Errorf("query owner profile by user: %w", err)
	}
	if p.ID, err = uuid.Parse(idStr); err != nil {
		return model.EVOwnerProfile{}, fmt.Errorf("parse profile ID: %w", err)
	}
	if p.UserID, err = uuid.Parse(userIDStr); err != nil {
		return model.EVOwnerProfile{}, fmt.Errorf("parse profile user ID: %w", err)
	}
	return p, nil
}

// ExistsForUser reports whether any owner profile is linked to the user
func (r *ownerRepo) ExistsForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM ev_owner_profiles WHERE user_id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query owner profile existence: %w", err)
	}
	return exists, nil
}

// Create inserts a new owner profile and returns its generated ID
func (r *ownerRepo) Create(ctx context.Context, nic string, userID uuid.UUID) (uuid.UUID, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO ev_owner_profiles (nic, user_id)
		VALUES ($1, $2)
		RETURNING id
	`, nic, userID).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert owner profile: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse profile ID: %w", err)
	}
	return id, nil
}
