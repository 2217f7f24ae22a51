package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the fixed set of user roles.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleStationUser Role = "StationUser"
	RoleEVOwner     Role = "EVOwner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStationUser, RoleEVOwner:
		return true
	}
	return false
}

// User represents an account in the system
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	StationID    *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EVOwnerProfile links a national identity number to an EV-owner account
type EVOwnerProfile struct {
	ID            uuid.UUID
	NIC           string
	UserID        uuid.UUID
	IsDeactivated bool
	CreatedAt     time.Time
}

// RefreshTokenRecord represents one issued refresh token.
// A record transitions unused -> used at most once and active -> revoked at
// most once; both transitions are terminal. All records sharing a FamilyID
// are revoked together when reuse of a spent token is detected.
type RefreshTokenRecord struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	PublicToken   string
	SecretHash    string
	Salt          string
	FamilyID      uuid.UUID
	ParentTokenID *uuid.UUID
	IssuedAt      time.Time
	ExpiresAt     time.Time
	LastUsedAt    *time.Time
	IsRevoked     bool
	RevokedAt     *time.Time
	RevokedReason *string
	IsUsed        bool
	UsedAt        *time.Time
}

// Expired reports whether the record is past its expiry at the given instant.
func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
