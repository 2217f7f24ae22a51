package auth

import (
	"github.com/google/uuid"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/model"
)

// Status is the closed set of authentication outcome codes.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusInvalidCredentials  Status = "invalid_credentials"
	StatusUserNotFound        Status = "user_not_found"
	StatusUserInactive        Status = "user_inactive"
	StatusOwnerDeactivated    Status = "owner_deactivated"
	StatusInvalidRefreshToken Status = "invalid_refresh_token"
	StatusFailed              Status = "failed"
)

// Message returns the caller-facing message for the status. Messages are
// deliberately generic so failures do not enable account enumeration.
func (s Status) Message() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidCredentials:
		return "invalid email or password"
	case StatusUserNotFound:
		return "invalid email or password"
	case StatusUserInactive:
		return "account is deactivated"
	case StatusOwnerDeactivated:
		return "EV owner account is deactivated, please contact support to reactivate"
	case StatusInvalidRefreshToken:
		return "invalid or expired refresh token"
	default:
		return "request failed"
	}
}

// TokenPair is a refresh token credential: the public token identifier and
// the one-time-visible secret.
type TokenPair struct {
	PublicToken string
	Secret      string
}

// UserInfo is the user payload attached to successful outcomes
type UserInfo struct {
	ID    uuid.UUID
	Email string
	Role  model.Role
}

// AuthOutcome is the result of a login or registration attempt
type AuthOutcome struct {
	Status       Status
	AccessToken  string
	RefreshToken TokenPair
	User         UserInfo
}

// RefreshOutcome is the result of a refresh token rotation attempt
type RefreshOutcome struct {
	Status       Status
	AccessToken  string
	RefreshToken TokenPair
}

func authFailure(status Status) AuthOutcome {
	return AuthOutcome{Status: status}
}

func refreshFailure(status Status) RefreshOutcome {
	return RefreshOutcome{Status: status}
}
