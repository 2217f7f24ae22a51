package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, email, passwordHash string, role model.Role) (uuid.UUID, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, password_hash, role, is_active, station_id, created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var idStr string
	var stationID sql.NullString
	err := row.Scan(&idStr, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &stationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	if stationID.Valid && stationID.String != "" {
		s, err := uuid.Parse(stationID.String)
		if err != nil {
			return model.User{}, fmt.Errorf("parse station ID: %w", err)
		}
		u.StationID = &s
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user by id: %w", err)
	}
	return u, nil
}

// FindByEmail retrieves a user by email, matched case-insensitively
func (r *userRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user by email: %w", err)
	}
	return u, nil
}

// Create inserts a new user and returns its generated ID
func (r *userRepo) Create(ctx context.Context, email, passwordHash string, role model.Role) (uuid.UUID, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id
	`, email, passwordHash, string(role)).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse user ID: %w", err)
	}
	return id, nil
}
