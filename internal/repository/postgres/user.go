package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/KYANTECH254/social-server/internal/apperrors"
	"github.com/KYANTECH254/social-server/internal/database"
	"github.com/KYANTECH254/social-server/internal/domain"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, name, avatar, google_id, email_verified, created_at, updated_at
		FROM users
		WHERE id = $1`

	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, name, avatar, google_id, email_verified, created_at, updated_at
		FROM users
		WHERE email = $1`

	return r.scanUser(ctx, query, email)
}

// Upsert inserts the identity as a new user, or on an email match refreshes
// name, avatar and the verified flag from the provider profile.
func (r *UserRepository) Upsert(ctx context.Context, identity *domain.FederatedIdentity) (*domain.User, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO users (id, email, name, avatar, google_id, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    avatar = EXCLUDED.avatar,
		    email_verified = EXCLUDED.email_verified,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, email, name, avatar, google_id, email_verified, created_at, updated_at`

	var u domain.User
	err := r.db.QueryRow(ctx, query,
		uuid.NewString(),
		identity.Email,
		identity.Name,
		identity.Avatar,
		identity.ProviderUserID,
		identity.EmailVerified,
		now,
	).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Avatar,
		&u.GoogleID,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return &u, nil
}

// scanUser is a helper that executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Avatar,
		&u.GoogleID,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
