package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/KYANTECH254/social-server/internal/apperrors"
	"github.com/KYANTECH254/social-server/internal/database"
	"github.com/KYANTECH254/social-server/internal/domain"
)

// RefreshTokenRepository implements repository.RefreshTokenRepository using
// PostgreSQL. Tokens are stored as SHA-256 hashes; the raw value never
// touches disk.
type RefreshTokenRepository struct {
	db database.DBTX
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(db database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a new refresh token for the user.
func (r *RefreshTokenRepository) Create(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		uuid.NewString(),
		userID,
		hashToken(token),
		expiresAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByToken retrieves the persisted record for a raw token, joined with the
// owning user's email.
func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	query := `
		SELECT rt.id, rt.user_id, rt.token_hash, rt.expires_at, rt.created_at, u.email
		FROM refresh_tokens rt
		JOIN users u ON u.id = rt.user_id
		WHERE rt.token_hash = $1`

	var rt domain.RefreshToken
	err := r.db.QueryRow(ctx, query, hashToken(token)).Scan(
		&rt.ID,
		&rt.UserID,
		&rt.TokenHash,
		&rt.ExpiresAt,
		&rt.CreatedAt,
		&rt.UserEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &rt, nil
}

// Delete removes the persisted record for a raw token. Deleting a token that
// is already gone reports false without an error.
func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) (bool, error) {
	query := `DELETE FROM refresh_tokens WHERE token_hash = $1`

	ct, err := r.db.Exec(ctx, query, hashToken(token))
	if err != nil {
		return false, fmt.Errorf("delete refresh token: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// hashToken returns the hex-encoded SHA-256 digest used as the at-rest key.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
