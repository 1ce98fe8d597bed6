package repository

import (
	"context"
	"time"

	"github.com/KYANTECH254/social-server/internal/domain"
)

// UserRepository persists federated identity records.
type UserRepository interface {
	// GetByID retrieves a user by internal id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Upsert matches by email: on match it updates name, avatar and the
	// verified flag; otherwise it creates a new user recording the provider
	// id. Returns the stored row either way.
	Upsert(ctx context.Context, identity *domain.FederatedIdentity) (*domain.User, error)
}

// AccountRepository persists profile completion records.
type AccountRepository interface {
	// GetByUsername retrieves an account by its unique username.
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)

	// GetByEmail retrieves an account by its unique email.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// Create inserts a new account. A duplicate username or email surfaces
	// a constraint violation; it is never retried.
	Create(ctx context.Context, account *domain.Account) error
}

// RefreshTokenRepository persists refresh tokens, keyed by token hash.
type RefreshTokenRepository interface {
	// Create stores a new refresh token for the user.
	Create(ctx context.Context, userID, token string, expiresAt time.Time) error

	// GetByToken retrieves the persisted record for a raw token, joined with
	// the owning user's email.
	GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error)

	// Delete removes the persisted record for a raw token. Reports whether a
	// row existed; deleting an absent token is not an error.
	Delete(ctx context.Context, token string) (bool, error)
}

// SessionRepository records audit sessions. Write-only from this service.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
}

// AccessTokenStore is the revocation mirror for otherwise stateless access
// tokens, keyed by token value with a bounded lifetime.
type AccessTokenStore interface {
	// Revoke denylists the token for ttl. Reports whether the entry was
	// newly created.
	Revoke(ctx context.Context, token string, ttl time.Duration) (bool, error)

	// IsRevoked reports whether the token has been denylisted.
	IsRevoked(ctx context.Context, token string) (bool, error)
}
