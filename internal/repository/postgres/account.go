package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/KYANTECH254/social-server/internal/apperrors"
	"github.com/KYANTECH254/social-server/internal/database"
	"github.com/KYANTECH254/social-server/internal/domain"
)

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByUsername retrieves an account by its username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `
		SELECT id, email, dob, username, created_at
		FROM accounts
		WHERE username = $1`

	return r.scanAccount(ctx, query, username)
}

// GetByEmail retrieves an account by its email address.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `
		SELECT id, email, dob, username, created_at
		FROM accounts
		WHERE email = $1`

	return r.scanAccount(ctx, query, email)
}

// Create inserts a new account. Username and email are both unique; a
// collision on either surfaces as a constraint violation.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	query := `
		INSERT INTO accounts (id, email, dob, username, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.Email,
		a.DOB,
		a.Username,
		a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ConstraintViolation("account", "username", a.Username)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// scanAccount is a helper that executes a query expected to return a single account row.
func (r *AccountRepository) scanAccount(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	var a domain.Account

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Email,
		&a.DOB,
		&a.Username,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &a, nil
}
