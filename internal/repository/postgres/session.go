package postgres

import (
	"context"
	"fmt"

	"github.com/KYANTECH254/social-server/internal/database"
	"github.com/KYANTECH254/social-server/internal/domain"
)

// SessionRepository implements repository.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db database.DBTX
}

// NewSessionRepository creates a new PostgreSQL-backed session repository.
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create records an audit session for a sign-in.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, device, ip, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.Device,
		s.IP,
		s.UserAgent,
		s.ExpiresAt,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}
