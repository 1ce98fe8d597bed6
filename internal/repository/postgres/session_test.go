package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KYANTECH254/social-server/internal/domain"
)

func newSessionTestFixture(t *testing.T) (*SessionRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewSessionRepository(mock)
	return repo, mock
}

func TestSessionRepository_Create_Success(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)
	s := &domain.Session{
		ID:        "s-91",
		UserID:    "u-1234",
		Device:    "web",
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(s.ID, s.UserID, s.Device, s.IP, s.UserAgent, s.ExpiresAt, s.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Create_QueryError(t *testing.T) {
	repo, mock := newSessionTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &domain.Session{ID: "s-91"})
	assert.ErrorContains(t, err, "insert session")
	assert.NoError(t, mock.ExpectationsWereMet())
}
