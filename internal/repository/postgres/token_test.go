package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KYANTECH254/social-server/internal/apperrors"
)

func newTokenTestFixture(t *testing.T) (*RefreshTokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewRefreshTokenRepository(mock)
	return repo, mock
}

func tokenColumns() []string {
	return []string{"id", "user_id", "token_hash", "expires_at", "created_at", "email"}
}

func TestRefreshTokenRepository_Create_HashesToken(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	raw := "eyJhbGciOiJIUzI1NiJ9.raw-refresh-token"
	expiresAt := time.Now().UTC().Add(7 * 24 * time.Hour)

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(pgxmock.AnyArg(), "u-1234", hashToken(raw), expiresAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), "u-1234", raw, expiresAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetByToken_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	raw := "raw-refresh-token"
	now := time.Now().UTC().Truncate(time.Microsecond)
	expiresAt := now.Add(7 * 24 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM refresh_tokens").
		WithArgs(hashToken(raw)).
		WillReturnRows(pgxmock.NewRows(tokenColumns()).
			AddRow("rt-1", "u-1234", hashToken(raw), expiresAt, now, "alice@example.com"))

	got, err := repo.GetByToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1234", got.UserID)
	assert.Equal(t, "alice@example.com", got.UserEmail)
	assert.Equal(t, expiresAt, got.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetByToken_NotFound(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM refresh_tokens").
		WithArgs(hashToken("unknown")).
		WillReturnRows(pgxmock.NewRows(tokenColumns()))

	got, err := repo.GetByToken(context.Background(), "unknown")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_Delete_Existing(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs(hashToken("raw-refresh-token")).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	existed, err := repo.Delete(context.Background(), "raw-refresh-token")
	assert.NoError(t, err)
	assert.True(t, existed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_Delete_AlreadyGone(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs(hashToken("raw-refresh-token")).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	existed, err := repo.Delete(context.Background(), "raw-refresh-token")
	assert.NoError(t, err)
	assert.False(t, existed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_Delete_QueryError(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	existed, err := repo.Delete(context.Background(), "raw-refresh-token")
	assert.False(t, existed)
	assert.ErrorContains(t, err, "delete refresh token")
	assert.NoError(t, mock.ExpectationsWereMet())
}
