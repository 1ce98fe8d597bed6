package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/KYANTECH254/social-server/internal/domain"
)

const issuer = "social-server"

// AccessClaims are the claims carried by a signed access token.
type AccessClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims carried by a signed refresh token.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Manager mints and verifies access/refresh token pairs. Access and refresh
// tokens are signed with distinct secrets so one kind can never pass as the
// other. It does not persist anything; the caller stores the refresh token.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewManager creates a token manager with the given secrets and validity
// windows (15 minutes access, 7 days refresh in production configuration).
func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the access token validity window.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the refresh token validity window.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssuePair signs a new access/refresh pair bound to the given user. The
// returned expiry is the refresh token's, for the caller to persist.
func (m *Manager) IssuePair(userID, email string) (*domain.TokenPair, time.Time, error) {
	now := time.Now().UTC()

	access, err := m.signAccess(userID, email, now)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpiry := now.Add(m.refreshTTL)
	refresh, err := m.signRefresh(userID, now, refreshExpiry)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, refreshExpiry, nil
}

func (m *Manager) signAccess(userID, email string, now time.Time) (string, error) {
	claims := &AccessClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
}

func (m *Manager) signRefresh(userID string, now, expiresAt time.Time) (string, error) {
	claims := &RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// Unique per mint so back-to-back rotations in the same second
			// never produce colliding token hashes.
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
}

// ValidateAccessToken parses and verifies an access token.
func (m *Manager) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.accessSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}

	return claims, nil
}

// ValidateRefreshToken parses and verifies a refresh token.
func (m *Manager) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.refreshSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse refresh token: %w", err)
	}

	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid refresh token claims")
	}

	return claims, nil
}
