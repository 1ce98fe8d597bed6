package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/KYANTECH254/social-server/internal/apperrors"
	"github.com/KYANTECH254/social-server/internal/domain"
	"github.com/KYANTECH254/social-server/internal/repository"
	"github.com/KYANTECH254/social-server/internal/token"
)

// Exchanger swaps an authorization code for a verified federated identity.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code string) (*domain.FederatedIdentity, error)
}

// EventPublisher emits auth domain events. Publishing is best-effort; a
// broker failure never fails the operation that triggered it.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserLoggedIn(ctx context.Context, user *domain.User, session *domain.Session) error
	PublishAccountCompleted(ctx context.Context, user *domain.User, account *domain.Account) error
}

// SessionMeta carries request attributes recorded on the audit session.
type SessionMeta struct {
	Device    string
	IP        string
	UserAgent string
}

// AccountSetupInput holds the parameters for completing a profile.
type AccountSetupInput struct {
	Email    string
	DOB      string
	Username string
}

// AuthResult is the orchestrator's answer to a sign-in or account setup:
// the merged user view, a fresh token pair, and whether the profile behind
// the identity is complete.
type AuthResult struct {
	User     *domain.UserView
	Tokens   *domain.TokenPair
	LoggedIn bool
}

// AuthService implements the business logic for federated authentication,
// account onboarding and token lifecycle.
type AuthService struct {
	userRepo     repository.UserRepository
	accountRepo  repository.AccountRepository
	refreshRepo  repository.RefreshTokenRepository
	sessionRepo  repository.SessionRepository
	accessTokens repository.AccessTokenStore
	tokens       *token.Manager
	exchanger    Exchanger
	producer     EventPublisher
	logger       *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	refreshRepo repository.RefreshTokenRepository,
	sessionRepo repository.SessionRepository,
	accessTokens repository.AccessTokenStore,
	tokens *token.Manager,
	exchanger Exchanger,
	producer EventPublisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		accountRepo:  accountRepo,
		refreshRepo:  refreshRepo,
		sessionRepo:  sessionRepo,
		accessTokens: accessTokens,
		tokens:       tokens,
		exchanger:    exchanger,
		producer:     producer,
		logger:       logger,
	}
}

// AuthenticateWithCode runs the full federated sign-in: exchange the code
// for a profile, upsert the user, mint and persist a token pair, and report
// whether the account behind the email is already set up.
func (s *AuthService) AuthenticateWithCode(ctx context.Context, code string, meta SessionMeta) (*AuthResult, error) {
	identity, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	_, err = s.userRepo.GetByEmail(ctx, identity.Email)
	isNewUser := errors.Is(err, apperrors.ErrNotFound)
	if err != nil && !isNewUser {
		return nil, apperrors.Internal(fmt.Errorf("lookup user: %w", err))
	}

	user, err := s.userRepo.Upsert(ctx, identity)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("upsert user: %w", err))
	}

	pair, session, err := s.issueTokens(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByEmail(ctx, user.Email)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("lookup account: %w", err))
	}

	if isNewUser {
		if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.registered event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.producer.PublishUserLoggedIn(ctx, user, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.logged_in event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user authenticated",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.Bool("new_user", isNewUser),
		slog.Bool("account_complete", account != nil),
	)

	return &AuthResult{
		User:     user.View(account),
		Tokens:   pair,
		LoggedIn: account != nil,
	}, nil
}

// CompleteAccountSetup finishes onboarding for an already-authenticated
// identity: it requires the user to exist, creates the unique username
// record, and hands back a fresh token pair with the merged view.
//
// The username and email pre-checks are advisory; the store's unique
// constraints are the authority under concurrent setup of the same values.
func (s *AuthService) CompleteAccountSetup(ctx context.Context, input AccountSetupInput, meta SessionMeta) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", input.Email)
		}
		return nil, apperrors.Internal(fmt.Errorf("lookup user: %w", err))
	}

	dob, err := time.Parse(domain.DOBFormat, input.DOB)
	if err != nil {
		return nil, apperrors.InvalidInput("Date of birth must be in YYYY-MM-DD format")
	}

	if _, err := s.accountRepo.GetByUsername(ctx, input.Username); err == nil {
		return nil, apperrors.ConstraintViolation("account", "username", input.Username)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("check username: %w", err))
	}
	if _, err := s.accountRepo.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.ConstraintViolation("account", "email", input.Email)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("check account email: %w", err))
	}

	account := &domain.Account{
		ID:        uuid.NewString(),
		Email:     input.Email,
		DOB:       dob,
		Username:  input.Username,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, err
		}
		return nil, apperrors.Internal(fmt.Errorf("create account: %w", err))
	}

	pair, _, err := s.issueTokens(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishAccountCompleted(ctx, user, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.completed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account setup completed",
		slog.String("user_id", user.ID),
		slog.String("username", account.Username),
	)

	return &AuthResult{
		User:     user.View(account),
		Tokens:   pair,
		LoggedIn: true,
	}, nil
}

// CheckUsernameAvailable reports whether the username is free. When taken,
// the existing account is returned so the caller can render who owns it.
func (s *AuthService) CheckUsernameAvailable(ctx context.Context, username string) (*domain.Account, bool, error) {
	account, err := s.accountRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, true, nil
		}
		return nil, false, apperrors.Internal(fmt.Errorf("check username: %w", err))
	}

	return account, false, nil
}

// Profile returns the merged view for an authenticated email.
func (s *AuthService) Profile(ctx context.Context, email string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", email)
		}
		return nil, apperrors.Internal(fmt.Errorf("lookup user: %w", err))
	}

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("lookup account: %w", err))
	}

	return &AuthResult{
		User:     user.View(account),
		LoggedIn: account != nil,
	}, nil
}

// Rotate exchanges a valid refresh token for a fresh pair. The old token is
// retired only after the replacement is safely persisted; if persisting the
// replacement fails, nothing is deleted and the rotation fails outright.
func (s *AuthService) Rotate(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidToken()
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.deleteStaleToken(ctx, refreshToken)
			return nil, apperrors.Expired()
		}
		return nil, apperrors.InvalidToken()
	}

	stored, err := s.refreshRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidToken()
		}
		return nil, apperrors.Internal(fmt.Errorf("lookup refresh token: %w", err))
	}

	if stored.UserID != claims.UserID {
		return nil, apperrors.InvalidToken()
	}

	if time.Now().UTC().After(stored.ExpiresAt) {
		s.deleteStaleToken(ctx, refreshToken)
		return nil, apperrors.Expired()
	}

	pair, refreshExpiry, err := s.tokens.IssuePair(stored.UserID, stored.UserEmail)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("issue tokens: %w", err))
	}

	if err := s.refreshRepo.Create(ctx, stored.UserID, pair.RefreshToken, refreshExpiry); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("persist rotated token: %w", err))
	}

	if _, err := s.refreshRepo.Delete(ctx, refreshToken); err != nil {
		// Keep the store consistent: undo the replacement rather than leave
		// two live tokens for one rotation.
		if _, undoErr := s.refreshRepo.Delete(ctx, pair.RefreshToken); undoErr != nil {
			s.logger.ErrorContext(ctx, "failed to undo rotated token after delete failure",
				slog.String("user_id", stored.UserID),
				slog.String("error", undoErr.Error()),
			)
		}
		return nil, apperrors.Internal(fmt.Errorf("retire old refresh token: %w", err))
	}

	s.logger.InfoContext(ctx, "refresh token rotated",
		slog.String("user_id", stored.UserID),
	)

	return pair, nil
}

// Logout retires a refresh token and mirrors the access token into the
// revocation denylist. A refresh token that is already gone still counts as
// a successful logout.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	if refreshToken != "" {
		if _, err := s.refreshRepo.Delete(ctx, refreshToken); err != nil {
			return apperrors.Internal(fmt.Errorf("delete refresh token: %w", err))
		}
	}

	if accessToken != "" {
		s.revokeAccess(ctx, accessToken)
	}

	s.logger.InfoContext(ctx, "user logged out")

	return nil
}

// ValidateAccess verifies an access token and rejects ones revoked at logout.
func (s *AuthService) ValidateAccess(ctx context.Context, accessToken string) (*token.AccessClaims, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired access token")
	}

	revoked, err := s.accessTokens.IsRevoked(ctx, accessToken)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("check access token revocation: %w", err))
	}
	if revoked {
		return nil, apperrors.Unauthorized("access token has been revoked")
	}

	return claims, nil
}

// issueTokens mints a pair, persists the refresh token, and records an audit
// session. The session write is best-effort: tokens already minted are still
// returned when it fails.
func (s *AuthService) issueTokens(ctx context.Context, user *domain.User, meta SessionMeta) (*domain.TokenPair, *domain.Session, error) {
	pair, refreshExpiry, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, nil, apperrors.Internal(fmt.Errorf("issue tokens: %w", err))
	}

	if err := s.refreshRepo.Create(ctx, user.ID, pair.RefreshToken, refreshExpiry); err != nil {
		return nil, nil, apperrors.Internal(fmt.Errorf("persist refresh token: %w", err))
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Device:    meta.Device,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		ExpiresAt: refreshExpiry,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to record session",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		session = nil
	}

	return pair, session, nil
}

// deleteStaleToken removes an expired refresh token row, logging on failure.
func (s *AuthService) deleteStaleToken(ctx context.Context, refreshToken string) {
	if _, err := s.refreshRepo.Delete(ctx, refreshToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete stale refresh token",
			slog.String("error", err.Error()),
		)
	}
}

// revokeAccess denylists an access token for the remainder of its lifetime.
// Best-effort: the token expires on its own within minutes regardless.
func (s *AuthService) revokeAccess(ctx context.Context, accessToken string) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if _, err := s.accessTokens.Revoke(ctx, accessToken, ttl); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke access token",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
	}
}
