package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KYANTECH254/social-server/internal/apperrors"
	"github.com/KYANTECH254/social-server/internal/domain"
	"github.com/KYANTECH254/social-server/internal/httpclient"
)

const (
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Config holds the Google OAuth credentials. All three values must be set
// for the exchange to run; a request hitting an unconfigured exchange gets a
// CONFIG_ERROR, not a startup failure.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration
}

// Exchange turns a provider authorization code into a normalized federated
// identity. Stateless; the two external calls are sequential (the profile
// fetch needs the exchanged token) and are never retried.
type Exchange struct {
	cfg         Config
	client      *httpclient.Client
	tokenURL    string
	userinfoURL string
}

// NewExchange creates an identity exchange against Google's endpoints.
func NewExchange(cfg Config) *Exchange {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Exchange{
		cfg: cfg,
		client: httpclient.New(httpclient.Config{
			Timeout:         timeout,
			MaxRetries:      0,
			MaxConnsPerHost: 10,
		}),
		tokenURL:    defaultTokenURL,
		userinfoURL: defaultUserinfoURL,
	}
}

// WithEndpoints overrides the provider endpoints. Used by tests.
func (e *Exchange) WithEndpoints(tokenURL, userinfoURL string) *Exchange {
	e.tokenURL = tokenURL
	e.userinfoURL = userinfoURL
	return e
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type userinfoResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
}

// ExchangeCode performs the code-for-token exchange followed by the profile
// fetch and returns the normalized identity.
func (e *Exchange) ExchangeCode(ctx context.Context, code string) (*domain.FederatedIdentity, error) {
	if code == "" {
		return nil, apperrors.CodeMissing()
	}
	if e.cfg.ClientID == "" || e.cfg.ClientSecret == "" || e.cfg.RedirectURI == "" {
		return nil, apperrors.ConfigError("google oauth credentials not configured")
	}

	form := url.Values{
		"client_id":     {e.cfg.ClientID},
		"client_secret": {e.cfg.ClientSecret},
		"redirect_uri":  {e.cfg.RedirectURI},
		"grant_type":    {"authorization_code"},
		"code":          {code},
	}

	resp, err := e.client.Post(ctx, e.tokenURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.ProviderError("Failed to fetch access token")
	}
	defer resp.Body.Close()

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil || token.AccessToken == "" {
		return nil, apperrors.ProviderError("Failed to fetch access token")
	}

	profile, err := e.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	return profile, nil
}

func (e *Exchange) fetchProfile(ctx context.Context, accessToken string) (*domain.FederatedIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		return nil, apperrors.ProviderError("Failed to fetch user data")
	}
	defer resp.Body.Close()

	var info userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.Email == "" {
		return nil, apperrors.ProviderError("Failed to fetch user data")
	}

	return &domain.FederatedIdentity{
		ProviderUserID: info.ID,
		Email:          info.Email,
		Name:           info.Name,
		Avatar:         info.Picture,
		EmailVerified:  info.VerifiedEmail,
	}, nil
}
