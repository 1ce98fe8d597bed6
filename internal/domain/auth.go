package domain

import "time"

// DOBFormat is the wire format for dates of birth.
const DOBFormat = "2006-01-02"

// User is the federated identity record. Created on first Google login,
// upserted (name/avatar/verified flag) on every subsequent one. Never
// deleted.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Avatar        string    `json:"avatar,omitempty"`
	GoogleID      string    `json:"-"`
	EmailVerified bool      `json:"verifiedEmail"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// FederatedIdentity is the normalized profile obtained from the identity
// provider after code exchange.
type FederatedIdentity struct {
	ProviderUserID string
	Email          string
	Name           string
	Avatar         string
	EmailVerified  bool
}

// Account is the local profile completion record, one-to-one with a User by
// email. Its absence marks onboarding as incomplete. Immutable once created.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	DOB       time.Time `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// RefreshToken is a persisted opaque credential. Only the SHA-256 hash of the
// token string is stored. UserEmail is joined from the owning user row.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	UserEmail string
}

// Session is a write-only audit record created alongside refresh-token
// issuance. This service never reads sessions back.
type Session struct {
	ID        string
	UserID    string
	Device    string
	IP        string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenPair holds a freshly minted access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserView is the user representation returned to clients: the User merged
// with Account fields when onboarding is complete.
type UserView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Avatar        string    `json:"avatar,omitempty"`
	EmailVerified bool      `json:"verifiedEmail"`
	Username      string    `json:"username,omitempty"`
	DOB           string    `json:"dob,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// View builds the client-facing representation of the user. A nil account
// yields a view without username/dob, signalling incomplete onboarding.
func (u *User) View(account *Account) *UserView {
	v := &UserView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Avatar:        u.Avatar,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if account != nil {
		v.Username = account.Username
		v.DOB = account.DOB.Format(DOBFormat)
	}
	return v
}
