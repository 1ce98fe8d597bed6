package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KYANTECH254/social-server/internal/apperrors"
	"github.com/KYANTECH254/social-server/internal/middleware"
	"github.com/KYANTECH254/social-server/internal/service"
	"github.com/KYANTECH254/social-server/internal/validator"
)

// AuthHandler handles HTTP requests for the auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// GoogleAuthRequest is the JSON request body for the code exchange.
type GoogleAuthRequest struct {
	Code string `json:"code"`
}

// CheckUsernameRequest is the JSON request body for the availability check.
type CheckUsernameRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
}

// AccountSetupRequest is the JSON request body for completing a profile.
type AccountSetupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	DOB      string `json:"dob" validate:"required,datetime=2006-01-02"`
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
}

// RefreshRequest is the JSON request body for token rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest is the JSON request body for logout. The refresh token is
// optional; a missing one still yields a successful logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// --- Response types ---

// AuthResponse is the uniform body for sign-in and account setup. Domain
// failures are reported here with success:false and a 200 status; only a
// misconfigured provider yields a non-200.
type AuthResponse struct {
	LoggedIn     bool   `json:"loggedin"`
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	User         any    `json:"user,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// CheckResponse is the body for the username availability check. When the
// name is taken, only the username itself is echoed back; the owning
// account's email is never disclosed to an unauthenticated probe.
type CheckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    any    `json:"user,omitempty"`
}

// CheckedUser is the taken-username payload inside CheckResponse.
type CheckedUser struct {
	Username string `json:"username"`
}

// RefreshResponse is the body for token rotation.
type RefreshResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// LogoutResponse is the body for logout.
type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Handlers ---

// GoogleAuth handles POST /api/auth/google
func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req GoogleAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}

	result, err := h.service.AuthenticateWithCode(r.Context(), req.Code, sessionMeta(r))
	if err != nil {
		h.writeAuthFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		LoggedIn:     result.LoggedIn,
		Success:      true,
		Message:      "Authentication successful",
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

// CheckUsername handles POST /api/check/username
func (h *AuthHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CheckUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		writeJSON(w, http.StatusOK, CheckResponse{Success: false, Message: validationMessage(err)})
		return
	}

	account, available, err := h.service.CheckUsernameAvailable(r.Context(), req.Username)
	if err != nil {
		h.logError(r, err)
		writeJSON(w, http.StatusOK, CheckResponse{Success: false, Message: "Internal server error"})
		return
	}

	if !available {
		writeJSON(w, http.StatusOK, CheckResponse{
			Success: false,
			Message: "Username already taken",
			User:    CheckedUser{Username: account.Username},
		})
		return
	}

	writeJSON(w, http.StatusOK, CheckResponse{Success: true, Message: "Username available"})
}

// AccountSetup handles POST /api/auth/account and its legacy alias
// POST /api/auth/updateUser.
func (h *AuthHandler) AccountSetup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req AccountSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		writeJSON(w, http.StatusOK, AuthResponse{Success: false, Message: validationMessage(err)})
		return
	}

	input := service.AccountSetupInput{
		Email:    req.Email,
		DOB:      req.DOB,
		Username: req.Username,
	}

	result, err := h.service.CompleteAccountSetup(r.Context(), input, sessionMeta(r))
	if err != nil {
		h.writeAuthFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		LoggedIn:     true,
		Success:      true,
		Message:      "Account setup complete",
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}

	pair, err := h.service.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		h.logError(r, err)
		writeJSON(w, http.StatusOK, RefreshResponse{Success: false, Message: domainMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		Success:      true,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LogoutRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, err)
			return
		}
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken, bearerToken(r)); err != nil {
		h.logError(r, err)
		writeJSON(w, http.StatusOK, LogoutResponse{Success: false, Message: "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, LogoutResponse{Success: true})
}

// Me handles GET /api/auth/me (requires a valid access token).
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	email := middleware.EmailFromContext(r.Context())

	result, err := h.service.Profile(r.Context(), email)
	if err != nil {
		h.writeAuthFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		LoggedIn: result.LoggedIn,
		Success:  true,
		Message:  "OK",
		User:     result.User,
	})
}

// --- Helpers ---

// sessionMeta extracts the request attributes recorded on audit sessions.
func sessionMeta(r *http.Request) service.SessionMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	} else if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = strings.TrimSpace(ip[:i])
	}

	return service.SessionMeta{
		Device:    r.Header.Get("X-Device"),
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}

// bearerToken extracts the access token from the Authorization header, if any.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return auth[7:]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, AuthResponse{
		Success: false,
		Message: "Invalid request body: " + err.Error(),
	})
}

// writeAuthFailure renders a failed auth operation. Everything is a 200 with
// success:false except provider misconfiguration, which is a genuine 500.
func (h *AuthHandler) writeAuthFailure(w http.ResponseWriter, r *http.Request, err error) {
	h.logError(r, err)

	status := http.StatusOK
	if errors.Is(err, apperrors.ErrConfig) {
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, AuthResponse{
		Success: false,
		Message: domainMessage(err),
	})
}

// domainMessage picks the client-facing message for an error, hiding the
// detail of anything unexpected.
func domainMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != "INTERNAL_ERROR" {
		return appErr.Message
	}
	return "Internal server error"
}

func validationMessage(err error) string {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		for _, msg := range valErr.Fields() {
			return msg
		}
	}
	return "Request validation failed"
}

func (h *AuthHandler) logError(r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "auth request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}
