package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/watchme/internal/auth"
	"github.com/sakif/watchme/internal/service"
)

const stateCookie = "oauth_state"

// GitHubAuthenticator is the OAuth half of *auth.GitHubProvider.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, string, error)
}

// AuthHandler manages sign-up, sign-in and the GitHub OAuth flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister         → create a local account
//   - HandleLogin            → verify a password, issue a JWT
//   - HandleCheckCredentials → tell a sign-up form what is taken
//   - HandleGitHubLogin      → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback   → receive the code, sign the account in, redirect to the app
//   - HandleLogout           → clear the JWT cookie
//
// DEPENDENCY CHAIN:
//   - accounts *service.AccountService → all account rules
//   - github   GitHubAuthenticator     → nil when GitHub login is not configured
type AuthHandler struct {
	accounts    *service.AccountService
	github      GitHubAuthenticator
	cookieTTL   time.Duration
	frontendURL string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieTTL should match the token
// lifetime so the cookie never outlives the JWT inside it.
func NewAuthHandler(
	accounts *service.AccountService,
	github GitHubAuthenticator,
	cookieTTL time.Duration,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:    accounts,
		github:      github,
		cookieTTL:   cookieTTL,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

type registerRequest struct {
	Username  string `json:"username"  validate:"required,min=3,max=32,alphanumunicode"`
	Email     string `json:"email"     validate:"required,email,max=254"`
	Password  string `json:"password"  validate:"required,min=6,max=72"`
	FirstName string `json:"firstName" validate:"max=64"`
	LastName  string `json:"lastName"  validate:"max=64"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// HandleRegister creates a local account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"username", "email", "password", "firstName", "lastName"}
//
// Registration does not sign the account in; the client logs in next.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accounts.Register(r.Context(), service.Registration{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// HandleLogin verifies a local password.
//
// HTTP: POST /auth/login
// RESPONSE: {"account": {...}, "token": "<jwt>"} plus the token cookie.
//
// The token is returned in the body for API clients and set as a cookie
// for browsers; the auth middleware accepts either.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res)
}

// HandleCheckCredentials reports whether a username or email is taken.
//
// HTTP: POST /auth/check-credentials
func (h *AuthHandler) HandleCheckCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.CheckCredentials(r.Context(), req.Username, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "GitHub login is not configured"})
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile and access token
//  3. Sign in (creating the account on first contact)
//  4. Set the token cookie and redirect to FRONTEND_URL?token=...
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "GitHub login is not configured"})
		return
	}

	// --- Step 1: Validate CSRF state ---
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("auth callback: invalid state")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid OAuth state"})
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.frontendRedirect(url.Values{"auth": {"denied"}}), http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "missing OAuth code"})
		return
	}

	// --- Step 2: Exchange code ---
	ghUser, accessToken, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	// --- Step 3: Sign in ---
	res, err := h.accounts.LoginGitHub(r.Context(), ghUser, accessToken)
	if err != nil {
		h.logger.Warn("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	// --- Step 4: Cookie and redirect ---
	h.setTokenCookie(w, res.Token)
	http.Redirect(w, r, h.frontendRedirect(url.Values{"token": {res.Token}}), http.StatusSeeOther)
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// setTokenCookie stores the JWT in an HttpOnly cookie.
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// Secure should be true in production (HTTPS only); left off for local dev.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) frontendRedirect(q url.Values) string {
	u, err := url.Parse(h.frontendURL)
	if err != nil || h.frontendURL == "" {
		return "/?" + q.Encode()
	}
	u.RawQuery = q.Encode()
	return u.String()
}
