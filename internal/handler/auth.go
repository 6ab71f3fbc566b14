package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/college-forum/internal/access"
	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/auth"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/service"
	"github.com/sakif/college-forum/internal/session"
)

const stateCookieName = "oauth_state"

// AuthHandler runs the Google sign-in flow and reports the current session.
//
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → exchange the code, ensure the profile, issue a session cookie
//   - HandleLogout         → clear the session cookie
//   - HandleMe             → the signed-in principal and their profile
type AuthHandler struct {
	google        *auth.GoogleProvider
	auth          *service.AuthService
	profiles      *service.ProfileService
	policy        *access.Policy
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(
	google *auth.GoogleProvider,
	authService *service.AuthService,
	profiles *service.ProfileService,
	policy *access.Policy,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		google:        google,
		auth:          authService,
		profiles:      profiles,
		policy:        policy,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleGoogleLogin redirects to Google's authorization page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes both into a short-lived HttpOnly cookie and
// into the authorization URL; the callback only proceeds when they match.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the sign-in.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	res, err := h.auth.Login(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: login failed", slog.String("error", err.Error()))
		writeError(w, apperror.Transient("signing in", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so an already copied token stays valid until it
// expires; without the cookie the browser simply stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// MeResponse is the body of GET /api/me. Profile is omitted when it could
// not be loaded.
type MeResponse struct {
	Principal model.Principal `json:"principal"`
	Profile   *model.Profile  `json:"profile,omitempty"`
	Admin     bool            `json:"admin"`
}

// HandleMe returns the signed-in principal.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apperror.AuthRequired("view your account"))
		return
	}

	resp := MeResponse{Principal: p, Admin: h.policy.IsAdmin(r.Context(), p)}
	profile, err := h.profiles.Get(r.Context(), p.ID)
	if err != nil {
		h.logger.Warn("HandleMe: profile unavailable",
			slog.String("principalID", p.ID),
			slog.String("error", err.Error()),
		)
	} else {
		resp.Profile = profile
	}

	writeJSON(w, http.StatusOK, resp)
}
