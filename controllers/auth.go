package controllers

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"gitea.com/go-chi/session"
	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/authenticator"
	"github.com/blogem/licitacoes/middleware"
	"github.com/blogem/licitacoes/services"
)

const (
	sessionState         = "state"
	sessionRedirectAfter = "redirect_after_login"
)

// AuthController runs the OIDC login flow
type AuthController struct {
	provider authenticator.Provider
	users    services.UserService
	logger   logrus.FieldLogger
}

// NewAuthController creates a new auth controller
func NewAuthController(provider authenticator.Provider, users services.UserService, logger logrus.FieldLogger) *AuthController {
	return &AuthController{provider: provider, users: users, logger: logger}
}

// Login handles GET /login
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateRandomState()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Save the state in the session to validate in callback
	sess := session.GetSession(r)
	sess.Set(sessionState, state)

	http.Redirect(w, r, c.provider.GetAuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles GET /callback
func (c *AuthController) Callback(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)

	storedState, _ := sess.Get(sessionState).(string)
	if storedState == "" {
		http.Error(w, "State not found in session", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != storedState {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	token, err := c.provider.ExchangeCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		c.logger.WithError(err).Warn("Code exchange failed")
		http.Error(w, "Failed to exchange authorization code for a token", http.StatusUnauthorized)
		return
	}

	claims, err := c.provider.GetClaims(r.Context(), token)
	if err != nil {
		c.logger.WithError(err).Warn("ID token verification failed")
		http.Error(w, "Failed to verify ID Token", http.StatusUnauthorized)
		return
	}

	user, err := c.users.Login(r.Context(), claims.User())
	if err != nil {
		c.logger.WithError(err).Error("Failed to record login")
		http.Error(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	sess.Set(middleware.SessionUserID, user.Subject)
	sess.Set(middleware.SessionUserEmail, user.Email)
	sess.Set(middleware.SessionUserName, user.DisplayName)
	sess.Delete(sessionState)

	target := "/"
	if dest, ok := sess.Get(sessionRedirectAfter).(string); ok && dest != "" {
		target = dest
		sess.Delete(sessionRedirectAfter)
	}

	c.logger.WithField("user", user.Subject).Info("User signed in")
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout handles GET /logout
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)
	sess.Delete(middleware.SessionUserID)
	sess.Delete(middleware.SessionUserEmail)
	sess.Delete(middleware.SessionUserName)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// generateRandomState generates a random state value for CSRF protection
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
