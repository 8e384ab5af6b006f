package middleware

import (
	"net/http"
	"strings"

	"gitea.com/go-chi/session"

	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/userctx"
)

// Session keys written at login
const (
	SessionUserID    = "user_id"
	SessionUserEmail = "user_email"
	SessionUserName  = "user_nickname"
)

// RequireAuth ensures the user is authenticated and makes them the actor of
// everything the request changes. Browsers are redirected to /login and API
// calls get 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.GetSession(r)
		userID, _ := sess.Get(SessionUserID).(string)

		if userID == "" {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"authentication required"}`))
				return
			}
			// Store the intended destination for redirect after login
			sess.Set("redirect_after_login", r.URL.Path)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		email, _ := sess.Get(SessionUserEmail).(string)
		name, _ := sess.Get(SessionUserName).(string)

		ctx := userctx.SetActor(r.Context(), models.Actor{ID: userID, Email: email, DisplayName: name})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
