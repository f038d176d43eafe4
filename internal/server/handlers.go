package server

import (
	"crypto/subtle"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/planwatch/edge/internal/auth"
	"github.com/planwatch/edge/internal/server/middleware"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("<!doctype html><title>Not found</title><h1>Page not found</h1>"))
}

var unpublishedTmpl = template.Must(template.New("unpublished").Parse(`<!doctype html>
<html lang="{{.Locale}}">
<title>Not available</title>
<h1>This plan is not available yet</h1>
{{if .Message}}<p>{{.Message}}</p>{{end}}
</html>`))

// handleUnpublished renders the status page a restricted or unpublished
// plan is rewritten to. The status message travels in the query string.
func handleUnpublished(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Locale  string
		Message string
	}{
		Locale:  chi.URLParam(r, "locale"),
		Message: r.URL.Query().Get("message"),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := unpublishedTmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render unpublished page")
	}
}

var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<html>
<title>Sign in</title>
<h1>This site is password protected</h1>
{{if .Error}}<p>{{.Error}}</p>{{end}}
<form method="post" action="/api/auth">
<input type="hidden" name="next" value="{{.Next}}">
<input type="password" name="password" autofocus>
<button type="submit">Sign in</button>
</form>
</html>`))

type loginPage struct {
	Next  string
	Error string
}

// handleAuthForm renders the password prompt. Unauthenticated requests are
// rewritten here, so the original path is recovered from context for the
// post-login redirect.
func (s *Server) handleAuthForm(w http.ResponseWriter, r *http.Request) {
	next, _ := middleware.OriginalPathFromContext(r.Context())
	if n := r.URL.Query().Get("next"); n != "" {
		next = n
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	if err := loginTmpl.Execute(w, loginPage{Next: sanitizeNext(next)}); err != nil {
		log.Error().Err(err).Msg("render login page")
	}
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	hostname := middleware.Hostname(r)
	next := sanitizeNext(r.PostFormValue("next"))

	token, err := s.auth.Login(hostname, r.PostFormValue("password"))
	if err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		if terr := loginTmpl.Execute(w, loginPage{Next: next, Error: "Wrong password, try again."}); terr != nil {
			log.Error().Err(terr).Msg("render login page")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   middleware.Scheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// sanitizeNext keeps post-login redirects on-site.
func sanitizeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" {
		return "/"
	}
	return next
}

// adminAuth guards the ops API with a static bearer token.
func adminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(header[len(prefix):]), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
