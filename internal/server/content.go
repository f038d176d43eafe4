package server

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/planwatch/edge/internal/server/middleware"
)

// contentHandler serves the canonical internal paths the routing middleware
// rewrites to. With an upstream configured it reverse-proxies to the
// renderer; otherwise it echoes the resolved route, which is enough for
// local development and tests.
//
// The route pattern also matches external paths the middleware bypassed
// (anything under /api/, for one), so only requests carrying a resolved
// plan are served; everything else is not found.
func contentHandler(upstream string) http.Handler {
	var inner http.Handler = http.HandlerFunc(debugContent)
	if upstream != "" {
		target, err := url.Parse(upstream)
		if err != nil {
			log.Fatal().Err(err).Str("upstream", upstream).Msg("invalid upstream URL")
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream proxy error")
			w.WriteHeader(http.StatusBadGateway)
		}
		inner = proxy
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.PlanFromContext(r.Context()); !ok {
			handleNotFound(w, r)
			return
		}
		inner.ServeHTTP(w, r)
	})
}

func debugContent(w http.ResponseWriter, r *http.Request) {
	resolved := struct {
		Hostname string `json:"hostname"`
		Locale   string `json:"locale"`
		Plan     string `json:"plan"`
		Path     string `json:"path"`
		Original string `json:"original,omitempty"`
	}{
		Hostname: chi.URLParam(r, "hostname"),
		Locale:   chi.URLParam(r, "locale"),
		Plan:     chi.URLParam(r, "plan"),
		Path:     r.URL.Path,
	}
	if orig, ok := middleware.OriginalPathFromContext(r.Context()); ok {
		resolved.Original = orig
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resolved); err != nil {
		log.Error().Err(err).Msg("encode debug content")
	}
}
