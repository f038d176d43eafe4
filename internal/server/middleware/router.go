package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/planwatch/edge/internal/observability"
	"github.com/planwatch/edge/internal/plans"
	"github.com/planwatch/edge/internal/routing"
)

// Authenticator is the boolean authentication gate consulted before any
// plan resolution runs.
type Authenticator interface {
	IsAuthenticated(r *http.Request, hostname string) bool
}

// Options configures the routing middleware.
type Options struct {
	Directory plans.Directory
	Auth      Authenticator
	Reporter  observability.Reporter

	HealthPath      string
	UnpublishedPath string
	// HostRedirects maps a hostname to a plan subdomain redirected to
	// before any resolution, e.g. localhost -> sunnydale.
	HostRedirects map[string]string
	LegacyRules   routing.Rules
}

// Router is the per-request pipeline that resolves which plan and locale a
// request targets and rewrites it to the canonical internal path. Control
// flow is strictly linear: gate, directory lookup, parse, rewrite. Every
// branch terminates in exactly one of a redirect or an internal rewrite.
type Router struct {
	opts Options
}

func NewRouter(opts Options) *Router {
	if opts.HealthPath == "" {
		opts.HealthPath = "/_health"
	}
	if opts.UnpublishedPath == "" {
		opts.UnpublishedPath = "/unpublished"
	}
	return &Router{opts: opts}
}

// Middleware wires the router into a chi middleware chain. Paths outside
// the matcher go straight through.
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Bypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		rt.route(w, r, next)
	})
}

func (rt *Router) route(w http.ResponseWriter, r *http.Request, next http.Handler) {
	hostname := Hostname(r)

	// Whatever goes wrong inside the pipeline, the user gets a not-found
	// page, never an unhandled fault.
	defer func() {
		if rec := recover(); rec != nil {
			rt.opts.Reporter.CaptureException(
				fmt.Errorf("routing panic: %v", rec),
				map[string]any{"hostname": hostname, "path": r.URL.Path},
			)
			rt.rewrite(w, r, next, &url.URL{Path: "/404"}, nil)
		}
	}()

	// Configured host redirect table (development convenience), ahead of
	// everything else.
	if sub, ok := rt.opts.HostRedirects[hostname]; ok {
		target := url.URL{Scheme: Scheme(r), Host: sub + "." + RequestHost(r)}
		http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
		return
	}

	if r.URL.Path == rt.opts.HealthPath {
		rt.rewrite(w, r, next, &url.URL{Path: "/api/health"}, nil)
		return
	}

	if !rt.opts.Auth.IsAuthenticated(r, hostname) {
		rt.rewrite(w, r, next, &url.URL{Path: "/api/auth"}, nil)
		return
	}

	plansForHost, err := rt.opts.Directory.PlansForHostname(r.Context(), hostname)
	if err != nil {
		rt.opts.Reporter.CaptureException(err, map[string]any{"hostname": hostname})
		rt.rewrite(w, r, next, &url.URL{Path: "/404"}, nil)
		return
	}
	if len(plansForHost) == 0 {
		// Unknown hostname. Benign, not reported.
		rt.rewrite(w, r, next, &url.URL{Path: "/404"}, nil)
		return
	}

	route := routing.ParseRoute(r.URL.Path, plansForHost, rt.opts.LegacyRules)
	if route.Plan == nil {
		rt.rewrite(w, r, next, &url.URL{Path: "/404"}, nil)
		return
	}

	decision := routing.Build(routing.Params{
		Hostname:        hostname,
		Plan:            route.Plan,
		Locale:          route.Locale,
		Legacy:          routing.IsLegacyPath(r.URL.Path, route.Plan, rt.opts.LegacyRules),
		MultiPlan:       len(plansForHost) > 1,
		URL:             r.URL,
		UnpublishedPath: rt.opts.UnpublishedPath,
		Rules:           rt.opts.LegacyRules,
	})

	log.Debug().
		Str("hostname", hostname).
		Str("plan", route.Plan.Identifier).
		Str("locale", route.Locale).
		Str("path", r.URL.Path).
		Msg("route resolved")

	if decision.Redirect != nil {
		applyHeader(w, decision.Header)
		http.Redirect(w, r, decision.Redirect.String(), http.StatusTemporaryRedirect)
		return
	}

	ctx := context.WithValue(r.Context(), ContextKeyPlan, route.Plan)
	ctx = context.WithValue(ctx, ContextKeyLocale, route.Locale)
	rt.rewrite(w, r.WithContext(ctx), next, decision.Rewrite, decision.Header)
}

// rewrite serves the request internally at target without a client round
// trip, keeping the original path reachable from context.
func (rt *Router) rewrite(w http.ResponseWriter, r *http.Request, next http.Handler, target *url.URL, h http.Header) {
	applyHeader(w, h)
	ctx := context.WithValue(r.Context(), ContextKeyOriginalPath, r.URL.Path)
	r2 := r.Clone(ctx)
	r2.URL.Path = target.Path
	r2.URL.RawPath = ""
	// The target's query replaces the original's entirely: internal pages
	// only receive the parameters the rewrite put there.
	r2.URL.RawQuery = target.RawQuery
	next.ServeHTTP(w, r2)
}

func applyHeader(w http.ResponseWriter, h http.Header) {
	for k, vs := range h {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
}

// Hostname extracts the request hostname: forwarded host when behind a
// proxy, port stripped, lowercased.
func Hostname(r *http.Request) string {
	host := RequestHost(r)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

// RequestHost returns the host (possibly with port) the client addressed.
func RequestHost(r *http.Request) string {
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		return fh
	}
	return r.Host
}

// Scheme returns the request scheme, honoring X-Forwarded-Proto.
func Scheme(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
