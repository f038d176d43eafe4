package routing

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/planwatch/edge/internal/domain"
)

// LocaleCookie carries the resolved locale back to the client so later
// requests without a prefix keep the visitor's language.
const LocaleCookie = "edge_locale"

// Decision is the terminal outcome of routing one request: a client
// redirect, or an internal rewrite served without a round trip. Header
// carries response headers attached by the locale-routing strategy.
type Decision struct {
	Redirect *url.URL
	Rewrite  *url.URL
	Header   http.Header
}

// Directive is what the locale-routing strategy produced for one request:
// a redirect of its own, or headers for a pass-through response.
type Directive struct {
	Redirect *url.URL
	Header   http.Header
}

// LocaleRouter implements the locale-prefix convention for one plan's
// locales: the default locale carries no prefix, other locales do, and no
// Accept-Language detection is performed. One router is built per request
// from the resolved plan's languages.
type LocaleRouter struct {
	locales *LocaleSet
}

// NewLocaleRouter builds the strategy for a plan's supported locales.
func NewLocaleRouter(primary string, others []string) *LocaleRouter {
	return &LocaleRouter{locales: NewLocaleSet(primary, others)}
}

// Route inspects the locale position of u's path (skip leading segments,
// normally 0 or 1 for the plan's base path) and either redirects to drop a
// redundant default-locale prefix or passes through with locale headers.
func (lr *LocaleRouter) Route(u *url.URL, skip int) Directive {
	segs := SplitPath(u.Path)
	locale := lr.locales.Default()

	if len(segs) > skip {
		if c, ok := lr.locales.Canonical(segs[skip]); ok {
			locale = c
			if strings.EqualFold(c, lr.locales.Default()) {
				// The default locale never carries a prefix; strip it.
				// Path-relative, regardless of how u was constructed.
				rest := append(append([]string{}, segs[:skip]...), segs[skip+1:]...)
				target := &url.URL{Path: joinPath(rest), RawQuery: u.RawQuery}
				return Directive{Redirect: target}
			}
		}
	}

	h := make(http.Header)
	h.Set("Content-Language", locale)
	cookie := &http.Cookie{
		Name:     LocaleCookie,
		Value:    locale,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	h.Add("Set-Cookie", cookie.String())
	return Directive{Header: h}
}

// Params carries everything the rewriter needs about one request.
type Params struct {
	Hostname        string
	Plan            *domain.Plan
	Locale          string
	Legacy          bool
	MultiPlan       bool
	URL             *url.URL
	UnpublishedPath string
	Rules           Rules
}

// Build turns a parsed route into the terminal routing decision.
//
// A legacy path is redirected to its canonical equivalent before anything
// else; the publication check re-runs when the client follows the redirect.
// Otherwise the locale-routing strategy runs first, and its redirect or
// headers are carried into the final decision: a rewrite to the unpublished
// status page when the plan is restricted or not published, or to the
// canonical internal path `/<hostname>/<locale>/<planID>/<rest>` otherwise.
func Build(p Params) Decision {
	if p.Legacy {
		// Path-relative so the redirect stays on the requested origin.
		target := &url.URL{
			Path:     ConvertLegacyPath(p.URL.Path, p.Plan, p.MultiPlan, p.Rules),
			RawQuery: p.URL.RawQuery,
		}
		return Decision{Redirect: target}
	}

	lr := NewLocaleRouter(p.Plan.PrimaryLanguage, p.Plan.OtherLanguages)
	skip := 0
	if segs := SplitPath(p.URL.Path); len(segs) > 0 && p.Plan.MatchesSegment(segs[0]) {
		skip = 1
	}
	dir := lr.Route(p.URL, skip)
	if dir.Redirect != nil {
		return Decision{Redirect: dir.Redirect, Header: dir.Header}
	}

	if p.Plan.Restricted() || !p.Plan.Published() {
		target := &url.URL{Path: "/" + p.Hostname + "/" + p.Locale + p.UnpublishedPath}
		if msg := p.Plan.StatusMessage(); msg != "" {
			q := url.Values{}
			q.Set("message", msg)
			target.RawQuery = q.Encode()
		}
		return Decision{Rewrite: target, Header: dir.Header}
	}

	stripped := StripLocaleAndPlan(p.URL.Path, p.Plan)
	target := &url.URL{
		Path:     "/" + p.Hostname + "/" + p.Locale + "/" + p.Plan.ID + "/" + stripped,
		RawQuery: p.URL.RawQuery,
	}
	return Decision{Rewrite: target, Header: dir.Header}
}

// StripLocaleAndPlan removes the plan and locale segments from the front of
// pathname, returning the remaining path without a leading slash.
func StripLocaleAndPlan(pathname string, plan *domain.Plan) string {
	segs := SplitPath(pathname)
	ls := NewLocaleSet(plan.PrimaryLanguage, plan.OtherLanguages)

	planSeen, localeSeen := false, false
	for len(segs) > 0 {
		if !planSeen && plan.MatchesSegment(segs[0]) {
			planSeen = true
			segs = segs[1:]
			continue
		}
		if !localeSeen && ls.Contains(segs[0]) {
			localeSeen = true
			segs = segs[1:]
			continue
		}
		break
	}

	return strings.Join(segs, "/")
}
