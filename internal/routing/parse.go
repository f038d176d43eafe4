package routing

import (
	"strings"

	"github.com/planwatch/edge/internal/domain"
)

// Route is the parsed intent of one request path: which plan it targets on
// the current hostname and which locale it resolves to. Plan is nil exactly
// when nothing in the hostname's plan list matches the path.
type Route struct {
	Plan   *domain.Plan
	Locale string
}

// ParseRoute resolves pathname against the plans bound to the request's
// hostname.
//
// A hostname with a single plan always resolves to that plan; the leading
// segment is consumed as the locale when it is one the plan supports,
// otherwise the primary language applies. On multi-plan hostnames the
// leading segment is matched against each plan in directory order (base
// path, identifier, then id) and the segment after the match may carry the
// locale. Deprecated shapes (a retired leading prefix, or the old
// locale-before-plan ordering) still resolve here; the legacy predicate
// flags them afterwards so they redirect instead of rendering.
//
// A plan match always beats a locale reading of the same segment.
func ParseRoute(pathname string, plans []*domain.Plan, rules Rules) Route {
	segs := SplitPath(pathname)
	if len(segs) > 0 && rules.matchesPrefix(segs[0]) {
		segs = segs[1:]
	}

	if len(plans) == 1 {
		p := plans[0]
		ls := NewLocaleSet(p.PrimaryLanguage, p.OtherLanguages)
		locale := ls.Default()
		if len(segs) > 0 {
			if c, ok := ls.Canonical(segs[0]); ok {
				locale = c
			}
		}
		return Route{Plan: p, Locale: locale}
	}

	if len(segs) == 0 {
		return Route{}
	}

	// Canonical shape: /<plan>/<locale?>/...
	if p := matchPlan(plans, segs[0]); p != nil {
		ls := NewLocaleSet(p.PrimaryLanguage, p.OtherLanguages)
		locale := ls.Default()
		if len(segs) > 1 {
			if c, ok := ls.Canonical(segs[1]); ok {
				locale = c
			}
		}
		return Route{Plan: p, Locale: locale}
	}

	// Deprecated shape: /<locale>/<plan>/...
	if len(segs) > 1 {
		if p := matchPlan(plans, segs[1]); p != nil {
			ls := NewLocaleSet(p.PrimaryLanguage, p.OtherLanguages)
			if c, ok := ls.Canonical(segs[0]); ok {
				return Route{Plan: p, Locale: c}
			}
		}
	}

	return Route{}
}

func matchPlan(plans []*domain.Plan, seg string) *domain.Plan {
	for _, p := range plans {
		if p.MatchesSegment(seg) {
			return p
		}
	}
	return nil
}

// SplitPath splits a URL path into its non-empty segments.
func SplitPath(pathname string) []string {
	var segs []string
	for _, s := range strings.Split(pathname, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func joinPath(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}
