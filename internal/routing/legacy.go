package routing

import (
	"strings"

	"github.com/planwatch/edge/internal/domain"
)

// Rules enumerates the deprecated URL shapes that are redirected to their
// canonical form instead of being served.
type Rules struct {
	// Prefixes are leading path segments from retired URL schemes,
	// e.g. "p" for the old /p/<plan>/... addressing.
	Prefixes []string
}

func (r Rules) matchesPrefix(seg string) bool {
	for _, p := range r.Prefixes {
		if strings.EqualFold(seg, p) {
			return true
		}
	}
	return false
}

// IsLegacyPath reports whether pathname follows a deprecated convention for
// the resolved plan: a locale segment directly before the plan segment
// (reversed ordering), or a configured deprecated prefix. The predicate is
// purely structural and never changes which plan or locale was chosen;
// callers redirect to ConvertLegacyPath and let the request re-resolve.
func IsLegacyPath(pathname string, plan *domain.Plan, rules Rules) bool {
	if plan == nil {
		return false
	}
	segs := SplitPath(pathname)
	if len(segs) == 0 {
		return false
	}
	if rules.matchesPrefix(segs[0]) {
		return true
	}
	if len(segs) < 2 {
		return false
	}
	ls := NewLocaleSet(plan.PrimaryLanguage, plan.OtherLanguages)
	return ls.Contains(segs[0]) && plan.MatchesSegment(segs[1])
}

// ConvertLegacyPath rewrites a legacy pathname to its canonical equivalent,
// preserving all trailing segments verbatim. The query string travels on the
// URL, not here. multiPlan says whether the hostname serves more than one
// plan: canonical paths on such hosts must keep a plan segment, falling back
// to the identifier when the plan has no base path. Converting is
// idempotent: the result is never legacy again and resolves to the same
// plan and locale.
func ConvertLegacyPath(pathname string, plan *domain.Plan, multiPlan bool, rules Rules) string {
	segs := SplitPath(pathname)
	if len(segs) > 0 && rules.matchesPrefix(segs[0]) {
		segs = segs[1:]
	}

	ls := NewLocaleSet(plan.PrimaryLanguage, plan.OtherLanguages)
	locale := ls.Default()

	// Strip at most one plan segment and one locale segment from the front,
	// in whatever order they appear.
	planSeen, localeSeen := false, false
	for len(segs) > 0 {
		if !planSeen && plan.MatchesSegment(segs[0]) {
			planSeen = true
			segs = segs[1:]
			continue
		}
		if !localeSeen {
			if c, ok := ls.Canonical(segs[0]); ok {
				locale = c
				localeSeen = true
				segs = segs[1:]
				continue
			}
		}
		break
	}

	// Canonical prefix: the plan segment when the host needs one, then the
	// locale unless it is the default (which carries no prefix).
	var prefix []string
	if bp := plan.BasePathSegment(); bp != "" {
		prefix = append(prefix, bp)
	} else if multiPlan {
		prefix = append(prefix, plan.Identifier)
	}
	if !strings.EqualFold(locale, ls.Default()) {
		prefix = append(prefix, locale)
	}

	return joinPath(append(prefix, segs...))
}
