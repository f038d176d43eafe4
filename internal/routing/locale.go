package routing

import (
	"strings"

	"golang.org/x/text/language"
)

// LocaleSet resolves path segments against the locales one plan supports.
// The primary language is always first and acts as the default.
type LocaleSet struct {
	codes      []string // declared codes, primary first
	matchCodes []string // parseable codes, aligned with tags
	matcher    language.Matcher
}

// NewLocaleSet builds a LocaleSet from a plan's primary and other languages.
// Codes that do not parse as BCP 47 tags still participate in exact
// (case-insensitive) matching but not in variant matching.
func NewLocaleSet(primary string, others []string) *LocaleSet {
	ls := &LocaleSet{codes: make([]string, 0, len(others)+1)}
	var tags []language.Tag
	for _, code := range append([]string{primary}, others...) {
		if code == "" {
			continue
		}
		ls.codes = append(ls.codes, code)
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		ls.matchCodes = append(ls.matchCodes, code)
		tags = append(tags, tag)
	}
	if len(tags) > 0 {
		ls.matcher = language.NewMatcher(tags)
	}
	return ls
}

// Default returns the primary locale code.
func (ls *LocaleSet) Default() string {
	if len(ls.codes) == 0 {
		return ""
	}
	return ls.codes[0]
}

// Canonical resolves seg to a supported locale code. Exact code matches win;
// otherwise the segment is matched as a BCP 47 tag with a High confidence
// cutoff, so "en-GB" resolves against "en" but "sv" does not resolve against
// [fi en].
func (ls *LocaleSet) Canonical(seg string) (string, bool) {
	if seg == "" {
		return "", false
	}
	for _, c := range ls.codes {
		if strings.EqualFold(c, seg) {
			return c, true
		}
	}
	if ls.matcher == nil {
		return "", false
	}
	tag, err := language.Parse(seg)
	if err != nil {
		return "", false
	}
	_, idx, conf := ls.matcher.Match(tag)
	if conf < language.High {
		return "", false
	}
	return ls.matchCodes[idx], true
}

// Contains reports whether seg resolves to any supported locale.
func (ls *LocaleSet) Contains(seg string) bool {
	_, ok := ls.Canonical(seg)
	return ok
}
