package domain

import (
	"strings"
	"time"
)

// Domain binding statuses returned by the content backend.
const (
	DomainStatusPublished   = "published"
	DomainStatusUnpublished = "unpublished"
	DomainStatusProtected   = "protected"
)

// PlanDomain is the binding between a plan and one hostname, carrying the
// plan's publication state on that hostname and an optional message shown
// when the plan is not served.
type PlanDomain struct {
	Hostname      string     `json:"hostname"`
	BasePath      string     `json:"basePath"`
	Status        string     `json:"status"`
	StatusMessage string     `json:"statusMessage"`
	PublishedAt   *time.Time `json:"publishedAt"`
}

// Plan is one municipal climate/sustainability program instance served by
// the site. Plans are fetched per hostname from the content backend and
// never mutated.
type Plan struct {
	ID              string      `json:"id"`
	Identifier      string      `json:"identifier"`
	Name            string      `json:"name"`
	PrimaryLanguage string      `json:"primaryLanguage"`
	OtherLanguages  []string    `json:"otherLanguages"`
	PublishedAt     *time.Time  `json:"publishedAt"`
	Domain          *PlanDomain `json:"domain"`
}

// Published reports whether the plan is live. A plan with no publication
// timestamp, or one in the future, is not served.
func (p *Plan) Published() bool {
	if p.PublishedAt == nil {
		return false
	}
	return !p.PublishedAt.After(time.Now())
}

// Restricted reports whether the plan's domain binding limits access
// (preview-only deployments).
func (p *Plan) Restricted() bool {
	return p.Domain != nil && p.Domain.Status == DomainStatusProtected
}

// StatusMessage returns the human-readable message attached to the plan's
// domain binding, or "" when none is set.
func (p *Plan) StatusMessage() string {
	if p.Domain == nil {
		return ""
	}
	return p.Domain.StatusMessage
}

// Locales returns all locale codes the plan supports, primary first.
func (p *Plan) Locales() []string {
	out := make([]string, 0, len(p.OtherLanguages)+1)
	out = append(out, p.PrimaryLanguage)
	out = append(out, p.OtherLanguages...)
	return out
}

// MatchesHostname reports whether the plan's domain binding is for the
// given hostname. A plan is only a valid match for requests on the
// hostname its domain actually binds.
func (p *Plan) MatchesHostname(hostname string) bool {
	return p.Domain != nil && strings.EqualFold(p.Domain.Hostname, hostname)
}

// BasePathSegment returns the plan's base path as a bare path segment,
// or "" when the plan is served at the hostname root.
func (p *Plan) BasePathSegment() string {
	if p.Domain == nil {
		return ""
	}
	return strings.Trim(p.Domain.BasePath, "/")
}

// MatchesSegment reports whether a path segment addresses this plan, by
// base path, identifier, or id, in that order.
func (p *Plan) MatchesSegment(seg string) bool {
	if seg == "" {
		return false
	}
	if bp := p.BasePathSegment(); bp != "" && strings.EqualFold(seg, bp) {
		return true
	}
	return strings.EqualFold(seg, p.Identifier) || seg == p.ID
}
