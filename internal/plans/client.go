// Package plans resolves the plan directory for a hostname: a GraphQL
// client against the content backend, fronted by a cache with request
// coalescing.
package plans

import (
	"context"
	"fmt"
	"net/http"
	"time"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/planwatch/edge/internal/domain"
)

// Source fetches the plans bound to a hostname. Implementations must be
// safe for concurrent use from many simultaneous requests.
type Source interface {
	PlansForHostname(ctx context.Context, hostname string) ([]*domain.Plan, error)
}

// Client queries the content backend's GraphQL API. The HTTP client owns
// the request deadline; callers do not add their own, so a stalled lookup
// is bounded here and nowhere else.
type Client struct {
	gql *graphql.Client
}

// NewClient creates a backend client. token is optional; when set it is
// sent as an Authorization header on every query.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	hc := &http.Client{Timeout: timeout}
	if token != "" {
		hc.Transport = &tokenTransport{token: token, base: http.DefaultTransport}
	}
	return &Client{gql: graphql.NewClient(endpoint, hc)}
}

type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Token "+t.token)
	return t.base.RoundTrip(req)
}

type planDomainRecord struct {
	Hostname      string     `graphql:"hostname"`
	BasePath      string     `graphql:"basePath"`
	Status        string     `graphql:"status"`
	StatusMessage string     `graphql:"statusMessage"`
	PublishedAt   *time.Time `graphql:"publishedAt"`
}

type planRecord struct {
	ID              string            `graphql:"id"`
	Identifier      string            `graphql:"identifier"`
	Name            string            `graphql:"name"`
	PrimaryLanguage string            `graphql:"primaryLanguage"`
	OtherLanguages  []string          `graphql:"otherLanguages"`
	PublishedAt     *time.Time        `graphql:"publishedAt"`
	Domain          *planDomainRecord `graphql:"domain(hostname: $hostname)"`
}

type plansForHostnameQuery struct {
	PlansForHostname []planRecord `graphql:"plansForHostname(hostname: $hostname)"`
}

// PlansForHostname runs the directory query for one hostname.
func (c *Client) PlansForHostname(ctx context.Context, hostname string) ([]*domain.Plan, error) {
	var q plansForHostnameQuery
	vars := map[string]any{
		"hostname": graphql.String(hostname),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("plans.Client.PlansForHostname: %w", err)
	}

	out := make([]*domain.Plan, 0, len(q.PlansForHostname))
	for _, rec := range q.PlansForHostname {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (rec planRecord) toDomain() *domain.Plan {
	p := &domain.Plan{
		ID:              rec.ID,
		Identifier:      rec.Identifier,
		Name:            rec.Name,
		PrimaryLanguage: rec.PrimaryLanguage,
		OtherLanguages:  rec.OtherLanguages,
		PublishedAt:     rec.PublishedAt,
	}
	if rec.Domain != nil {
		p.Domain = &domain.PlanDomain{
			Hostname:      rec.Domain.Hostname,
			BasePath:      rec.Domain.BasePath,
			Status:        rec.Domain.Status,
			StatusMessage: rec.Domain.StatusMessage,
			PublishedAt:   rec.Domain.PublishedAt,
		}
	}
	return p
}
