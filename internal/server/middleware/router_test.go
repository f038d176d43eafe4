package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwatch/edge/internal/domain"
	"github.com/planwatch/edge/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type stubDirectory struct {
	plans map[string][]*domain.Plan
	err   error
}

func (d *stubDirectory) PlansForHostname(_ context.Context, hostname string) ([]*domain.Plan, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.plans[hostname], nil
}

type stubAuth struct{ denied bool }

func (a *stubAuth) IsAuthenticated(*http.Request, string) bool { return !a.denied }

type recordingReporter struct {
	mu     sync.Mutex
	errors []error
}

func (r *recordingReporter) CaptureException(err error, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recordingReporter) captured() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func fixturePlan() *domain.Plan {
	published := time.Now().Add(-24 * time.Hour)
	return &domain.Plan{
		ID:              "sunnydale",
		Identifier:      "sunnydale",
		Name:            "Sunnydale",
		PrimaryLanguage: "fi",
		OtherLanguages:  []string{"en"},
		PublishedAt:     &published,
		Domain: &domain.PlanDomain{
			Hostname: "sunnydale.example.com",
			Status:   domain.DomainStatusPublished,
		},
	}
}

// capture is the innermost handler: it records where the request ended up
// after the middleware ran.
type capture struct {
	path  string
	query string
	plan  *domain.Plan
}

func newTestHandler(opts middleware.Options) (http.Handler, *capture) {
	if opts.Directory == nil {
		opts.Directory = &stubDirectory{}
	}
	if opts.Auth == nil {
		opts.Auth = &stubAuth{}
	}
	if opts.Reporter == nil {
		opts.Reporter = &recordingReporter{}
	}
	c := &capture{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.plan, _ = middleware.PlanFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return middleware.NewRouter(opts).Middleware(inner), c
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

// ===========================================================================
// Gates ahead of resolution
// ===========================================================================

func TestRouter_HealthPathRewrites(t *testing.T) {
	t.Parallel()

	// The health check works even when the directory is failing, and drops
	// any query string on the way.
	h, c := newTestHandler(middleware.Options{
		Directory: &stubDirectory{err: assert.AnError},
	})

	w := serve(h, "http://sunnydale.example.com/_health?verbose=1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/health", c.path)
	assert.Empty(t, c.query)
}

func TestRouter_UnauthenticatedRewritesToAuth(t *testing.T) {
	t.Parallel()

	h, c := newTestHandler(middleware.Options{
		Auth: &stubAuth{denied: true},
	})

	w := serve(h, "http://protected.example.com/actions")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/auth", c.path)
}

func TestRouter_HostRedirect(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(middleware.Options{
		HostRedirects: map[string]string{"localhost": "sunnydale"},
	})

	r := httptest.NewRequest(http.MethodGet, "http://localhost:8080/actions", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "http://sunnydale.localhost:8080", w.Header().Get("Location"))
}

func TestRouter_BypassesAssetPaths(t *testing.T) {
	t.Parallel()

	// Asset and API paths skip resolution entirely; the directory must not
	// be consulted.
	h, c := newTestHandler(middleware.Options{
		Directory: &stubDirectory{err: assert.AnError},
	})

	for _, path := range []string{"/api/health", "/_next/chunk.js", "/favicon.ico"} {
		w := serve(h, "http://sunnydale.example.com"+path)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, path, c.path, path)
	}
}

// ===========================================================================
// Directory outcomes
// ===========================================================================

func TestRouter_LookupErrorReportsAndServes404(t *testing.T) {
	t.Parallel()

	rep := &recordingReporter{}
	h, c := newTestHandler(middleware.Options{
		Directory: &stubDirectory{err: assert.AnError},
		Reporter:  rep,
	})

	w := serve(h, "http://sunnydale.example.com/actions")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/404", c.path)
	assert.Equal(t, 1, rep.captured())
}

func TestRouter_UnknownHostnameServes404WithoutReport(t *testing.T) {
	t.Parallel()

	rep := &recordingReporter{}
	h, c := newTestHandler(middleware.Options{
		Directory: &stubDirectory{},
		Reporter:  rep,
	})

	w := serve(h, "http://unknown.example.com/actions")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/404", c.path)
	assert.Zero(t, rep.captured(), "unknown hostnames are benign")
}

// ===========================================================================
// End-to-end routing
// ===========================================================================

func TestRouter_CanonicalRewrite(t *testing.T) {
	t.Parallel()

	h, c := newTestHandler(middleware.Options{
		Directory: &stubDirectory{plans: map[string][]*domain.Plan{
			"sunnydale.example.com": {fixturePlan()},
		}},
	})

	w := serve(h, "http://sunnydale.example.com/en/actions?page=2")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/sunnydale.example.com/en/sunnydale/actions", c.path)
	assert.Equal(t, "page=2", c.query)
	require.NotNil(t, c.plan)
	assert.Equal(t, "sunnydale", c.plan.ID)
	assert.Equal(t, "en", w.Header().Get("Content-Language"))
}

func TestRouter_DefaultLocaleRewrite(t *testing.T) {
	t.Parallel()

	h, c := newTestHandler(middleware.Options{
		Directory: &stubDirectory{plans: map[string][]*domain.Plan{
			"sunnydale.example.com": {fixturePlan()},
		}},
	})

	w := serve(h, "http://sunnydale.example.com/actions")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/sunnydale.example.com/fi/sunnydale/actions", c.path)
	assert.Equal(t, "fi", w.Header().Get("Content-Language"))
}

func TestRouter_DefaultLocalePrefixRedirects(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(middleware.Options{
		Directory: &stubDirectory{plans: map[string][]*domain.Plan{
			"sunnydale.example.com": {fixturePlan()},
		}},
	})

	w := serve(h, "http://sunnydale.example.com/fi/actions")

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/actions", w.Header().Get("Location"))
}

func TestRouter_LegacyPathRedirects(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(middleware.Options{
		Directory: &stubDirectory{plans: map[string][]*domain.Plan{
			"sunnydale.example.com": {fixturePlan()},
		}},
	})

	w := serve(h, "http://sunnydale.example.com/en/sunnydale/actions/a1")

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/en/actions/a1", w.Header().Get("Location"))
}

func TestRouter_UnpublishedPlanRewrite(t *testing.T) {
	t.Parallel()

	plan := fixturePlan()
	plan.PublishedAt = nil
	plan.Domain.Status = domain.DomainStatusUnpublished
	plan.Domain.StatusMessage = "Coming soon"

	h, c := newTestHandler(middleware.Options{
		Directory: &stubDirectory{plans: map[string][]*domain.Plan{
			"sunnydale.example.com": {plan},
		}},
	})

	// The original query must not leak onto the status page; only the
	// message parameter travels.
	w := serve(h, "http://sunnydale.example.com/actions?page=2")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/sunnydale.example.com/fi/unpublished", c.path)
	assert.Equal(t, "message=Coming+soon", c.query)
}

func TestRouter_ForwardedHostWins(t *testing.T) {
	t.Parallel()

	h, c := newTestHandler(middleware.Options{
		Directory: &stubDirectory{plans: map[string][]*domain.Plan{
			"sunnydale.example.com": {fixturePlan()},
		}},
	})

	r := httptest.NewRequest(http.MethodGet, "http://edge-internal:8080/actions", nil)
	r.Header.Set("X-Forwarded-Host", "Sunnydale.Example.Com:443")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/sunnydale.example.com/fi/sunnydale/actions", c.path)
}

// ===========================================================================
// Panic containment
// ===========================================================================

type panickyDirectory struct{}

func (panickyDirectory) PlansForHostname(context.Context, string) ([]*domain.Plan, error) {
	panic("directory exploded")
}

func TestRouter_PanicRecoversTo404(t *testing.T) {
	t.Parallel()

	rep := &recordingReporter{}
	h, c := newTestHandler(middleware.Options{
		Directory: panickyDirectory{},
		Reporter:  rep,
	})

	w := serve(h, "http://sunnydale.example.com/actions")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/404", c.path)
	assert.Equal(t, 1, rep.captured())
}
