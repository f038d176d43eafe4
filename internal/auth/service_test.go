package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/planwatch/edge/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T, ttl time.Duration, hosts map[string]string) *auth.Service {
	t.Helper()
	protected := make(map[string]string, len(hosts))
	for host, password := range hosts {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		protected[host] = string(hash)
	}
	return auth.NewService(testSecret, ttl, protected)
}

func requestWithSession(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	}
	return r
}

func TestService_UnprotectedHostnameAlwaysPasses(t *testing.T) {
	t.Parallel()

	s := newService(t, time.Hour, map[string]string{"members.example.com": "hunter2"})

	assert.True(t, s.IsAuthenticated(requestWithSession(""), "public.example.com"))
	assert.False(t, s.Protected("public.example.com"))
	assert.True(t, s.Protected("members.example.com"))
}

func TestService_LoginAndAuthenticate(t *testing.T) {
	t.Parallel()

	s := newService(t, time.Hour, map[string]string{"members.example.com": "hunter2"})

	// No cookie, no entry.
	assert.False(t, s.IsAuthenticated(requestWithSession(""), "members.example.com"))

	token, err := s.Login("members.example.com", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.True(t, s.IsAuthenticated(requestWithSession(token), "members.example.com"))
}

func TestService_LoginWrongPassword(t *testing.T) {
	t.Parallel()

	s := newService(t, time.Hour, map[string]string{"members.example.com": "hunter2"})

	_, err := s.Login("members.example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)
}

func TestService_LoginUnprotectedHostname(t *testing.T) {
	t.Parallel()

	s := newService(t, time.Hour, map[string]string{"members.example.com": "hunter2"})

	_, err := s.Login("public.example.com", "anything")
	assert.ErrorIs(t, err, auth.ErrNotProtected)
}

func TestService_HostnamesAreCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := newService(t, time.Hour, map[string]string{"Members.Example.Com": "hunter2"})

	token, err := s.Login("members.example.com", "hunter2")
	require.NoError(t, err)
	assert.True(t, s.IsAuthenticated(requestWithSession(token), "MEMBERS.EXAMPLE.COM"))
}

func TestService_SessionScopedToHostname(t *testing.T) {
	t.Parallel()

	s := newService(t, time.Hour, map[string]string{
		"members.example.com": "hunter2",
		"board.example.com":   "different",
	})

	token, err := s.Login("members.example.com", "hunter2")
	require.NoError(t, err)

	assert.False(t, s.IsAuthenticated(requestWithSession(token), "board.example.com"),
		"a session for one hostname must not open another")
}

func TestService_ExpiredSessionRejected(t *testing.T) {
	t.Parallel()

	s := newService(t, -time.Minute, map[string]string{"members.example.com": "hunter2"})

	token, err := s.Login("members.example.com", "hunter2")
	require.NoError(t, err)

	assert.False(t, s.IsAuthenticated(requestWithSession(token), "members.example.com"))
}

func TestService_TamperedTokenRejected(t *testing.T) {
	t.Parallel()

	s := newService(t, time.Hour, map[string]string{"members.example.com": "hunter2"})

	token, err := s.Login("members.example.com", "hunter2")
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	assert.False(t, s.IsAuthenticated(requestWithSession(tampered), "members.example.com"))
}

func TestService_TokenSignedWithOtherSecretRejected(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	protected := map[string]string{"members.example.com": string(hash)}

	issuer := auth.NewService("another-secret-another-secret-xx", time.Hour, protected)
	verifier := auth.NewService(testSecret, time.Hour, protected)

	token, err := issuer.Login("members.example.com", "hunter2")
	require.NoError(t, err)

	assert.False(t, verifier.IsAuthenticated(requestWithSession(token), "members.example.com"))
}
