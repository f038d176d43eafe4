// Package auth implements the authentication gate for password-protected
// hostnames: a bcrypt password check that issues an HS256 session cookie,
// and the boolean predicate the routing middleware consults.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "edge_session"

var (
	ErrInvalidPassword = errors.New("auth: invalid password")
	ErrNotProtected    = errors.New("auth: hostname is not protected")
	ErrInvalidSession  = errors.New("auth: invalid or expired session")
)

type sessionClaims struct {
	jwt.RegisteredClaims
	Hostname string `json:"hst"`
}

// Service holds per-hostname protection state. Hostnames absent from the
// protected map are public.
type Service struct {
	secret     string
	sessionTTL time.Duration
	protected  map[string]string // hostname -> bcrypt password hash
}

func NewService(secret string, sessionTTL time.Duration, protected map[string]string) *Service {
	norm := make(map[string]string, len(protected))
	for host, hash := range protected {
		norm[strings.ToLower(host)] = hash
	}
	return &Service{secret: secret, sessionTTL: sessionTTL, protected: norm}
}

// Protected reports whether hostname requires a password.
func (s *Service) Protected(hostname string) bool {
	_, ok := s.protected[strings.ToLower(hostname)]
	return ok
}

// SessionTTL returns the configured session lifetime, for cookie expiry.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// IsAuthenticated is the boolean gate the routing middleware consults.
// Unprotected hostnames always pass; protected ones need a valid session
// cookie scoped to the same hostname.
func (s *Service) IsAuthenticated(r *http.Request, hostname string) bool {
	if !s.Protected(hostname) {
		return true
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}
	_, err = s.validateSession(c.Value, hostname)
	return err == nil
}

// Login checks password against the hostname's hash and issues a signed
// session token on success.
func (s *Service) Login(hostname, password string) (string, error) {
	hash, ok := s.protected[strings.ToLower(hostname)]
	if !ok {
		return "", ErrNotProtected
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidPassword
	}

	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			Issuer:    "edge",
		},
		Hostname: strings.ToLower(hostname),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("auth.Service.Login: %w", err)
	}
	return signed, nil
}

func (s *Service) validateSession(tokenStr, hostname string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(s.secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	if !strings.EqualFold(claims.Hostname, hostname) {
		// A session for one protected hostname does not open another.
		return nil, ErrInvalidSession
	}
	return claims, nil
}
