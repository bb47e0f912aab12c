// Package csrf issues and checks per-action tokens for state-changing forms.
//
// A token is a short-lived HS256 JWT binding an intention (e.g. "delete42")
// to the session it was rendered for. Requests without an authenticated
// principal share the AnonymousSession id.
package csrf

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AnonymousSession is the session id used for unauthenticated callers.
const AnonymousSession = "anonymous"

var ErrInvalidToken = errors.New("invalid csrf token")

// Manager signs and verifies tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager returns a Manager. An empty secret yields a random per-process
// key, so tokens do not survive a restart.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Manager{secret: key, ttl: ttl, now: time.Now}, nil
}

type claims struct {
	Session   string `json:"sid"`
	Intention string `json:"int"`
	jwt.RegisteredClaims
}

// Generate returns a token for intention, valid for the given session.
func (m *Manager) Generate(session, intention string) (string, error) {
	now := m.now()
	c := claims{
		Session:   session,
		Intention: intention,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// Check returns nil when token was issued by this manager for the same
// session and intention and has not expired.
func (m *Manager) Check(session, intention, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if c.Session != session || c.Intention != intention {
		return ErrInvalidToken
	}
	return nil
}

// Valid is Check reduced to a boolean.
func (m *Manager) Valid(session, intention, token string) bool {
	return m.Check(session, intention, token) == nil
}
