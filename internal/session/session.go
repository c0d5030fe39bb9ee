// Package session reads the identity carried by a backend access token.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSubject = errors.New("token has no subject")

// Claims holds the access token claims the client cares about. The backend
// issues the token; the client only reads it.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Session is the signed-in user derived from an access token.
type Session struct {
	Token     string
	UserID    string
	Email     string
	Role      string
	ExpiresAt time.Time
}

// Parse reads token. With a non-empty secret the HMAC signature and expiry
// are verified; without one the claims are read unverified, which is enough
// for a client that only uses them to label requests.
func Parse(token, secret string) (*Session, error) {
	claims := &Claims{}
	var err error
	if secret != "" {
		_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	}
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}

	s := &Session{
		Token:  token,
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Anonymous returns a session with no token for the given user id.
func Anonymous(userID string) *Session {
	return &Session{UserID: userID}
}

// IsExpired reports whether the token expires within margin of now. Tokens
// without an expiry never expire.
func (s *Session) IsExpired(margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(s.ExpiresAt)
}

// Issue signs a token for userID. The CLI uses it against local backends
// that share the secret.
func Issue(userID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
