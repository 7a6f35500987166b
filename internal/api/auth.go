package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for bearer tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

type ctxKey string

const userIDKey ctxKey = "userID"

// Authenticator resolves the calling user. With a secret it verifies HS256
// bearer tokens and takes the user id from the subject claim; without one
// every request runs as the default user.
type Authenticator struct {
	secret      []byte
	defaultUser string
}

// NewAuthenticator creates an Authenticator. An empty secret selects
// single-user mode.
func NewAuthenticator(secret, defaultUser string) *Authenticator {
	if defaultUser == "" {
		defaultUser = "local"
	}
	return &Authenticator{secret: []byte(secret), defaultUser: defaultUser}
}

// SingleUser reports whether tokens are ignored.
func (a *Authenticator) SingleUser() bool {
	return len(a.secret) == 0
}

// GenerateToken signs a token for userID valid for ttl.
func GenerateToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}

// UserFromToken verifies tokenString and returns its subject.
func (a *Authenticator) UserFromToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Require wraps next so it only runs for an identified user.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.SingleUser() {
			next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, a.defaultUser)))
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		userID, err := a.UserFromToken(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// UserID returns the user set by Require, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
