package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserHeader names the caller when no token secret is configured
const UserHeader = "X-User-Id"

var (
	// ErrNoCaller is returned when a request does not identify its caller
	ErrNoCaller = errors.New("caller identity is missing")
	// ErrBadToken is returned when a bearer token cannot be verified
	ErrBadToken = errors.New("invalid bearer token")
	// ErrBadCredentials is returned when basic auth does not match a configured user
	ErrBadCredentials = errors.New("invalid username or password")
)

type callerKey struct{}

// Identifier resolves the user id of each request. With a secret it accepts
// HS256 bearer tokens carrying a sub or user_id claim. With users it accepts HTTP
// basic auth checked against bcrypt hashes. With neither it trusts the X-User-Id
// header.
type Identifier struct {
	secret []byte
	users  map[string]string
}

// NewIdentifier creates an identifier. users maps a user id to its bcrypt
// password hash.
func NewIdentifier(secret string, users map[string]string) *Identifier {
	id := &Identifier{users: users}
	if secret != "" {
		id.secret = []byte(secret)
	}
	return id
}

// Identify returns the caller of r
func (i *Identifier) Identify(r *http.Request) (string, error) {
	if i.secret == nil && len(i.users) == 0 {
		user := strings.TrimSpace(r.Header.Get(UserHeader))
		if user == "" {
			return "", ErrNoCaller
		}
		return user, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoCaller
	}
	if user, password, ok := r.BasicAuth(); ok && len(i.users) > 0 {
		return i.checkPassword(user, password)
	}
	parts := strings.Split(header, " ")
	if i.secret == nil || len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", fmt.Errorf("%w: malformed authorization header", ErrBadToken)
	}
	return i.userFromToken(parts[1])
}

func (i *Identifier) checkPassword(user, password string) (string, error) {
	hash, ok := i.users[user]
	if !ok {
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return user, nil
}

// HashPassword returns the bcrypt hash stored in auth.users
func HashPassword(password string) (string, error) {
	if len(password) > 72 {
		return "", fmt.Errorf("password exceeds maximum length of 72 bytes")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (i *Identifier) userFromToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrBadToken
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	if user, ok := claims["user_id"].(string); ok && user != "" {
		return user, nil
	}
	return "", fmt.Errorf("%w: no sub or user_id claim", ErrBadToken)
}

// Middleware rejects unidentified requests with 401 and stores the caller in the
// request context
func (i *Identifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := i.Identify(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, user)))
	})
}

// Caller returns the user id stored by Middleware
func Caller(ctx context.Context) string {
	user, _ := ctx.Value(callerKey{}).(string)
	return user
}
