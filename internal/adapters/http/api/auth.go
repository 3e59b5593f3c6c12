package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the claim value that unlocks generate, submit and cancel.
const RoleAdmin = "admin"

type contextKey string

// ClaimsContextKey holds the verified *Claims of an admin request.
const ClaimsContextKey contextKey = "claims"

// Claims is the token payload accepted by the admin guard.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens. A zero-length secret turns
// the guard off.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator returns a guard keyed by secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether tokens are checked.
func (a *Authenticator) Enabled() bool { return a != nil && len(a.secret) > 0 }

// GenerateToken signs a token for subject with role, valid for ttl.
func (a *Authenticator) GenerateToken(subject, role string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies a signed token.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// RequireAdmin rejects requests without a valid admin bearer token.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
			return
		}
		claims, err := a.ValidateToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", fmt.Errorf("%w: %s", ErrUnauthorized, tokenProblem(err)))
			return
		}
		if claims.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", ErrForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the admin claims attached by RequireAdmin.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsContextKey).(*Claims)
	return claims
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

func tokenProblem(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad signature"
	default:
		return "malformed token"
	}
}
