package middleware

import (
	"context"
	"net/http"
	"strings"

	stepAuth "github.com/MrEthical07/stepAuth"
)

// CookieName is the cookie the HTTP API sets on successful login.
const CookieName = "jwt"

// Verifier is the part of [stepAuth.Engine] the guards need.
type Verifier interface {
	Verify(ctx context.Context, token string) (*stepAuth.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by [Guard].
func ClaimsFromContext(ctx context.Context) (*stepAuth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*stepAuth.Claims)
	return claims, ok
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, claims *stepAuth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// Guard rejects requests without a valid, unrevoked token.
func Guard(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := TokenFromRequest(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				status := StatusFor(err)
				http.Error(w, http.StatusText(status), status)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// TokenFromRequest reads the bearer token, or the jwt cookie when no
// Authorization header is sent.
func TokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		return bearerToken(header)
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// StatusFor maps a Verify error to an HTTP status. Only backend failures are
// 5xx; everything else a guard sees is 401.
func StatusFor(err error) int {
	switch stepAuth.OutcomeOf(err) {
	case stepAuth.OutcomeOK:
		return http.StatusOK
	case stepAuth.OutcomeServerError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
