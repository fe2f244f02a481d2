package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	tokens map[string]error
	seen   []string
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*stepAuth.Claims, error) {
	f.seen = append(f.seen, token)
	err, ok := f.tokens[token]
	if !ok {
		return nil, stepAuth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &stepAuth.Claims{Subject: "alice@example.com", ID: "jti-1", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func newVerifier() *fakeVerifier {
	return &fakeVerifier{tokens: map[string]error{
		"good":    nil,
		"revoked": stepAuth.ErrUnauthorized,
		"backend": fmt.Errorf("%w: redis down", stepAuth.ErrUnexpected),
	}}
}

func TestGuard(t *testing.T) {
	v := newVerifier()
	handler := Guard(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(claims.Subject))
	}))

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{name: "bearer", header: "Bearer good", status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer good", status: http.StatusOK},
		{name: "cookie", cookie: "good", status: http.StatusOK},
		{name: "none", status: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "header wins over cookie", header: "Bearer revoked", cookie: "good", status: http.StatusUnauthorized},
		{name: "unknown", header: "Bearer other", status: http.StatusUnauthorized},
		{name: "backend failure", header: "Bearer backend", status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "alice@example.com", rec.Body.String())
			}
		})
	}
}

func TestGuardNilVerifier(t *testing.T) {
	handler := Guard(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireToken(t *testing.T) {
	v := newVerifier()
	router := gin.New()
	router.GET("/me", RequireToken(v, nil), func(c *gin.Context) {
		value, ok := c.Get(ClaimsKey)
		require.True(t, ok)
		fromCtx, ok := ClaimsFromContext(c.Request.Context())
		require.True(t, ok)
		require.Same(t, value, fromCtx)
		c.JSON(http.StatusOK, gin.H{"subject": fromCtx.Subject})
	})

	cases := map[string]int{
		"good":    http.StatusOK,
		"revoked": http.StatusUnauthorized,
		"backend": http.StatusServiceUnavailable,
		"":        http.StatusUnauthorized,
	}
	for token, status := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, "token %q", token)
	}
	assert.NotContains(t, v.seen, "", "missing tokens must not reach the engine")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(stepAuth.ErrMissingToken))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(stepAuth.ErrInvalidToken))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(stepAuth.ErrEngineNotReady))
}
