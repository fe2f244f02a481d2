package httpapi

import (
	"context"
	"net/http"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/MrEthical07/stepAuth/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Engine is the engine surface the handlers call.
type Engine interface {
	Signup(ctx context.Context, email, secret string, requiresTwoFactor bool) error
	Login(ctx context.Context, email, secret string) (*stepAuth.LoginResult, error)
	Redeem(ctx context.Context, email, attemptID, code string) (*stepAuth.LoginResult, error)
	Verify(ctx context.Context, token string) (*stepAuth.Claims, error)
	Logout(ctx context.Context, token string) error
	DeleteAccount(ctx context.Context, email string) error
}

// Handlers holds the route handlers.
type Handlers struct {
	engine       Engine
	logger       *zap.Logger
	secureCookie bool
	now          func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(engine Engine, logger *zap.Logger, secureCookie bool) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		engine:       engine,
		logger:       logger.Named("handlers"),
		secureCookie: secureCookie,
		now:          time.Now,
	}
}

type signupRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	RequiresTwoFactor bool   `json:"requires2FA"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyTwoFactorRequest struct {
	Email     string `json:"email"`
	AttemptID string `json:"loginAttemptId"`
	Code      string `json:"2FACode"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type deleteAccountRequest struct {
	Email string `json:"email"`
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "stepauthd"})
}

// Signup handles POST /signup.
func (h *Handlers) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c)
		return
	}

	if err := h.engine.Signup(c.Request.Context(), req.Email, req.Password, req.RequiresTwoFactor); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully!"})
}

// Login handles POST /login. A 2FA identity gets 206 with the attempt id;
// everyone else gets the token as a cookie and in the body.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c)
		return
	}

	res, err := h.engine.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.State == stepAuth.StateChallengePending {
		c.JSON(http.StatusPartialContent, gin.H{
			"message":        "2FA required",
			"loginAttemptId": res.AttemptID,
		})
		return
	}
	h.authenticated(c, res)
}

// VerifyTwoFactor handles POST /verify-2fa.
func (h *Handlers) VerifyTwoFactor(c *gin.Context) {
	var req verifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c)
		return
	}

	res, err := h.engine.Redeem(c.Request.Context(), req.Email, req.AttemptID, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.authenticated(c, res)
}

// Logout handles POST /logout. The token comes from the bearer header or the
// jwt cookie, and the cookie is cleared whenever a token was presented.
func (h *Handlers) Logout(c *gin.Context) {
	token, _ := middleware.TokenFromRequest(c.Request)

	err := h.engine.Logout(c.Request.Context(), token)
	if token != "" {
		h.clearCookie(c)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// VerifyToken handles POST /verify-token.
func (h *Handlers) VerifyToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c)
		return
	}

	claims, err := h.engine.Verify(c.Request.Context(), req.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject":   claims.Subject,
		"expiresAt": claims.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// DeleteAccount handles DELETE /delete-account behind middleware.RequireToken.
// A token may only delete its own subject.
func (h *Handlers) DeleteAccount(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c)
		return
	}
	if addr, err := stepAuth.ParseEmail(req.Email); err != nil || addr != claims.Subject {
		h.logger.Warn("delete-account subject mismatch", zap.String("subject", claims.Subject))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	if err := h.engine.DeleteAccount(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Me handles GET /me behind middleware.RequireToken.
func (h *Handlers) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": claims.Subject})
}

func (h *Handlers) authenticated(c *gin.Context, res *stepAuth.LoginResult) {
	maxAge := int(res.ExpiresAt.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, res.Token, maxAge, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"token": res.Token})
}

func (h *Handlers) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", "", h.secureCookie, true)
}

func (h *Handlers) badBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

func (h *Handlers) fail(c *gin.Context, err error) {
	outcome := stepAuth.OutcomeOf(err)
	if outcome == stepAuth.OutcomeServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(statusFor(outcome), gin.H{"error": messageFor(err, outcome)})
}

func statusFor(outcome stepAuth.Outcome) int {
	switch outcome {
	case stepAuth.OutcomeOK:
		return http.StatusOK
	case stepAuth.OutcomeBadRequest:
		return http.StatusBadRequest
	case stepAuth.OutcomeRejected:
		return http.StatusUnauthorized
	case stepAuth.OutcomeNotFound:
		return http.StatusNotFound
	case stepAuth.OutcomeConflict:
		return http.StatusConflict
	case stepAuth.OutcomeThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error, outcome stepAuth.Outcome) string {
	switch outcome {
	case stepAuth.OutcomeBadRequest:
		if err == stepAuth.ErrMissingToken {
			return "Missing token"
		}
		return "Invalid input"
	case stepAuth.OutcomeRejected:
		return "Invalid credentials"
	case stepAuth.OutcomeNotFound:
		return "User not found"
	case stepAuth.OutcomeConflict:
		return "User already exists"
	case stepAuth.OutcomeThrottled:
		return "Too many attempts, try again later"
	default:
		return "Unexpected error"
	}
}
