package httpapi

import (
	"net/http"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/MrEthical07/stepAuth/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Options configures NewRouter.
type Options struct {
	Engine       Engine
	Logger       *zap.Logger
	CORSOrigins  []string
	SecureCookie bool
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are honored. Empty means the socket peer is the client IP.
	TrustedProxies []string
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the gin engine with recovery, request logging and CORS.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		logger.Warn("invalid trusted proxies, ignoring forwarding headers", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	router.Use(requestContext())
	router.Use(requestLogger(logger.Named("http")))
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := NewHandlers(opts.Engine, logger, opts.SecureCookie)

	router.GET("/health", h.Health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	router.POST("/signup", h.Signup)
	router.POST("/login", h.Login)
	router.POST("/verify-2fa", h.VerifyTwoFactor)
	router.POST("/logout", h.Logout)
	router.POST("/verify-token", h.VerifyToken)
	requireToken := middleware.RequireToken(opts.Engine, logger)
	router.DELETE("/delete-account", requireToken, h.DeleteAccount)
	router.GET("/me", requireToken, h.Me)

	return router
}

// requestContext carries the client IP and request id into engine audit
// events. An incoming X-Request-ID is kept; otherwise one is generated.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)

		ctx := stepAuth.WithClientIP(c.Request.Context(), c.ClientIP())
		ctx = stepAuth.WithRequestID(ctx, rid)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.Writer.Header().Get(requestIDHeader)),
		)
	}
}
