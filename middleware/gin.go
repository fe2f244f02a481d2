package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClaimsKey is the gin context key holding *stepAuth.Claims.
const ClaimsKey = "stepauth.claims"

// RequireToken is the gin form of [Guard]. The claims are available through
// c.Get(ClaimsKey) and [ClaimsFromContext] on c.Request.Context().
func RequireToken(verifier Verifier, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		token, ok := TokenFromRequest(c.Request)
		if !ok {
			c.AbortWithStatusJSON(401, gin.H{"error": "Token required"})
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			status := StatusFor(err)
			if status >= 500 {
				logger.Error("token verification failed", zap.Error(err))
				c.AbortWithStatusJSON(status, gin.H{"error": "Service unavailable"})
				return
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}
