package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"gpio_control_server/pkg/logger"
)

// OperatorAuth checks the bearer token against a bcrypt hash. An empty hash
// turns authentication off, which is how bench setups run.
func OperatorAuth(tokenHash string, log *logger.Logger) gin.HandlerFunc {
	if tokenHash == "" {
		return func(c *gin.Context) { c.Next() }
	}
	hash := []byte(tokenHash)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Logger.Warn().Str("path", c.FullPath()).Msg("Authentication failed: No Authorization header")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Unauthorized",
				"message": "Authorization header is required",
			})
			c.Abort()
			return
		}

		// Extract token from Bearer token format
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" || tokenParts[1] == "" {
			log.Logger.Warn().Str("path", c.FullPath()).Msg("Authentication failed: Invalid Authorization header format")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Unauthorized",
				"message": "Invalid authorization header format. Use: Bearer <token>",
			})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(tokenParts[1])); err != nil {
			log.Logger.Warn().Str("path", c.FullPath()).Msg("Authentication failed: Invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Unauthorized",
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
