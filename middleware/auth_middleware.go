package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pulsetrack/api/utils"
)

// AuthRequired rejects requests without a valid dashboard JWT, taken from the
// jwt_token cookie or an Authorization bearer header. On success the user id
// and email land in the gin context for downstream handlers.
func AuthRequired(secret []byte, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := TokenFromRequest(c)
		if tokenString == "" {
			log.Warn("No JWT token found in cookie or header",
				zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
			return
		}

		claims, err := utils.ValidateJWT(tokenString, secret)
		if err != nil {
			log.Warn("Invalid JWT token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

// TokenFromRequest extracts a JWT from the jwt_token cookie, falling back to
// the Authorization header. Empty string when neither carries one.
func TokenFromRequest(c *gin.Context) string {
	if tokenString, err := c.Cookie("jwt_token"); err == nil && tokenString != "" {
		return tokenString
	}

	tokenString := c.GetHeader("Authorization")
	if strings.HasPrefix(tokenString, "Bearer ") {
		tokenString = tokenString[7:]
	}
	return tokenString
}
