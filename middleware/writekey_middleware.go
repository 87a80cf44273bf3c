package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pulsetrack/api/store"
)

const WriteKeyHeader = "X-Write-Key"

// WriteKeyRequired gates the collection endpoint behind a per-tenant write key
// when enabled. With enforcement off the middleware is a no-op and the payload
// tenant id is trusted as-is, which is the stock snippet contract.
func WriteKeyRequired(keys store.WriteKeyStore, log *zap.Logger, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		key := c.GetHeader(WriteKeyHeader)
		if key == "" {
			log.Warn("Write key missing from collect request", zap.String("remote_addr", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: write key required"})
			return
		}

		isValid, err := keys.IsValid(c.Request.Context(), key)
		if err != nil {
			log.Error("Failed to validate write key", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if !isValid {
			log.Warn("Invalid write key provided", zap.String("remote_addr", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: invalid write key"})
			return
		}

		c.Next()
	}
}
