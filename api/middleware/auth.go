package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapedesk/models"
)

// apiKeyContextKey holds the authenticated key on the gin context.
const apiKeyContextKey = "api_key"

// Auth returns API-key authentication middleware. A key is accepted from,
// in order:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//	?api_key=<key>
//
// The query parameter exists for websocket clients, which cannot set
// headers on the upgrade request. With no usable keys the middleware lets
// everything through.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := apiKeyFrom(c)
		switch _, ok := keys[key]; {
		case key == "":
			unauthorized(c, "missing API key: provide X-API-Key header, Authorization: Bearer <key> or ?api_key=")
		case !ok:
			unauthorized(c, "invalid API key")
		default:
			c.Set(apiKeyContextKey, key)
			c.Next()
		}
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: msg},
	})
}

func apiKeyFrom(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer)
	}
	return c.Query("api_key")
}
