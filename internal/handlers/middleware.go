package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userIdCtxKey = "userId"

func (h *Handler) userIdMiddleware(c *gin.Context) {
	token, msg := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": msg,
		})
		return
	}

	userId, err := h.services.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	// store in Gin context
	c.Set(userIdCtxKey, userId)
	c.Next()
}

// bearerToken reads the token from the Authorization header, falling back to
// the ?token= query parameter. On failure it returns "" and a client message.
func bearerToken(c *gin.Context) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if t := strings.TrimSpace(c.Query("token")); t != "" {
			return t, ""
		}
		return "", "missing Authorization header"
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", "invalid Authorization header format"
	}
	return strings.TrimSpace(parts[1]), ""
}

// userID returns the id stored by userIdMiddleware, or 0 when absent.
func userID(c *gin.Context) int {
	v, ok := c.Get(userIdCtxKey)
	if !ok {
		return 0
	}
	id, _ := v.(int)
	return id
}
