package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/errs"
)

// AuthMiddleware validates the bearer token and stores the user id under "userID".
func AuthMiddleware(resolver auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		userID, err := resolver.Resolve(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, errs.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.AbortWithStatusJSON(errs.HTTPStatus(err), gin.H{"error": errs.Message(err), "code": errs.Code(err)})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
