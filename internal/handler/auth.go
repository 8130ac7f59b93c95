package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"coupon-escrow/internal/domain"
	"coupon-escrow/internal/repo"
)

const userKey = "user"

// AuthRequired resolves the session token (cookie or bearer header) to a
// user. Session issuance itself lives outside this service; we only read
// the session store it maintains.
func AuthRequired(users repo.UserRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("session_token")
		if token == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		user, err := users.FindBySessionToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth lookup failed"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// AdminRequired gates adjudicator endpoints. Runs after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c).Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(userKey).(*domain.User)
}
