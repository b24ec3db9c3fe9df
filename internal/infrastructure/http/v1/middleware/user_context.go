package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "salescycle/internal/core/context"
)

// Identity headers are set by the gateway after authentication.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRoles = "X-User-Roles"
)

// UserContext puts the acting user on the request context. Without the header
// the request runs as the system actor.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID != "" {
			user := &appctx.UserContext{
				UserID: userID,
				Email:  c.GetHeader(HeaderUserEmail),
			}
			for _, r := range strings.Split(c.GetHeader(HeaderUserRoles), ",") {
				if r = strings.TrimSpace(r); r != "" {
					user.Roles = append(user.Roles, r)
				}
			}
			c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
			c.Set("user_id", userID)
		}
		c.Next()
	}
}
