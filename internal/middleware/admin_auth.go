package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blgu-assess-go/internal/model"
)

// AdminAuthMiddleware only lets ADMIN users through.
// 此中间件必须在 AuthMiddleware 之后使用。
func AdminAuthMiddleware() gin.HandlerFunc {
	return RequireRoles(model.RoleAdmin)
}

// RequireRoles lets a request through when the authenticated user holds one
// of roles. Must run after AuthMiddleware.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get("user")
		if !exists {
			abort(c, http.StatusInternalServerError, "user missing from request context")
			return
		}
		user, ok := value.(*model.User)
		if !ok || user == nil {
			abort(c, http.StatusInternalServerError, "unexpected user type in request context")
			return
		}
		if _, ok := allowed[user.Role]; !ok {
			abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}
