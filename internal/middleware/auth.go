// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/log"
	"blgu-assess-go/pkg/token"
)

const bearerPrefix = "Bearer "

// AuthMiddleware verifies the bearer access token and stores the full
// *model.User under "user" and the token claims under "claims".
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "missing Authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			abort(c, http.StatusUnauthorized, "invalid Authorization header format")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyKind(tokenString, token.KindAccess)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if userService.IsTokenRevoked(c.Request.Context(), tokenString) {
			abort(c, http.StatusUnauthorized, "token has been revoked")
			return
		}

		user, err := userService.GetProfile(claims.Username)
		if err != nil {
			log.Warnf("AuthMiddleware: user '%s' from a valid token not found: %v", claims.Username, err)
			abort(c, http.StatusUnauthorized, "user not found")
			return
		}

		c.Set("user", user)
		c.Set("claims", claims)
		c.Next()
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message, "data": nil})
}
