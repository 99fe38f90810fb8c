package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kudoai/billing_go_server/internal/pkg/jwt"
	"github.com/kudoai/billing_go_server/internal/pkg/response"
)

// UserIDKey 上下文里的用户标识，值是 Telegram chat ID
const UserIDKey = "userID"

// Auth JWT 认证中间件。
// token 由机器人后台通过管理接口代用户签发
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.AuthError(c, "需要 Bearer token")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(token, jwtSecret)
		if err != nil {
			response.AuthError(c, "token 无效或已过期")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}
