package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kudoai/billing_go_server/internal/pkg/response"
	"github.com/kudoai/billing_go_server/internal/repository"
)

// BlockedCheck 封禁检查中间件，挡掉被封禁用户的所有消费操作
func BlockedCheck(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		blocked, err := userRepo.IsBlocked(userID)
		if err != nil {
			response.NotFoundError(c, "用户不存在")
			c.Abort()
			return
		}

		if blocked {
			response.BlockedError(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
