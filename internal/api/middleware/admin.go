package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/pkg/response"
)

// AdminAuth 管理接口认证，HTTP Basic + bcrypt 口令
func AdminAuth(cfg config.AdminConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Username == "" || cfg.PasswordHash == "" {
			response.PermissionError(c, "管理接口未启用")
			c.Abort()
			return
		}

		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="admin"`)
			response.AuthError(c, "请提供管理员凭证")
			c.Abort()
			return
		}

		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
		passErr := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password))
		if !userMatch || passErr != nil {
			response.AuthError(c, "管理员凭证错误")
			c.Abort()
			return
		}

		c.Next()
	}
}
