package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/api/handler"
	"github.com/kudoai/billing_go_server/internal/api/middleware"
	"github.com/kudoai/billing_go_server/internal/repository"
)

type Router struct {
	balanceHandler   *handler.BalanceHandler
	taskHandler      *handler.TaskHandler
	paymentHandler   *handler.PaymentHandler
	webhookHandler   *handler.WebhookHandler
	adminHandler     *handler.AdminHandler
	websocketHandler *handler.WebSocketHandler
	userRepo         *repository.UserRepository
	cfg              *config.Config
}

func NewRouter(
	balanceHandler *handler.BalanceHandler,
	taskHandler *handler.TaskHandler,
	paymentHandler *handler.PaymentHandler,
	webhookHandler *handler.WebhookHandler,
	adminHandler *handler.AdminHandler,
	websocketHandler *handler.WebSocketHandler,
	userRepo *repository.UserRepository,
	cfg *config.Config,
) *Router {
	return &Router{
		balanceHandler:   balanceHandler,
		taskHandler:      taskHandler,
		paymentHandler:   paymentHandler,
		webhookHandler:   webhookHandler,
		adminHandler:     adminHandler,
		websocketHandler: websocketHandler,
		userRepo:         userRepo,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 外部回调，网关只认 HTTP 状态码，不走统一响应格式
	webhooks := engine.Group("/webhooks")
	{
		webhooks.POST("/payment", r.webhookHandler.Payment)
		webhooks.POST("/provider", r.webhookHandler.ProviderCallback)
	}

	api := engine.Group("/api/v1")
	{
		// WebSocket 进度推送
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 套餐目录
		api.GET("/catalog", r.paymentHandler.Catalog)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 余额
			balance := authenticated.Group("/balance")
			{
				balance.GET("", r.balanceHandler.GetBalance)
				balance.GET("/access", r.balanceHandler.CheckAccess)
				balance.GET("/transactions", r.balanceHandler.GetTransactions)
				balance.GET("/stats", r.balanceHandler.GetStats)
			}

			// 订阅
			authenticated.GET("/subscription", r.paymentHandler.SubscriptionStatus)

			// 扣费和任务需要未封禁的用户
			spend := authenticated.Group("")
			spend.Use(middleware.BlockedCheck(r.userRepo))
			{
				spend.POST("/balance/deduct", r.balanceHandler.Deduct)
				spend.POST("/balance/refund", r.balanceHandler.Refund)

				spend.POST("/payments", r.paymentHandler.CreatePayment)

				tasks := spend.Group("/tasks")
				{
					tasks.POST("", r.taskHandler.Create)
					tasks.POST("/regenerate", r.taskHandler.Regenerate)
					tasks.GET("", r.taskHandler.List)
					tasks.GET("/:id", r.taskHandler.Get)
				}
			}
		}

		// 管理接口
		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuth(r.cfg.Admin))
		{
			admin.POST("/tokens", r.adminHandler.IssueToken)
			admin.POST("/balance", r.adminHandler.SetBalance)
			admin.POST("/block", r.adminHandler.SetBlocked)
			admin.GET("/users/:id", r.adminHandler.GetUser)
		}
	}

	return engine
}
