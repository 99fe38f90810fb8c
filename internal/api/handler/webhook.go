package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/service"
)

// WebhookHandler 外部回调入口。
// 不走统一响应格式：支付网关和生成服务商只认 HTTP 状态码，
// 2xx 表示收到，5xx 触发对方重发
type WebhookHandler struct {
	paymentService    *service.PaymentService
	generationService *service.GenerationService
}

func NewWebhookHandler(
	paymentService *service.PaymentService,
	generationService *service.GenerationService,
) *WebhookHandler {
	return &WebhookHandler{
		paymentService:    paymentService,
		generationService: generationService,
	}
}

// Payment 支付网关 webhook
// POST /webhooks/payment
func (h *WebhookHandler) Payment(c *gin.Context) {
	var webhook dto.PaymentWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}

	err := h.paymentService.ProcessWebhook(&webhook)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, service.ErrDuplicatePayment):
		// 已入账，回 200 让网关停止重发
		c.JSON(http.StatusOK, gin.H{"status": "already processed"})
	case errors.Is(err, service.ErrBadWebhook), errors.Is(err, service.ErrPlanNotFound):
		// 数据本身有问题，重发也没用
		log.Printf("支付 webhook 数据无效: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		// 内部故障，让网关稍后重发
		log.Printf("支付 webhook 处理失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// ProviderCallback 生成服务商完成回调
// POST /webhooks/provider
func (h *WebhookHandler) ProviderCallback(c *gin.Context) {
	var cb dto.ProviderCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}

	err := h.generationService.HandleProviderCallback(c.Request.Context(), &cb)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, service.ErrTaskNotFound):
		log.Printf("回调找不到任务: %v", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("生成回调处理失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
