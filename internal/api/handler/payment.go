package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/api/middleware"
	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/pkg/response"
	"github.com/kudoai/billing_go_server/internal/service"
)

type PaymentHandler struct {
	paymentService      *service.PaymentService
	subscriptionService *service.SubscriptionService
	pricingCfg          *config.PricingConfig
}

func NewPaymentHandler(
	paymentService *service.PaymentService,
	subscriptionService *service.SubscriptionService,
	pricingCfg *config.PricingConfig,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService:      paymentService,
		subscriptionService: subscriptionService,
		pricingCfg:          pricingCfg,
	}
}

// CreatePayment 创建支付
// POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.CreatePayment(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound), errors.Is(err, service.ErrPackNotFound):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "创建支付失败")
		}
		return
	}

	response.Success(c, resp)
}

// SubscriptionStatus 订阅状态
// GET /api/v1/subscription
func (h *PaymentHandler) SubscriptionStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.subscriptionService.Status(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
		} else {
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, status)
}

// Catalog 套餐与充值包目录
// GET /api/v1/catalog
func (h *PaymentHandler) Catalog(c *gin.Context) {
	response.Success(c, gin.H{
		"plans":       h.pricingCfg.Plans,
		"topup_packs": h.pricingCfg.TopupPacks,
	})
}
