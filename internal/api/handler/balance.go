package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kudoai/billing_go_server/internal/api/middleware"
	"github.com/kudoai/billing_go_server/internal/pkg/response"
	"github.com/kudoai/billing_go_server/internal/service"
)

type BalanceHandler struct {
	accountService *service.AccountService
	billingService *service.BillingService
	statsService   *service.StatsService
}

func NewBalanceHandler(
	accountService *service.AccountService,
	billingService *service.BillingService,
	statsService *service.StatsService,
) *BalanceHandler {
	return &BalanceHandler{
		accountService: accountService,
		billingService: billingService,
		statsService:   statsService,
	}
}

// GetBalance 查询双余额
// GET /api/v1/balance
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	balance, err := h.accountService.GetBalance(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
		} else {
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, balance)
}

// CheckAccess 检查功能访问权限与价格
// GET /api/v1/balance/access?feature=video_8s_audio
func (h *BalanceHandler) CheckAccess(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	feature, err := service.ParseFeatureKey(c.Query("feature"))
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}

	access, err := h.billingService.CheckAccess(userID, feature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserBlocked):
			response.BlockedError(c, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, access)
}

// Deduct 按功能扣费
// POST /api/v1/balance/deduct
func (h *BalanceHandler) Deduct(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req struct {
		Feature string `json:"feature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	feature, err := service.ParseFeatureKey(req.Feature)
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.billingService.DeductForFeature(userID, feature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientFunds):
			response.InsufficientFundsError(c, err.Error())
		case errors.Is(err, service.ErrUserBlocked):
			response.BlockedError(c, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, result)
}

// Refund 按功能退款
// POST /api/v1/balance/refund
func (h *BalanceHandler) Refund(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req struct {
		Feature string `json:"feature" binding:"required"`
		Reason  string `json:"reason,omitempty" binding:"omitempty,max=200"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	feature, err := service.ParseFeatureKey(req.Feature)
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}

	balance, err := h.billingService.RefundFeature(userID, feature, req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
		} else {
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, balance)
}

// GetTransactions 交易记录
// GET /api/v1/balance/transactions
func (h *BalanceHandler) GetTransactions(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	items, err := h.accountService.GetTransactions(userID, limit, offset)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}

// GetStats 消费统计
// GET /api/v1/balance/stats?days=30
func (h *BalanceHandler) GetStats(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	stats, err := h.statsService.GetSpendingStats(userID, days)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, stats)
}
