package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kudoai/billing_go_server/config"
	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/pkg/jwt"
	"github.com/kudoai/billing_go_server/internal/pkg/response"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/service"
)

// AdminHandler 管理接口：发 token、调余额、封禁。
// 调用方是机器人后端和运营脚本，不是终端用户
type AdminHandler struct {
	accountService *service.AccountService
	userRepo       *repository.UserRepository
	jwtCfg         *config.JWTConfig
}

func NewAdminHandler(
	accountService *service.AccountService,
	userRepo *repository.UserRepository,
	jwtCfg *config.JWTConfig,
) *AdminHandler {
	return &AdminHandler{
		accountService: accountService,
		userRepo:       userRepo,
		jwtCfg:         jwtCfg,
	}
}

// IssueToken 为用户签发 API token，用户不存在时自动建档
// POST /api/v1/admin/tokens
func (h *AdminHandler) IssueToken(c *gin.Context) {
	var req struct {
		UserID   int64  `json:"user_id" binding:"required"`
		Username string `json:"username,omitempty" binding:"omitempty,max=100"`
		Language string `json:"language,omitempty" binding:"omitempty,max=10"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	user, err := h.userRepo.Ensure(req.UserID, req.Username, req.Language)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	token, err := jwt.GenerateToken(user.ID, h.jwtCfg.Secret, h.jwtCfg.ExpireHours)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{
		"token":   token,
		"user_id": user.ID,
	})
}

// SetBalance 设置用户余额
// POST /api/v1/admin/balance
func (h *AdminHandler) SetBalance(c *gin.Context) {
	var req dto.SetBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	balance, err := h.accountService.SetBalance(req.UserID, req.Balance, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrInvalidAmount):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "余额已更新", balance)
}

// SetBlocked 封禁或解封用户
// POST /api/v1/admin/block
func (h *AdminHandler) SetBlocked(c *gin.Context) {
	var req struct {
		UserID  int64 `json:"user_id" binding:"required"`
		Blocked *bool `json:"blocked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if _, err := h.userRepo.GetByID(req.UserID); err != nil {
		response.NotFoundError(c, service.ErrUserNotFound.Error())
		return
	}

	if err := h.userRepo.SetBlocked(req.UserID, *req.Blocked); err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "状态已更新", gin.H{
		"user_id": req.UserID,
		"blocked": *req.Blocked,
	})
}

// GetUser 用户档案
// GET /api/v1/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的用户ID")
		return
	}

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		response.NotFoundError(c, service.ErrUserNotFound.Error())
		return
	}

	response.Success(c, user)
}
