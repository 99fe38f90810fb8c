package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kudoai/billing_go_server/internal/api/middleware"
	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/pkg/response"
	"github.com/kudoai/billing_go_server/internal/service"
)

type TaskHandler struct {
	generationService *service.GenerationService
}

func NewTaskHandler(generationService *service.GenerationService) *TaskHandler {
	return &TaskHandler{
		generationService: generationService,
	}
}

// Create 创建生成任务
// POST /api/v1/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.generationService.CreateTask(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeTaskError(c, err)
		return
	}

	response.SuccessWithMessage(c, "任务已创建", resp)
}

// Regenerate 用上次参数重新生成
// POST /api/v1/tasks/regenerate
func (h *TaskHandler) Regenerate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.generationService.Regenerate(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoLastRequest) {
			response.NotFoundError(c, err.Error())
			return
		}
		h.writeTaskError(c, err)
		return
	}

	response.SuccessWithMessage(c, "任务已创建", resp)
}

// Get 任务详情
// GET /api/v1/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的任务ID")
		return
	}

	detail, err := h.generationService.GetTask(userID, taskID)
	if err != nil {
		response.NotFoundError(c, service.ErrTaskNotFound.Error())
		return
	}

	response.Success(c, detail)
}

// List 任务列表
// GET /api/v1/tasks
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	items, err := h.generationService.ListTasks(userID, limit, offset)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}

func (h *TaskHandler) writeTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		response.InsufficientFundsError(c, err.Error())
	case errors.Is(err, service.ErrUserBlocked):
		response.BlockedError(c, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrUnknownFeature):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
