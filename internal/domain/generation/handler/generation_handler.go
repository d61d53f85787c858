package handler

import (
	"errors"
	"net/http"

	"nanobanana_backend/internal/domain/generation/service"
	"nanobanana_backend/internal/pkg/imageapi"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/pkg/logger"
	"nanobanana_backend/pkg/response"
	"nanobanana_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GenerationHandler 图像生成接口
type GenerationHandler struct {
	service service.GenerationService
}

func NewGenerationHandler(s service.GenerationService) *GenerationHandler {
	return &GenerationHandler{service: s}
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required,max=2000"`
	Model  string `json:"model"`
}

// Generate 发起一次图像生成
// POST /api/v1/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误: "+err.Error())
		return
	}

	history, err := h.service.Generate(c.Request.Context(), userID, service.GenerateInput{
		Prompt: req.Prompt,
		Model:  req.Model,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTimesExhausted):
			response.Error(c, http.StatusForbidden, response.ErrTimesExhausted, "可用次数不足，请购买套餐")
		case errors.Is(err, imageapi.ErrGenerationFailed):
			response.Error(c, http.StatusBadGateway, response.ErrExternalService, "生成服务暂时不可用")
		default:
			logger.Log.Error("generation failed", zap.String("user_id", userID), zap.Error(err))
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "生成失败")
		}
		return
	}
	response.Success(c, history)
}

// History 生成记录分页
// GET /api/v1/generate/history
func (h *GenerationHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误")
		return
	}
	_, limit := p.GetPageOffset()

	histories, total, err := h.service.History(userID, p.Page, limit)
	if err != nil {
		logger.Log.Error("get generation history failed", zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "内部错误")
		return
	}
	response.Success(c, utils.PageResult{
		List:  histories,
		Total: total,
		Page:  p.Page,
		Limit: limit,
	})
}
