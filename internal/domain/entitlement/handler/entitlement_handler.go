package handler

import (
	"net/http"

	"nanobanana_backend/internal/domain/entitlement/service"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/pkg/logger"
	"nanobanana_backend/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EntitlementHandler 权益查询接口
type EntitlementHandler struct {
	service service.Service
}

func NewEntitlementHandler(s service.Service) *EntitlementHandler {
	return &EntitlementHandler{service: s}
}

// AvailableTimes 当前用户剩余可用次数
// GET /api/v1/packages/available-times
func (h *EntitlementHandler) AvailableTimes(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	times, err := h.service.AvailableTimes(c.Request.Context(), userID)
	if err != nil {
		logger.Log.Error("get available times failed", zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "内部错误")
		return
	}
	response.Success(c, gin.H{"availableTimes": times})
}

// MyPackages 当前用户的权益记录，默认含已耗尽/已过期
// GET /api/v1/packages/my?status=active 仅返回仍可消耗的权益
func (h *EntitlementHandler) MyPackages(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	list := h.service.GetUserPackages
	if c.Query("status") == "active" {
		list = h.service.GetActiveUserPackages
	}

	pkgs, err := list(userID)
	if err != nil {
		logger.Log.Error("get user packages failed", zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "内部错误")
		return
	}
	response.Success(c, gin.H{"packages": pkgs})
}
