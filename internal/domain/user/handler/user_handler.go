package handler

import (
	"errors"
	"net/http"

	"nanobanana_backend/internal/domain/user/model"
	"nanobanana_backend/internal/domain/user/repository"
	"nanobanana_backend/internal/domain/user/service"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/pkg/logger"
	"nanobanana_backend/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler 用户相关 HTTP 接口
type UserHandler struct {
	service service.UserService
}

func NewUserHandler(s service.UserService) *UserHandler {
	return &UserHandler{service: s}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=2,max=32"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6,max=64"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// userView 用户对外视图，不含密码哈希
type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
	IsMember bool   `json:"is_member"`
}

func toUserView(u *model.User) userView {
	return userView{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Role:     u.Role,
		IsMember: u.IsMember,
	}
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误: "+err.Error())
		return
	}

	user, token, err := h.service.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch):
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "两次输入的密码不一致")
		case errors.Is(err, service.ErrUserExists):
			response.Error(c, http.StatusConflict, response.ErrUserExists, "用户名或邮箱已存在")
		default:
			logger.Log.Error("register failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "注册失败")
		}
		return
	}

	response.Success(c, gin.H{"user": toUserView(user), "token": token})
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误: "+err.Error())
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthFailed):
			response.Error(c, http.StatusUnauthorized, response.ErrAuthFailed, "邮箱或密码错误")
		case errors.Is(err, service.ErrAccountDisabled):
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "账号已被禁用")
		default:
			logger.Log.Error("login failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "登录失败")
		}
		return
	}

	response.Success(c, gin.H{"user": toUserView(user), "token": token})
}

// Profile 当前用户信息
// GET /api/v1/users/me
func (h *UserHandler) Profile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	user, err := h.service.GetUser(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrUserNotFound, "用户不存在")
			return
		}
		logger.Log.Error("get profile failed", zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "内部错误")
		return
	}
	response.Success(c, toUserView(user))
}

// Balance 当前用户余额
// GET /api/v1/users/me/balance
func (h *UserHandler) Balance(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	balance, err := h.service.GetBalance(userID)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotFound) {
			// 老用户可能没有余额记录，按零余额返回
			response.Success(c, gin.H{"balance": 0.0, "total_recharged": 0.0, "total_consumed": 0.0})
			return
		}
		logger.Log.Error("get balance failed", zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "内部错误")
		return
	}

	response.Success(c, gin.H{
		"balance":         balance.Balance,
		"total_recharged": balance.TotalRecharged,
		"total_consumed":  balance.TotalConsumed,
	})
}

// MemberInfo 当前用户会员信息
// GET /api/v1/users/me/member
func (h *UserHandler) MemberInfo(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	info, err := h.service.GetMemberInfo(c.Request.Context(), userID)
	if err != nil {
		logger.Log.Error("get member info failed", zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "内部错误")
		return
	}
	response.Success(c, info)
}
