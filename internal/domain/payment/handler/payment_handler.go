package handler

import (
	"errors"
	"net/http"

	catalogRepo "nanobanana_backend/internal/domain/catalog/repository"
	"nanobanana_backend/internal/domain/payment/model"
	"nanobanana_backend/internal/domain/payment/repository"
	"nanobanana_backend/internal/domain/payment/service"
	userRepo "nanobanana_backend/internal/domain/user/repository"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/pkg/logger"
	"nanobanana_backend/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler 支付相关 HTTP 接口
type PaymentHandler struct {
	service service.PaymentService
}

func NewPaymentHandler(s service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: s}
}

// CreateRechargeRequest 创建充值记录请求
type CreateRechargeRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" binding:"required,oneof=wxpay alipay balance manual"`
	PackageID     *string `json:"package_id"`
}

// CreateRecharge 创建待支付充值记录
// POST /api/v1/recharge/create
// 记录创建后可带 recharge_id 调用 /payment/create 走网关支付，
// 或由管理员经 /admin/recharge/:id/status 人工确认
func (h *PaymentHandler) CreateRecharge(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	var req CreateRechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误: "+err.Error())
		return
	}

	record, err := h.service.CreateCharge(c.Request.Context(), userID, service.CreateChargeInput{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		PackageID:     req.PackageID,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, record)
}

// UpdateStatusRequest 管理员调整充值记录状态请求
type UpdateStatusRequest struct {
	Status          string  `json:"status" binding:"required,oneof=completed failed"`
	ExternalTradeNo *string `json:"external_trade_no"`
}

// UpdateStatus 管理员人工确认充值记录
// PATCH /api/v1/admin/recharge/:id/status
// completed 走与网关回调相同的入账路径，重复确认幂等
func (h *PaymentHandler) UpdateStatus(c *gin.Context) {
	chargeID := c.Param("id")
	if chargeID == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "缺少充值记录 ID")
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误: "+err.Error())
		return
	}

	succeed := req.Status == model.StatusCompleted
	if err := h.service.ConfirmCharge(c.Request.Context(), chargeID, succeed, req.ExternalTradeNo); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"status": req.Status})
}

// CreatePaymentRequest 创建支付订单请求
type CreatePaymentRequest struct {
	Type       string  `json:"type" binding:"required,oneof=wxpay alipay"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
	PackageID  *string `json:"package_id"`
	RechargeID *string `json:"recharge_id"`
	ReturnURL  string  `json:"return_url"`
}

// CreatePayment 创建支付订单
// POST /api/v1/payment/create
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误: "+err.Error())
		return
	}

	result, err := h.service.CreatePayment(c.Request.Context(), userID, service.CreatePaymentInput{
		Type:       req.Type,
		Amount:     req.Amount,
		PackageID:  req.PackageID,
		RechargeID: req.RechargeID,
		ReturnURL:  req.ReturnURL,
		ClientIP:   c.ClientIP(),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, result)
}

// Notify 网关异步回调
// POST /api/v1/payment/notify
// 响应体必须是字面量 success / fail，网关以此判断是否重发
func (h *PaymentHandler) Notify(c *gin.Context) {
	params := collectNotifyParams(c)

	if err := h.service.HandleNotify(c.Request.Context(), params); err != nil {
		if errors.Is(err, service.ErrSignatureInvalid) {
			logger.Log.Warn("payment notify rejected",
				zap.String("out_trade_no", params["out_trade_no"]),
				zap.String("client_ip", c.ClientIP()),
			)
			c.String(http.StatusBadRequest, "fail")
			return
		}
		logger.Log.Error("payment notify processing failed",
			zap.String("out_trade_no", params["out_trade_no"]),
			zap.Error(err),
		)
		c.String(http.StatusInternalServerError, "fail")
		return
	}
	c.String(http.StatusOK, "success")
}

// Return 网关同步跳转，用户支付完成后浏览器回到前端
// GET /api/v1/payment/return
func (h *PaymentHandler) Return(c *gin.Context) {
	outTradeNo := c.Query("out_trade_no")
	c.Redirect(http.StatusFound, "/payment/result?out_trade_no="+outTradeNo)
}

// QueryOrder 查询网关订单状态
// GET /api/v1/payment/query/:out_trade_no
func (h *PaymentHandler) QueryOrder(c *gin.Context) {
	outTradeNo := c.Param("out_trade_no")
	if outTradeNo == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "缺少订单号")
		return
	}

	result, err := h.service.QueryOrder(c.Request.Context(), outTradeNo)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, result)
}

// Methods 可用支付方式
// GET /api/v1/payment/methods
func (h *PaymentHandler) Methods(c *gin.Context) {
	response.Success(c, gin.H{"methods": h.service.PaymentMethods()})
}

// BalancePayRequest 余额支付请求
type BalancePayRequest struct {
	Amount    float64 `json:"amount" binding:"required,gt=0"`
	PackageID *string `json:"package_id"`
}

// BalancePay 余额支付
// POST /api/v1/payment/balance-pay
func (h *PaymentHandler) BalancePay(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "未登录")
		return
	}

	var req BalancePayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "参数错误: "+err.Error())
		return
	}

	result, err := h.service.BalancePay(c.Request.Context(), userID, service.BalancePayInput{
		Amount:    req.Amount,
		PackageID: req.PackageID,
	})
	if err != nil {
		var insufficient *service.InsufficientBalanceError
		if errors.As(err, &insufficient) {
			response.ErrorWithData(c, http.StatusBadRequest, response.ErrInsufficientBalance, "余额不足", gin.H{
				"currentBalance": insufficient.CurrentBalance,
				"requiredAmount": insufficient.RequiredAmount,
				"shortfall":      insufficient.Shortfall(),
			})
			return
		}
		h.handleError(c, err)
		return
	}
	response.Success(c, result)
}

// RefundRequest 退款请求
type RefundRequest struct {
	Reason string `json:"reason"`
}

// Refund 管理员退款
// POST /api/v1/admin/recharge/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	chargeID := c.Param("id")
	if chargeID == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "缺少充值记录 ID")
		return
	}

	// reason 可选，body 为空时忽略绑定错误
	var req RefundRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Refund(c.Request.Context(), chargeID, req.Reason); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"refunded": true})
}

func (h *PaymentHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentDisabled):
		response.Error(c, http.StatusServiceUnavailable, response.ErrPaymentDisabled, "支付功能未启用")
	case errors.Is(err, service.ErrUnsupportedMethod):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "不支持的支付方式")
	case errors.Is(err, service.ErrStateConflict):
		response.Error(c, http.StatusConflict, response.ErrStateConflict, "订单状态不允许该操作")
	case errors.Is(err, service.ErrPackageInactive):
		response.Error(c, http.StatusBadRequest, response.ErrPackageInactive, "套餐已下架")
	case errors.Is(err, catalogRepo.ErrPackageNotFound):
		response.Error(c, http.StatusNotFound, response.ErrPackageNotFound, "套餐不存在")
	case errors.Is(err, repository.ErrRecordNotFound):
		response.Error(c, http.StatusNotFound, response.ErrChargeNotFound, "充值记录不存在")
	case errors.Is(err, userRepo.ErrBalanceNotFound):
		response.Error(c, http.StatusNotFound, response.ErrUserNotFound, "余额账户不存在")
	default:
		logger.Log.Error("payment request failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "内部错误")
	}
}

// collectNotifyParams 收集回调参数，query 和 form 均支持
func collectNotifyParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if err := c.Request.ParseForm(); err == nil {
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
	}
	return params
}
