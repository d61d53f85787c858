package payment

import (
	catalogRepo "nanobanana_backend/internal/domain/catalog/repository"
	entitlementRepo "nanobanana_backend/internal/domain/entitlement/repository"
	entitlementService "nanobanana_backend/internal/domain/entitlement/service"
	"nanobanana_backend/internal/domain/payment/handler"
	"nanobanana_backend/internal/domain/payment/repository"
	"nanobanana_backend/internal/domain/payment/service"
	userRepo "nanobanana_backend/internal/domain/user/repository"
	userService "nanobanana_backend/internal/domain/user/service"
	"nanobanana_backend/internal/pkg/config"
	"nanobanana_backend/internal/pkg/epay"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/internal/pkg/registry"
	"nanobanana_backend/pkg/cache"
	"nanobanana_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// PaymentModule 支付模块
type PaymentModule struct{}

func init() {
	registry.Register(&PaymentModule{})
}

func (m *PaymentModule) Name() string {
	return "payment"
}

func (m *PaymentModule) Priority() int {
	// 依赖 user / catalog / entitlement
	return 20
}

func (m *PaymentModule) Init(ctx *registry.ModuleContext) error {
	cacheService := cache.NewRedisCache(ctx.Redis, "nanobanana:")
	entitlement := entitlementService.NewService(ctx.DB, entitlementRepo.NewUserPackageRepository(ctx.DB), cacheService)
	users := userService.NewUserService(
		userRepo.NewUserRepository(ctx.DB),
		userRepo.NewBalanceRepository(ctx.DB),
		entitlement,
	)

	// 网关未启用时跳过客户端创建，余额支付仍可用
	var gateway service.Gateway
	if config.GlobalConfig.Epay.Enabled {
		client, err := epay.NewClient(config.GlobalConfig.Epay)
		if err != nil {
			return err
		}
		gateway = client
	} else {
		logger.Log.Warn("epay gateway disabled, only balance payment is available")
	}

	paymentService := service.NewPaymentService(
		ctx.DB,
		repository.NewRechargeRepository(ctx.DB),
		catalogRepo.NewPackageRepository(ctx.DB),
		users,
		entitlement,
		gateway,
	)
	paymentHandler := handler.NewPaymentHandler(paymentService)

	setupRoutes(ctx.Router, paymentHandler)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.PaymentHandler) {
	api := r.Group("/api/v1")

	// 网关回调，不走认证
	api.POST("/payment/notify", h.Notify)
	api.GET("/payment/notify", h.Notify) // 部分网关以 GET 回调
	api.GET("/payment/return", h.Return)
	api.GET("/payment/methods", h.Methods)

	payGroup := api.Group("/payment")
	payGroup.Use(middleware.AuthMiddleware())
	{
		payGroup.POST("/create", h.CreatePayment)
		payGroup.POST("/balance-pay", h.BalancePay)
		payGroup.GET("/query/:out_trade_no", h.QueryOrder)
	}

	rechargeGroup := api.Group("/recharge")
	rechargeGroup.Use(middleware.AuthMiddleware())
	{
		rechargeGroup.POST("/create", h.CreateRecharge)
	}

	adminGroup := api.Group("/admin/recharge")
	adminGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		adminGroup.PATCH("/:id/status", h.UpdateStatus)
		adminGroup.POST("/:id/refund", h.Refund)
	}
}
