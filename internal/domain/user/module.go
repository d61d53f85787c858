package user

import (
	entitlementRepo "nanobanana_backend/internal/domain/entitlement/repository"
	entitlementService "nanobanana_backend/internal/domain/entitlement/service"
	"nanobanana_backend/internal/domain/user/handler"
	"nanobanana_backend/internal/domain/user/repository"
	"nanobanana_backend/internal/domain/user/service"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/internal/pkg/registry"
	"nanobanana_backend/pkg/cache"

	"github.com/gin-gonic/gin"
)

// UserModule 用户模块
type UserModule struct{}

func init() {
	// 自动注册模块
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	// 用户模块优先级最高，其他模块依赖它
	return 1
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	userRepo := repository.NewUserRepository(ctx.DB)
	balanceRepo := repository.NewBalanceRepository(ctx.DB)
	cacheService := cache.NewRedisCache(ctx.Redis, "nanobanana:")
	entitlement := entitlementService.NewService(ctx.DB, entitlementRepo.NewUserPackageRepository(ctx.DB), cacheService)
	userService := service.NewUserService(userRepo, balanceRepo, entitlement)
	userHandler := handler.NewUserHandler(userService)

	// 2. 路由注册
	setupRoutes(ctx.Router, userHandler)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.UserHandler) {
	api := r.Group("/api/v1")

	// 公开路由
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	// 受保护的路由
	userGroup := api.Group("/users")
	userGroup.Use(middleware.AuthMiddleware())
	{
		userGroup.GET("/me", h.Profile)
		userGroup.GET("/me/balance", h.Balance)
		userGroup.GET("/me/member", h.MemberInfo)
	}
}
