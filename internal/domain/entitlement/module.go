package entitlement

import (
	"nanobanana_backend/internal/domain/entitlement/handler"
	"nanobanana_backend/internal/domain/entitlement/repository"
	"nanobanana_backend/internal/domain/entitlement/service"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/internal/pkg/registry"
	"nanobanana_backend/pkg/cache"

	"github.com/gin-gonic/gin"
)

// EntitlementModule 权益模块
type EntitlementModule struct{}

func init() {
	registry.Register(&EntitlementModule{})
}

func (m *EntitlementModule) Name() string {
	return "entitlement"
}

func (m *EntitlementModule) Priority() int {
	return 15
}

func (m *EntitlementModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewUserPackageRepository(ctx.DB)
	cacheService := cache.NewRedisCache(ctx.Redis, "nanobanana:")
	svc := service.NewService(ctx.DB, repo, cacheService)
	h := handler.NewEntitlementHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.EntitlementHandler) {
	api := r.Group("/api/v1/packages")
	api.Use(middleware.AuthMiddleware())
	{
		api.GET("/available-times", h.AvailableTimes)
		api.GET("/my", h.MyPackages)
	}
}
