package generation

import (
	entitlementRepo "nanobanana_backend/internal/domain/entitlement/repository"
	entitlementService "nanobanana_backend/internal/domain/entitlement/service"
	"nanobanana_backend/internal/domain/generation/handler"
	"nanobanana_backend/internal/domain/generation/repository"
	"nanobanana_backend/internal/domain/generation/service"
	"nanobanana_backend/internal/pkg/config"
	"nanobanana_backend/internal/pkg/imageapi"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/internal/pkg/registry"
	"nanobanana_backend/pkg/cache"

	"github.com/gin-gonic/gin"
)

// GenerationModule 图像生成模块
type GenerationModule struct{}

func init() {
	registry.Register(&GenerationModule{})
}

func (m *GenerationModule) Name() string {
	return "generation"
}

func (m *GenerationModule) Priority() int {
	return 30
}

func (m *GenerationModule) Init(ctx *registry.ModuleContext) error {
	cacheService := cache.NewRedisCache(ctx.Redis, "nanobanana:")
	entitlement := entitlementService.NewService(ctx.DB, entitlementRepo.NewUserPackageRepository(ctx.DB), cacheService)
	client := imageapi.NewClient(config.GlobalConfig.Generate)
	svc := service.NewGenerationService(repository.NewHistoryRepository(ctx.DB), entitlement, client)
	h := handler.NewGenerationHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.GenerationHandler) {
	genGroup := r.Group("/api/v1/generate")
	genGroup.Use(middleware.AuthMiddleware())
	{
		genGroup.POST("", h.Generate)
		genGroup.GET("/history", h.History)
	}
}
