package catalog

import (
	"nanobanana_backend/internal/domain/catalog/handler"
	"nanobanana_backend/internal/domain/catalog/repository"
	"nanobanana_backend/internal/domain/catalog/service"
	entitlementRepo "nanobanana_backend/internal/domain/entitlement/repository"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/internal/pkg/registry"
	"nanobanana_backend/pkg/cache"

	"github.com/gin-gonic/gin"
)

// CatalogModule 套餐目录模块
type CatalogModule struct{}

func init() {
	registry.Register(&CatalogModule{})
}

func (m *CatalogModule) Name() string {
	return "catalog"
}

func (m *CatalogModule) Priority() int {
	return 10
}

func (m *CatalogModule) Init(ctx *registry.ModuleContext) error {
	pkgRepo := repository.NewPackageRepository(ctx.DB)
	userPkgRepo := entitlementRepo.NewUserPackageRepository(ctx.DB)
	cacheService := cache.NewRedisCache(ctx.Redis, "nanobanana:")
	pkgService := service.NewPackageService(ctx.DB, pkgRepo, userPkgRepo, cacheService)
	pkgHandler := handler.NewPackageHandler(pkgService)

	setupRoutes(ctx.Router, pkgHandler)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.PackageHandler) {
	api := r.Group("/api/v1")

	// 在售套餐对所有人可见
	api.GET("/packages", h.ListActive)

	// 管理端套餐维护
	adminGroup := api.Group("/admin/packages")
	adminGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		adminGroup.POST("", h.Create)
		adminGroup.GET("/:id", h.Get)
		adminGroup.PUT("/:id", h.Update)
		adminGroup.DELETE("/:id", h.Delete)
	}
}
