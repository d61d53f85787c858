package common

import (
	"net/http"
	"time"

	"nanobanana_backend/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CommonModule 通用功能模块（健康检查、指标）
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	setupRoutes(ctx)
	return nil
}

func setupRoutes(ctx *registry.ModuleContext) {
	ctx.Router.GET("/health", func(c *gin.Context) {
		status := "ok"
		httpStatus := http.StatusOK

		sqlDB, err := ctx.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	ctx.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
