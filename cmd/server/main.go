package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nanobanana_backend/internal/pkg/config"
	"nanobanana_backend/internal/pkg/middleware"
	"nanobanana_backend/internal/pkg/registry"
	"nanobanana_backend/pkg/database"
	"nanobanana_backend/pkg/logger"

	// 模块通过 init 自注册
	_ "nanobanana_backend/internal/domain/catalog"
	_ "nanobanana_backend/internal/domain/common"
	_ "nanobanana_backend/internal/domain/entitlement"
	_ "nanobanana_backend/internal/domain/generation"
	_ "nanobanana_backend/internal/domain/payment"
	_ "nanobanana_backend/internal/domain/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// 1. 配置与日志
	config.LoadConfig()
	logger.Init(config.GlobalConfig.App.Debug)
	defer logger.Sync()

	// 2. 基础设施
	db := database.InitDatabase()
	redisClient := database.InitRedis()

	// 3. HTTP 引擎与全局中间件
	gin.SetMode(config.GlobalConfig.Server.Mode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.LoggerMiddleware(),
		middleware.MetricsMiddleware(),
		middleware.RateLimitMiddleware(middleware.NewIPRateLimiter(rate.Limit(50), 100)),
	)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	// 4. 按优先级初始化业务模块
	moduleCtx := &registry.ModuleContext{
		DB:     db,
		Redis:  redisClient,
		Router: router,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.Log.Fatal("failed to initialize modules", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    ":" + config.GlobalConfig.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server failed", zap.Error(err))
		}
	}()

	// 5. 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("forced shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = redisClient.Close()

	logger.Log.Info("server exited")
}
