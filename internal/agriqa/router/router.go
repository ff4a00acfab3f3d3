// Package router registers the agriqa HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kart-io/agriqa/api/swagger"
	"github.com/kart-io/agriqa/internal/agriqa/handler"
)

// Handlers are the route targets.
type Handlers struct {
	API    *handler.Handler
	Health *handler.HealthHandler
	// Admin 可选，为 nil 时不注册运维路由。
	Admin *handler.AdminHandler
}

// Register registers the agriqa routes under basePath. Health and metrics
// are also served at the root for probes.
func Register(engine *gin.Engine, basePath string, h Handlers) {
	logger.Info("Registering agriqa routes...")
	handler.RegisterValidation()

	engine.GET("/health", h.Health.Health)

	v1 := engine.Group(basePath)
	{
		v1.POST("/chat", h.API.Chat)
		v1.POST("/entities", h.API.Entities)
		v1.GET("/conversations/:id", h.API.Conversation)

		datasets := v1.Group("/datasets")
		{
			datasets.GET("", h.API.ListDatasets)
			datasets.POST("/query", h.API.QueryDataset)
			datasets.GET("/:key", h.API.GetDataset)
			datasets.POST("/:key/refresh", h.API.RefreshDataset)
		}

		v1.GET("/health", h.Health.Health)
		v1.GET("/metrics", h.Health.Metrics)

		if h.Admin != nil {
			admin := v1.Group("/admin")
			{
				admin.POST("/index/rebuild", h.Admin.RebuildIndex)
				admin.DELETE("/cache", h.Admin.ClearCache)
			}
		}
	}

	logger.Infow("HTTP routes registered", "base_path", basePath)
}

// RegisterSwagger 注册 Swagger UI 路由，访问地址: /swagger/index.html
func RegisterSwagger(engine *gin.Engine, basePath string) {
	swagger.SwaggerInfo.BasePath = basePath
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logger.Info("Swagger UI available at /swagger/index.html")
}
