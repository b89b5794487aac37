package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ezycv/internal/api/middleware"
	"ezycv/internal/auth"
	"ezycv/internal/config"
	"ezycv/internal/database"
)

// RouterDeps 聚合 RegisterRoutes 需要的全部依赖。
type RouterDeps struct {
	DB          *gorm.DB
	AuthService *auth.AuthService
	Firebase    middleware.FirebaseTokenVerifier
	Redis       redis.UniversalClient
	TaskClient  taskEnqueuer
	Storage     objectStore
	Logger      *slog.Logger
	Config      *config.Config
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, deps RouterDeps) {
	cfg := deps.Config

	authHandler := NewAuthHandler(
		deps.DB, deps.AuthService, deps.Firebase, deps.Redis, deps.TaskClient, deps.Logger,
		cfg.Auth.LoginRateLimitPerHour, cfg.Auth.LoginLockThreshold, cfg.Auth.LoginLockTTL,
		cfg.API.FrontendBaseURL,
	)
	cvHandler := NewCVHandler(deps.DB, deps.Redis, deps.TaskClient, deps.Storage, cfg.API.MaxCVsPerUser)
	wallpaperHandler := NewMediaHandler(
		deps.DB, deps.Storage, deps.Logger, database.MediaKindWallpaper,
		cfg.Upload.ClamdAddr, cfg.Upload.MaxFileBytes, cfg.Upload.MaxFiles,
	)
	photoHandler := NewMediaHandler(
		deps.DB, deps.Storage, deps.Logger, database.MediaKindPhoto,
		cfg.Upload.ClamdAddr, cfg.Upload.MaxFileBytes, cfg.Upload.MaxFiles,
	)
	contactHandler := NewContactHandler(deps.DB, deps.TaskClient, deps.Logger)
	wsHandler := NewWsHandler(deps.Redis, deps.AuthService, deps.Logger, cfg.API.AllowedOrigins)

	authRequired := middleware.AuthRequired(deps.AuthService, deps.Firebase, deps.DB)
	authOptional := middleware.AuthOptional(deps.AuthService, deps.Firebase, deps.DB)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/firebase-login", authHandler.FirebaseLogin)
			authGroup.POST("/forgot-password", authHandler.ForgotPassword)
			authGroup.POST("/reset-password", authHandler.ResetPassword)
			authGroup.GET("/me", authRequired, authHandler.Me)
			authGroup.PUT("/profile", authRequired, authHandler.UpdateProfile)
		}

		cvGroup := v1.Group("/cv")
		{
			cvGroup.GET("/templates", cvHandler.ListTemplates)
			cvGroup.GET("/stats/live", cvHandler.LiveStats)
			cvGroup.POST("/backup", cvHandler.BackupCV)
			cvGroup.GET("/backup/:sessionId", cvHandler.RestoreBackup)

			cvGroup.POST("", authOptional, cvHandler.CreateCV)
			cvGroup.GET("", authOptional, cvHandler.ListCVs)
			cvGroup.GET("/:id", authOptional, cvHandler.GetCV)
			cvGroup.PUT("/:id", authOptional, cvHandler.UpdateCV)
			cvGroup.DELETE("/:id", authOptional, cvHandler.DeleteCV)
			cvGroup.POST("/:id/download", authOptional, cvHandler.DownloadCV)
			cvGroup.GET("/:id/download-link", authOptional, cvHandler.GetDownloadLink)
		}

		registerMediaRoutes(v1.Group("/wallpapers"), wallpaperHandler, authRequired)
		registerMediaRoutes(v1.Group("/photos"), photoHandler, authRequired)

		v1.POST("/contact", contactHandler.SubmitContact)
		v1.POST("/newsletter/subscribe", contactHandler.Subscribe)
	}
}

// registerMediaRoutes 把同一套媒体路由挂到壁纸与图库两个前缀下。
func registerMediaRoutes(group *gin.RouterGroup, handler *MediaHandler, authRequired gin.HandlerFunc) {
	group.GET("", handler.List)
	group.GET("/categories", handler.Categories)
	group.GET("/stats", handler.Stats)
	group.GET("/:id", handler.Get)
	group.GET("/:id/related", handler.Related)
	group.POST("/:id/download", handler.Download)
	group.GET("/:id/proxy-download", handler.ProxyDownload)
	group.POST("/:id/like", handler.Like)

	group.POST("/upload", authRequired, handler.Upload)
	group.POST("", authRequired, handler.Create)
	group.DELETE("/:id", authRequired, handler.Delete)
}
