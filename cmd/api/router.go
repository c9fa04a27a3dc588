package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viewmaxx/backend/internal/middleware"
	"github.com/viewmaxx/backend/pkg/models"
)

func (api *API) setupRouter() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestLogger(api.logger))
	router.Use(gin.Recovery())

	limiter := middleware.NewRateLimiter(api.cfg.RateLimit.RPS, api.cfg.RateLimit.Burst)
	router.Use(middleware.RateLimit(limiter))

	// Operational endpoints
	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Realtime gateway
	router.GET("/ws", api.gateway.HandleConnection)
	router.GET("/ws/guest", api.gateway.HandleGuestConnection)

	requireAuth := middleware.RequireAuth(api.tokens, api.repo)
	optionalAuth := middleware.OptionalAuth(api.tokens, api.repo)

	v1 := router.Group("/api")
	{
		// Credential endpoints carry an extra Redis-backed throttle so the
		// cap on guessing attempts holds across instances
		throttle := middleware.ThrottleAuth(api.cache, 10, time.Minute)

		auth := v1.Group("/auth")
		{
			auth.POST("/register", throttle, api.register)
			auth.POST("/login", throttle, api.login)
			auth.POST("/refresh", throttle, api.refresh)
			auth.POST("/logout", requireAuth, api.logout)
			auth.GET("/me", requireAuth, api.currentUser)
		}

		users := v1.Group("/users")
		{
			users.GET("/:id", api.getUserProfile)
			users.PUT("/:id", requireAuth, api.updateProfile)
			users.GET("/:id/subscribers", api.listSubscribers)
			users.GET("/:id/subscriptions", api.listSubscriptions)
			users.POST("/:id/subscribe", requireAuth, api.subscribe)
			users.DELETE("/:id/subscribe", requireAuth, api.unsubscribe)
		}

		videos := v1.Group("/videos")
		{
			videos.GET("", api.listVideos)
			videos.POST("/upload", requireAuth, api.uploadVideo)
			videos.GET("/:id", optionalAuth, api.getVideo)
			videos.GET("/:id/download", requireAuth, api.downloadVideo)
			videos.DELETE("/:id", requireAuth, api.deleteVideo)
			videos.GET("/:id/comments", api.listComments)
			videos.POST("/:id/comments", requireAuth, api.createComment)
		}

		admin := v1.Group("/admin")
		admin.Use(requireAuth, middleware.RequireRole(models.UserRoleAdmin))
		{
			admin.POST("/users/:id/ban", api.banUser)
			admin.DELETE("/users/:id/ban", api.unbanUser)
			admin.POST("/users/:id/suspend", api.suspendUser)
			admin.DELETE("/users/:id/suspend", api.reinstateUser)
		}
	}

	return router
}
