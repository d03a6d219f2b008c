package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"welcome-agent/internal/auth/delivery"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	if h.config.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := api.Group("/auth")
		{
			auth.POST("/register", h.auth.Register)
			auth.POST("/login", h.auth.Login)
			auth.POST("/google", h.auth.GoogleSignIn)
			auth.POST("/logout", h.auth.Logout)
			auth.GET("/me", delivery.AuthMiddleware(h.authUsecase), h.auth.Me)
		}

		// OAuth popup callback; the signed state identifies the user.
		api.GET("/google/callback", h.connections.Callback)

		protected := api.Group("")
		protected.Use(delivery.AuthMiddleware(h.authUsecase))

		fcm := protected.Group("/fcm")
		{
			fcm.POST("/register", h.auth.RegisterFCMToken)
			fcm.DELETE("/:token", h.auth.UnregisterFCMToken)
		}

		workspaces := protected.Group("/workspaces")
		{
			workspaces.GET("", h.workspaces.List)
			workspaces.POST("", h.workspaces.Create)
			workspaces.GET("/:id", h.workspaces.Get)
			workspaces.PATCH("/:id", h.workspaces.Rename)
			workspaces.DELETE("/:id", h.workspaces.Delete)
			workspaces.POST("/:id/members", h.workspaces.Invite)
			workspaces.DELETE("/:id/members/:userId", h.workspaces.RemoveMember)
			workspaces.GET("/:id/stats", h.workspaces.Stats)
			workspaces.GET("/:id/logs", h.activity.List)
			workspaces.GET("/:id/agents", h.agents.List)
			workspaces.POST("/:id/agents", h.agents.Create)
			workspaces.GET("/:id/connections", h.connections.List)
			workspaces.POST("/:id/connections/check", h.connections.Check)
			workspaces.GET("/:id/emails", h.emails.List)
		}

		agents := protected.Group("/agents")
		{
			agents.GET("/:id", h.agents.Get)
			agents.PATCH("/:id", h.agents.Update)
			agents.DELETE("/:id", h.agents.Delete)
			agents.POST("/:id/test", h.generation.TestAgent)
			agents.POST("/:id/website-summary", h.generation.SummarizeWebsite)
		}

		protected.DELETE("/connections/:id", h.connections.Delete)
		protected.GET("/google/auth-url", h.connections.AuthURL)

		emails := protected.Group("/emails")
		{
			emails.GET("/:id", h.emails.Get)
			emails.PATCH("/:id", h.emails.Update)
			emails.POST("/:id/approve", h.emails.Approve)
			emails.POST("/:id/deny", h.emails.Deny)
		}

		protected.POST("/generate-email", h.generation.Generate)

		settings := protected.Group("/settings")
		{
			settings.GET("/models", h.settings.GetModels)
			settings.PUT("/models", requireAdmin(h.config.AdminEmails), h.settings.UpdateModels)
		}
	}
}
