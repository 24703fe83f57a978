package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/models"
)

func NotificationRoutes(r *gin.RouterGroup, d Deps) {
	ctrl := &controllers.NotificationController{Notifications: d.Services.Notifications}

	notifications := r.Group("/notifications")
	notifications.Use(d.Auth.RequireAuth())
	{
		notifications.GET("", ctrl.List)
		notifications.GET("/stats", ctrl.Stats)
		notifications.GET("/unread-count", ctrl.UnreadCount)
		notifications.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleDriver), ctrl.Send)
		notifications.PUT("/read-all", ctrl.MarkAllRead)
		notifications.PUT("/:id/read", ctrl.MarkRead)
		notifications.DELETE("/:id", ctrl.Delete)
	}
}
