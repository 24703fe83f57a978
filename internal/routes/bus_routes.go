package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/models"
)

func BusRoutes(r *gin.RouterGroup, d Deps) {
	ctrl := &controllers.BusController{Fleet: d.Services.Fleet}
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	buses := r.Group("/buses")
	buses.Use(d.Auth.RequireAuth())
	{
		buses.GET("", ctrl.List)
		buses.GET("/:id", ctrl.Get)
		buses.POST("", adminOnly, ctrl.Create)
		buses.PUT("/:id", adminOnly, ctrl.Update)
		buses.DELETE("/:id", adminOnly, ctrl.Delete)
	}
}
