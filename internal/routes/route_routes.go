package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/models"
)

func RouteRoutes(r *gin.RouterGroup, d Deps) {
	ctrl := &controllers.RouteController{Routes: d.Services.Routes}
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	routes := r.Group("/routes")
	routes.Use(d.Auth.RequireAuth())
	{
		routes.GET("", ctrl.List)
		routes.GET("/:id", ctrl.Get)
		routes.POST("", adminOnly, ctrl.Create)
		routes.PUT("/:id", adminOnly, ctrl.Update)
		routes.DELETE("/:id", adminOnly, ctrl.Delete)
	}
}
