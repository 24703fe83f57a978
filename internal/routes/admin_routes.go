package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/models"
)

func AdminRoutes(r *gin.RouterGroup, d Deps) {
	users := &controllers.UserController{Users: d.Services.Users}

	admin := r.Group("/admin")
	admin.Use(d.Auth.RequireAuth(), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", users.List)
		admin.PUT("/users/:id/approve", users.Approve)
		admin.PUT("/users/:id/reject", users.Reject)
		admin.PUT("/users/:id", users.Update)
	}
}
