package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
)

func AuthRoutes(r *gin.RouterGroup, d Deps) {
	ctrl := &controllers.AuthController{Users: d.Services.Users, Tokens: d.Auth.Tokens}

	auth := r.Group("/auth")
	{
		auth.POST("/register", ctrl.Register)
		auth.POST("/login", ctrl.Login)
		auth.GET("/me", d.Auth.RequireAuth(), ctrl.Me)
	}
}
