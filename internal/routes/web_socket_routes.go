package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
)

// WebSocketRoutes authenticates inside the handler because browsers cannot
// set headers on the upgrade request.
func WebSocketRoutes(r *gin.Engine, d Deps) {
	ctrl := controllers.NewWebSocketController(d.Auth, d.Hub, d.AllowedOrigins)

	ws := r.Group("/ws")
	{
		ws.GET("/location", ctrl.Location)
	}
}
