package routes

import (
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/models"
)

func TrackingRoutes(r *gin.RouterGroup, d Deps) {
	ctrl := &controllers.TrackingController{Trips: d.Services.Trips, Simulator: d.Services.Simulator}
	driverOnly := middleware.RequireRoles(models.RoleDriver)

	tracking := r.Group("/tracking")
	tracking.Use(d.Auth.RequireAuth())
	{
		tracking.POST("/start-trip", driverOnly, ctrl.StartTrip)
		tracking.POST("/stop-trip", driverOnly, ctrl.StopTrip)
		tracking.PUT("/update-location", driverOnly, ctrl.UpdateLocation)
		tracking.GET("/my-trip", driverOnly, ctrl.MyTrip)

		tracking.GET("/bus/:busId", ctrl.BusLocation)
		tracking.GET("/active-buses", ctrl.ActiveBuses)
		tracking.GET("/simulate", ctrl.Simulate)
	}
}
