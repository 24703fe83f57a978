package routes

import (
	"io"
	"net/http"

	ginlogger "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/services"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Services *services.Services
	Auth     *middleware.Auth
	Hub      *hub.LocationHub
	// Metrics is served at /metrics when set.
	Metrics *metrics.Collector

	AccessLog      io.Writer
	AllowedOrigins []string
}

func SetupRouter(d Deps) *gin.Engine {
	controllers.RegisterValidators()

	r := gin.New()
	r.Use(middleware.RequestID())
	if d.AccessLog != nil {
		r.Use(ginlogger.SetLogger(
			ginlogger.WithWriter(d.AccessLog),
			ginlogger.WithUTC(true),
			ginlogger.WithSkipPath([]string{"/health", "/metrics"}),
		))
	}
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(d.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group("/api")
	AuthRoutes(api, d)
	AdminRoutes(api, d)
	BusRoutes(api, d)
	RouteRoutes(api, d)
	TrackingRoutes(api, d)
	NotificationRoutes(api, d)
	WebSocketRoutes(r, d)

	return r
}
