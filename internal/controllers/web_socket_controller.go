package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/models"
)

// WebSocketController upgrades authenticated clients into LocationHub subscribers.
type WebSocketController struct {
	Auth *middleware.Auth
	Hub  *hub.LocationHub

	upgrader websocket.Upgrader
}

// NewWebSocketController accepts any Origin when allowedOrigins is empty.
func NewWebSocketController(auth *middleware.Auth, h *hub.LocationHub, allowedOrigins []string) *WebSocketController {
	return &WebSocketController{
		Auth: auth,
		Hub:  h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// token reads the JWT from the query string, where browsers must put it, or
// from the Authorization header.
func token(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

// Location serves GET /ws/location?token=...&routeId=... . routeId 0 or
// absent subscribes to every route.
func (w *WebSocketController) Location(c *gin.Context) {
	raw := token(c)
	if raw == "" {
		respondError(c, apperr.Unauthenticated("Missing token"))
		return
	}
	who, err := w.Auth.Identify(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	if who.Status == models.StatusSuspended {
		respondError(c, apperr.Forbidden("Account is suspended"))
		return
	}

	routeID := hub.AllRoutes
	if v := c.Query("routeId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(c, apperr.Validation("Invalid routeId"))
			return
		}
		routeID = uint(id)
	}

	ws, err := w.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logrus.WithError(err).WithField("user_id", who.UserID).Warn("WebSocket upgrade failed")
		return
	}
	logrus.WithFields(logrus.Fields{"user_id": who.UserID, "route_id": routeID}).Info("WebSocket subscriber connected")
	w.Hub.Serve(ws, routeID)
}
