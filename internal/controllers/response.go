package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/services"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidState:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func respondList(c *gin.Context, data interface{}, page services.Pagination) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "pagination": page})
}

// respondError writes err as a failure envelope. Errors without a kind are
// logged and hidden behind a generic 500.
func respondError(c *gin.Context, err error) {
	if e, ok := apperr.As(err); ok && e.Kind != apperr.KindInternal {
		body := gin.H{"success": false, "message": e.Message}
		if len(e.Fields) > 0 {
			body["errors"] = e.Fields
		}
		c.JSON(statusFor(e.Kind), body)
		return
	}

	fields := logrus.Fields{
		"request_id": middleware.GetRequestID(c),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
	}
	if who, ok := middleware.CurrentIdentity(c); ok {
		fields["user_id"] = who.UserID
	}
	logrus.WithError(err).WithFields(fields).Error("Unhandled request error")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		respondError(c, apperr.Validation("Invalid %s", param))
		return 0, false
	}
	return uint(id), true
}

// caller returns the identity set by RequireAuth. Routes without the
// middleware get a zero identity, which every service treats as nobody.
func caller(c *gin.Context) services.Identity {
	who, _ := middleware.CurrentIdentity(c)
	return who
}
