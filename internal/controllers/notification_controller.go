package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/services"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

type notificationListQuery struct {
	IsRead   *bool  `form:"isRead"`
	Type     string `form:"type"`
	Priority string `form:"priority"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1"`
}

// Field presence is checked by the service so a send error can list every
// missing field at once.
type sendInput struct {
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Type          string                 `json:"type"`
	Priority      string                 `json:"priority"`
	TargetType    string                 `json:"targetType"`
	TargetRole    string                 `json:"targetRole"`
	ReceiverID    *uint                  `json:"receiverId"`
	RelatedEntity *models.RelatedEntity  `json:"relatedEntity"`
	Metadata      map[string]interface{} `json:"metadata"`
}

func (n *NotificationController) List(c *gin.Context) {
	var q notificationListQuery
	if !bindQuery(c, &q) {
		return
	}
	list, err := n.Notifications.List(c.Request.Context(), caller(c), services.NotificationQuery{
		IsRead:      q.IsRead,
		Type:        models.NotificationType(q.Type),
		Priority:    models.Priority(q.Priority),
		PageRequest: services.PageRequest{Page: q.Page, Limit: q.Limit},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        list.Items,
		"pagination":  list.Pagination,
		"unreadCount": list.UnreadCount,
	})
}

func (n *NotificationController) Send(c *gin.Context) {
	var input sendInput
	if !bindJSON(c, &input) {
		return
	}
	created, err := n.Notifications.Send(c.Request.Context(), caller(c), services.SendInput{
		Title:         input.Title,
		Message:       input.Message,
		Type:          models.NotificationType(input.Type),
		Priority:      models.Priority(input.Priority),
		TargetType:    input.TargetType,
		TargetRole:    models.Role(input.TargetRole),
		ReceiverID:    input.ReceiverID,
		RelatedEntity: input.RelatedEntity,
		Metadata:      input.Metadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Notification sent successfully", created)
}

func (n *NotificationController) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	updated, err := n.Notifications.MarkRead(c.Request.Context(), caller(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Notification marked as read", updated)
}

func (n *NotificationController) MarkAllRead(c *gin.Context) {
	count, err := n.Notifications.MarkAllRead(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "All notifications marked as read", gin.H{"modifiedCount": count})
}

func (n *NotificationController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := n.Notifications.Delete(c.Request.Context(), caller(c), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Notification deleted successfully", nil)
}

func (n *NotificationController) Stats(c *gin.Context) {
	stats, err := n.Notifications.Stats(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", stats)
}

func (n *NotificationController) UnreadCount(c *gin.Context) {
	count, err := n.Notifications.UnreadCount(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"unreadCount": count})
}
