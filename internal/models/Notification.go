package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotifyInfo      NotificationType = "info"
	NotifyWarning   NotificationType = "warning"
	NotifyError     NotificationType = "error"
	NotifySuccess   NotificationType = "success"
	NotifyEmergency NotificationType = "emergency"
)

var NotificationTypes = []NotificationType{NotifyInfo, NotifyWarning, NotifyError, NotifySuccess, NotifyEmergency}

func (t NotificationType) IsValid() bool {
	for _, v := range NotificationTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) IsValid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

type SenderRole string

const (
	SenderAdmin  SenderRole = "admin"
	SenderDriver SenderRole = "driver"
	SenderSystem SenderRole = "system"
)

// ReceiverRole is either one of the user roles or "all".
type ReceiverRole string

const ReceiverAll ReceiverRole = "all"

type RelatedEntity struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

type Notification struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Title    string           `gorm:"not null" json:"title"`
	Message  string           `gorm:"not null" json:"message"`
	Type     NotificationType `gorm:"index" json:"type"`
	Priority Priority         `gorm:"index" json:"priority"`

	SenderRole SenderRole `json:"senderRole"`
	SenderID   *uint      `json:"senderId"`

	// A nil ReceiverID addresses every user of ReceiverRole (or everyone when "all").
	ReceiverRole ReceiverRole `gorm:"index:idx_notifications_role_created,priority:1;not null" json:"receiverRole"`
	ReceiverID   *uint        `gorm:"index:idx_notifications_receiver,priority:1" json:"receiverId"`

	IsRead bool       `gorm:"index:idx_notifications_receiver,priority:2" json:"isRead"`
	ReadAt *time.Time `json:"readAt"`

	RelatedEntity *RelatedEntity    `gorm:"embedded;embeddedPrefix:related_" json:"relatedEntity,omitempty"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`

	ExpiresAt time.Time `gorm:"index" json:"expiresAt"`
	CreatedAt time.Time `gorm:"index:idx_notifications_role_created,priority:2;index:idx_notifications_receiver,priority:3" json:"createdAt"`
}

// Individual reports whether the notification is addressed to a single user.
func (n Notification) Individual() bool { return n.ReceiverID != nil }
