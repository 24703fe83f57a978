package store

import (
	"time"

	"shuttle_tracker/internal/models"
)

// Visibility describes which notifications a user may see when listing.
//
// A notification is visible when it is addressed to UserID, or when it has no
// receiver, targets Role or "all", and was created at or after Cutoff.
// Anything that expired at or before Now is never visible.
type Visibility struct {
	UserID uint
	Role   models.Role
	Cutoff time.Time
	Now    time.Time
}

func (v Visibility) Matches(n models.Notification) bool {
	if !n.ExpiresAt.After(v.Now) {
		return false
	}
	if n.ReceiverID != nil {
		return *n.ReceiverID == v.UserID
	}
	if n.CreatedAt.Before(v.Cutoff) {
		return false
	}
	return n.ReceiverRole == models.ReceiverRole(v.Role) || n.ReceiverRole == models.ReceiverAll
}

func (f NotificationFilter) Matches(n models.Notification) bool {
	if f.IsRead != nil && n.IsRead != *f.IsRead {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Priority != "" && n.Priority != f.Priority {
		return false
	}
	return true
}
