package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/config"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

// Addressing modes accepted by Send.
const (
	TargetIndividual = "individual"
	TargetRole       = "role"
	TargetAll        = "all"
)

type NotificationService struct {
	store   store.Store
	cfg     config.NotificationConfig
	now     Clock
	metrics *metrics.Collector
}

type SendInput struct {
	Title      string
	Message    string
	Type       models.NotificationType
	Priority   models.Priority
	TargetType string
	TargetRole models.Role
	ReceiverID *uint

	RelatedEntity *models.RelatedEntity
	Metadata      map[string]interface{}
}

// Send creates a notification on behalf of an admin or driver.
func (s *NotificationService) Send(ctx context.Context, sender Identity, in SendInput) (*models.Notification, error) {
	missing := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		missing["title"] = "title is required"
	}
	if strings.TrimSpace(in.Message) == "" {
		missing["message"] = "message is required"
	}
	if in.TargetType == "" {
		missing["targetType"] = "targetType is required"
	}
	if len(missing) > 0 {
		return nil, apperr.FieldValidation("Missing required fields", missing)
	}
	if in.Type != "" && !in.Type.IsValid() {
		return nil, apperr.FieldValidation("Invalid notification type", map[string]string{"type": string(in.Type)})
	}
	if in.Priority != "" && !in.Priority.IsValid() {
		return nil, apperr.FieldValidation("Invalid priority", map[string]string{"priority": string(in.Priority)})
	}

	senderID := sender.UserID
	n := &models.Notification{
		Title:         strings.TrimSpace(in.Title),
		Message:       strings.TrimSpace(in.Message),
		Type:          in.Type,
		Priority:      in.Priority,
		SenderRole:    models.SenderRole(sender.Role),
		SenderID:      &senderID,
		RelatedEntity: in.RelatedEntity,
		Metadata:      in.Metadata,
	}

	switch in.TargetType {
	case TargetIndividual:
		if in.ReceiverID == nil {
			return nil, apperr.FieldValidation("receiverId is required for individual notifications",
				map[string]string{"receiverId": "required when targetType is individual"})
		}
		receiver, err := s.store.GetUser(ctx, *in.ReceiverID)
		if err != nil {
			return nil, notFoundOr(err, "Receiver not found")
		}
		n.ReceiverID = &receiver.ID
		n.ReceiverRole = models.ReceiverRole(receiver.Role)
	case TargetRole:
		if !in.TargetRole.IsValid() {
			return nil, apperr.FieldValidation("targetRole must be one of student, driver, admin",
				map[string]string{"targetRole": "required when targetType is role"})
		}
		n.ReceiverRole = models.ReceiverRole(in.TargetRole)
	case TargetAll:
		n.ReceiverRole = models.ReceiverAll
	default:
		return nil, apperr.FieldValidation("targetType must be one of individual, role, all",
			map[string]string{"targetType": in.TargetType})
	}

	if err := s.create(ctx, n, in.TargetType); err != nil {
		return nil, err
	}
	return n, nil
}

// create fills defaults and stores n. target only labels the metric.
func (s *NotificationService) create(ctx context.Context, n *models.Notification, target string) error {
	if n.Type == "" {
		n.Type = models.NotifyInfo
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	if n.SenderRole != models.SenderSystem && n.SenderID == nil {
		return errors.Errorf("notification from %s has no sender id", n.SenderRole)
	}
	now := s.now()
	n.CreatedAt = now
	n.ExpiresAt = now.Add(s.cfg.TTL)

	if err := s.store.CreateNotification(ctx, n); err != nil {
		return errors.Wrap(err, "create notification")
	}
	s.metrics.NotificationCreated(target)
	return nil
}

// visibility returns the listing predicate for who. ok is false for accounts
// that see nothing at all.
func (s *NotificationService) visibility(who Identity) (v store.Visibility, ok bool) {
	if who.Status == models.StatusPending || who.Status == models.StatusSuspended {
		return store.Visibility{}, false
	}
	now := s.now()
	cutoff := now.Add(-s.cfg.Window)
	if who.ActivatedAt != nil {
		cutoff = *who.ActivatedAt
	}
	return store.Visibility{UserID: who.UserID, Role: who.Role, Cutoff: cutoff, Now: now}, true
}

// addressedTo is the access rule for MarkRead. It only matches the address and
// does not apply the activation cutoff.
func addressedTo(who Identity, n *models.Notification) bool {
	if n.ReceiverID != nil {
		return *n.ReceiverID == who.UserID
	}
	return n.ReceiverRole == models.ReceiverRole(who.Role) || n.ReceiverRole == models.ReceiverAll
}

type NotificationQuery struct {
	IsRead   *bool
	Type     models.NotificationType
	Priority models.Priority
	PageRequest
}

type NotificationList struct {
	Items       []models.Notification
	Pagination  Pagination
	UnreadCount int64
}

func (s *NotificationService) List(ctx context.Context, who Identity, q NotificationQuery) (*NotificationList, error) {
	if q.Type != "" && !q.Type.IsValid() {
		return nil, apperr.Validation("Invalid notification type: %s", q.Type)
	}
	if q.Priority != "" && !q.Priority.IsValid() {
		return nil, apperr.Validation("Invalid priority: %s", q.Priority)
	}
	p := q.normalize(defaultNotificationLimit)

	v, ok := s.visibility(who)
	if !ok {
		return &NotificationList{Items: []models.Notification{}, Pagination: newPagination(p, 0)}, nil
	}

	items, total, err := s.store.ListVisible(ctx, v, store.NotificationFilter{
		IsRead:   q.IsRead,
		Type:     q.Type,
		Priority: q.Priority,
		Page:     p,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	unread, err := s.store.CountVisibleUnread(ctx, v)
	if err != nil {
		return nil, errors.Wrap(err, "count unread notifications")
	}
	return &NotificationList{Items: items, Pagination: newPagination(p, total), UnreadCount: unread}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, who Identity) (int64, error) {
	v, ok := s.visibility(who)
	if !ok {
		return 0, nil
	}
	n, err := s.store.CountVisibleUnread(ctx, v)
	return n, errors.Wrap(err, "count unread notifications")
}

// lookup loads a live notification. Expired ones are reported as missing.
func (s *NotificationService) lookup(ctx context.Context, id uint) (*models.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Notification not found")
	}
	if !n.ExpiresAt.After(s.now()) {
		return nil, apperr.NotFound("Notification not found")
	}
	return n, nil
}

// MarkRead marks one notification read for who.
//
// Access only checks the address (individual receiver, role or "all"), so a
// broadcast older than the caller's activation can be marked read even though
// listing would not show it.
func (s *NotificationService) MarkRead(ctx context.Context, who Identity, id uint) (*models.Notification, error) {
	n, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !addressedTo(who, n) {
		return nil, apperr.Forbidden("Access denied to this notification")
	}
	updated, err := s.store.MarkRead(ctx, id, s.now())
	if err != nil {
		return nil, notFoundOr(err, "Notification not found")
	}
	return updated, nil
}

// MarkAllRead marks every unread notification visible to who and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, who Identity) (int64, error) {
	v, ok := s.visibility(who)
	if !ok {
		return 0, nil
	}
	n, err := s.store.MarkAllVisibleRead(ctx, v, s.now())
	return n, errors.Wrap(err, "mark all notifications read")
}

// canDelete reports whether who may remove n. A broadcast is one shared row,
// so non-admins may only delete broadcasts they can currently see.
func (s *NotificationService) canDelete(who Identity, n *models.Notification) bool {
	if who.Role == models.RoleAdmin {
		return true
	}
	if n.ReceiverID != nil {
		return *n.ReceiverID == who.UserID
	}
	v, ok := s.visibility(who)
	return ok && v.Matches(*n)
}

// Delete removes a notification. Admins may delete anything.
func (s *NotificationService) Delete(ctx context.Context, who Identity, id uint) error {
	n, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if !s.canDelete(who, n) {
		return apperr.Forbidden("Access denied to this notification")
	}
	if err := s.store.DeleteNotification(ctx, id); err != nil {
		return notFoundOr(err, "Notification not found")
	}
	return nil
}

type Bucket struct {
	Total  int64 `json:"total"`
	Unread int64 `json:"unread"`
}

type NotificationStats struct {
	Total      int64                              `json:"total"`
	Unread     int64                              `json:"unread"`
	ByType     map[models.NotificationType]Bucket `json:"byType"`
	ByPriority map[models.Priority]Bucket         `json:"byPriority"`
}

func emptyStats() *NotificationStats {
	st := &NotificationStats{
		ByType:     make(map[models.NotificationType]Bucket, len(models.NotificationTypes)),
		ByPriority: make(map[models.Priority]Bucket, len(models.Priorities)),
	}
	for _, t := range models.NotificationTypes {
		st.ByType[t] = Bucket{}
	}
	for _, p := range models.Priorities {
		st.ByPriority[p] = Bucket{}
	}
	return st
}

func (s *NotificationService) Stats(ctx context.Context, who Identity) (*NotificationStats, error) {
	st := emptyStats()
	v, ok := s.visibility(who)
	if !ok {
		return st, nil
	}
	rows, err := s.store.VisibleStats(ctx, v)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate notifications")
	}
	for _, r := range rows {
		unread := int64(0)
		if !r.IsRead {
			unread = r.Count
		}
		st.Total += r.Count
		st.Unread += unread

		b := st.ByType[r.Type]
		b.Total += r.Count
		b.Unread += unread
		st.ByType[r.Type] = b

		b = st.ByPriority[r.Priority]
		b.Total += r.Count
		b.Unread += unread
		st.ByPriority[r.Priority] = b
	}
	return st, nil
}

// Purge deletes expired notifications.
func (s *NotificationService) Purge(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, errors.Wrap(err, "purge expired notifications")
	}
	if n > 0 {
		logrus.WithField("deleted", n).Info("Purged expired notifications")
	}
	return n, nil
}
