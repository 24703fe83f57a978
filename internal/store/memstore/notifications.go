package memstore

import (
	"context"
	"sort"
	"time"

	"gorm.io/datatypes"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

func cloneNotification(n models.Notification) models.Notification {
	n.SenderID = copyUint(n.SenderID)
	n.ReceiverID = copyUint(n.ReceiverID)
	n.ReadAt = copyTime(n.ReadAt)
	if n.RelatedEntity != nil {
		re := *n.RelatedEntity
		n.RelatedEntity = &re
	}
	if n.Metadata != nil {
		md := make(datatypes.JSONMap, len(n.Metadata))
		for k, v := range n.Metadata {
			md[k] = v
		}
		n.Metadata = md
	}
	return n
}

func (s *Store) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.notifications[n.ID] = cloneNotification(*n)
	return nil
}

func (s *Store) GetNotification(_ context.Context, id uint) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	n = cloneNotification(n)
	return &n, nil
}

// visible returns matching notifications newest first. Callers hold mu.
func (s *Store) visible(v store.Visibility, f store.NotificationFilter) []models.Notification {
	var out []models.Notification
	for _, n := range s.notifications {
		if v.Matches(n) && f.Matches(n) {
			out = append(out, cloneNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) ListVisible(_ context.Context, v store.Visibility, f store.NotificationFilter) ([]models.Notification, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.visible(v, f)
	return page(all, f.Page), int64(len(all)), nil
}

func (s *Store) CountVisibleUnread(_ context.Context, v store.Visibility) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unread := false
	return int64(len(s.visible(v, store.NotificationFilter{IsRead: &unread}))), nil
}

func (s *Store) MarkRead(_ context.Context, id uint, at time.Time) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	n.IsRead = true
	n.ReadAt = &at
	s.notifications[id] = n
	n = cloneNotification(n)
	return &n, nil
}

func (s *Store) MarkAllVisibleRead(_ context.Context, v store.Visibility, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for id, n := range s.notifications {
		if n.IsRead || !v.Matches(n) {
			continue
		}
		n.IsRead = true
		readAt := at
		n.ReadAt = &readAt
		s.notifications[id] = n
		modified++
	}
	return modified, nil
}

func (s *Store) VisibleStats(_ context.Context, v store.Visibility) ([]store.StatsRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type key struct {
		t    models.NotificationType
		p    models.Priority
		read bool
	}
	counts := make(map[key]int64)
	for _, n := range s.notifications {
		if v.Matches(n) {
			counts[key{n.Type, n.Priority, n.IsRead}]++
		}
	}
	rows := make([]store.StatsRow, 0, len(counts))
	for k, c := range counts {
		rows = append(rows, store.StatsRow{Type: k.t, Priority: k.p, IsRead: k.read, Count: c})
	}
	return rows, nil
}

func (s *Store) DeleteNotification(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

func (s *Store) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, notif := range s.notifications {
		if !notif.ExpiresAt.After(now) {
			delete(s.notifications, id)
			n++
		}
	}
	return n, nil
}
