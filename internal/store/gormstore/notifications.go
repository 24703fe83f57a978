package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

// visible is the SQL form of store.Visibility.Matches.
func (s *Store) visible(v store.Visibility) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		roles := []string{string(v.Role), string(models.ReceiverAll)}
		return db.Where("expires_at > ?", v.Now).
			Where(s.db.Where("receiver_id = ?", v.UserID).
				Or("receiver_id IS NULL AND receiver_role IN ? AND created_at >= ?", roles, v.Cutoff))
	}
}

func filtered(f store.NotificationFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.IsRead != nil {
			db = db.Where("is_read = ?", *f.IsRead)
		}
		if f.Type != "" {
			db = db.Where("type = ?", f.Type)
		}
		if f.Priority != "" {
			db = db.Where("priority = ?", f.Priority)
		}
		return db
	}
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return translate(s.db.WithContext(ctx).Create(n).Error)
}

func (s *Store) GetNotification(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

func (s *Store) ListVisible(ctx context.Context, v store.Visibility, f store.NotificationFilter) ([]models.Notification, int64, error) {
	query := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Notification{}).Scopes(s.visible(v), filtered(f))
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Notification
	if err := query().Order("created_at desc, id desc").Scopes(paginate(f.Page)).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) CountVisibleUnread(ctx context.Context, v store.Visibility) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Scopes(s.visible(v)).
		Where("is_read = ?", false).
		Count(&n).Error
	return n, err
}

func (s *Store) MarkRead(ctx context.Context, id uint, at time.Time) (*models.Notification, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetNotification(ctx, id)
}

func (s *Store) markAllVisibleRead(db *gorm.DB, v store.Visibility, at time.Time) *gorm.DB {
	return db.Model(&models.Notification{}).
		Scopes(s.visible(v)).
		Where("is_read = ?", false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
}

func (s *Store) MarkAllVisibleRead(ctx context.Context, v store.Visibility, at time.Time) (int64, error) {
	res := s.markAllVisibleRead(s.db.WithContext(ctx), v, at)
	return res.RowsAffected, res.Error
}

func (s *Store) VisibleStats(ctx context.Context, v store.Visibility) ([]store.StatsRow, error) {
	var rows []store.StatsRow
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Scopes(s.visible(v)).
		Select("type, priority, is_read, count(*) AS count").
		Group("type, priority, is_read").
		Scan(&rows).Error
	return rows, err
}

func (s *Store) DeleteNotification(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Notification{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
