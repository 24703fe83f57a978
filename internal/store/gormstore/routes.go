package gormstore

import (
	"context"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

func orderedStops(db *gorm.DB) *gorm.DB {
	return db.Order("sequence asc")
}

func (s *Store) CreateRoute(ctx context.Context, r *models.Route) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *Store) GetRoute(ctx context.Context, id uint) (*models.Route, error) {
	var r models.Route
	if err := s.db.WithContext(ctx).Preload("Stops", orderedStops).First(&r, id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *Store) GetRouteByNo(ctx context.Context, routeNo string) (*models.Route, error) {
	var r models.Route
	if err := s.db.WithContext(ctx).Where("route_no = ?", routeNo).First(&r).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *Store) GetRouteByName(ctx context.Context, name string) (*models.Route, error) {
	var r models.Route
	if err := s.db.WithContext(ctx).Where("route_name = ?", name).First(&r).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *Store) UpdateRoute(ctx context.Context, r *models.Route) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route_id = ?", r.ID).Delete(&models.Stop{}).Error; err != nil {
			return err
		}
		if err := tx.Omit("Stops").Save(r).Error; err != nil {
			return err
		}
		if len(r.Stops) == 0 {
			return nil
		}
		for i := range r.Stops {
			r.Stops[i].ID = 0
			r.Stops[i].RouteID = r.ID
		}
		return tx.Create(&r.Stops).Error
	}))
}

func (s *Store) SetAssignedBuses(ctx context.Context, id uint, busIDs []int64) error {
	res := s.db.WithContext(ctx).Model(&models.Route{}).Where("id = ?", id).
		Update("assigned_buses", pq.Int64Array(busIDs))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRoute(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route_id = ?", id).Delete(&models.Stop{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Route{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Store) ListRoutes(ctx context.Context, f store.RouteFilter) ([]models.Route, int64, error) {
	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Route{})
		if f.IsActive != nil {
			q = q.Where("is_active = ?", *f.IsActive)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var routes []models.Route
	err := query().Preload("Stops", orderedStops).Order("route_no asc").Scopes(paginate(f.Page)).Find(&routes).Error
	if err != nil {
		return nil, 0, err
	}
	return routes, total, nil
}
