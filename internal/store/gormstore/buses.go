package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

func (s *Store) CreateBus(ctx context.Context, b *models.Bus) error {
	return translate(s.db.WithContext(ctx).Create(b).Error)
}

func (s *Store) GetBus(ctx context.Context, id uint) (*models.Bus, error) {
	var b models.Bus
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *Store) GetBusByNumber(ctx context.Context, number string) (*models.Bus, error) {
	var b models.Bus
	if err := s.db.WithContext(ctx).Where("bus_number = ?", number).First(&b).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *Store) FindBusesByDriver(ctx context.Context, driverID uint) ([]models.Bus, error) {
	var buses []models.Bus
	err := s.db.WithContext(ctx).Where("driver_id = ?", driverID).Order("id asc").Find(&buses).Error
	return buses, err
}

// busAdminColumns are the columns UpdateBus writes. Trip state and location
// belong to SwapTripState and UpdateBusLocation.
var busAdminColumns = []string{"bus_number", "driver_id", "route_id", "capacity", "model", "year", "status", "updated_at"}

func (s *Store) UpdateBus(ctx context.Context, b *models.Bus) error {
	res := s.db.WithContext(ctx).Model(b).Select(busAdminColumns).Updates(b)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteBus(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Bus{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListBuses(ctx context.Context, f store.BusFilter) ([]models.Bus, int64, error) {
	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Bus{})
		if f.RouteID != 0 {
			q = q.Where("route_id = ?", f.RouteID)
		}
		if f.OnTrip != nil {
			q = q.Where("is_on_trip = ?", *f.OnTrip)
		}
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var buses []models.Bus
	if err := query().Order("bus_number asc").Scopes(paginate(f.Page)).Find(&buses).Error; err != nil {
		return nil, 0, err
	}
	return buses, total, nil
}

func (s *Store) CountBusesOnRoute(ctx context.Context, routeID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Bus{}).Where("route_id = ?", routeID).Count(&n).Error
	return n, err
}

// swapTripState applies patch only while the row still has status from.
func swapTripState(db *gorm.DB, id uint, from models.BusStatus, patch models.TripPatch) *gorm.DB {
	return db.Model(&models.Bus{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":          patch.Status,
			"is_on_trip":      patch.IsOnTrip,
			"trip_start_time": patch.TripStartTime,
		})
}

func (s *Store) SwapTripState(ctx context.Context, id uint, from models.BusStatus, patch models.TripPatch) (*models.Bus, error) {
	res := swapTripState(s.db.WithContext(ctx), id, from, patch)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.missOrConflict(ctx, id)
	}
	return s.GetBus(ctx, id)
}

func (s *Store) UpdateBusLocation(ctx context.Context, id uint, loc models.Location, at time.Time) (*models.Bus, error) {
	res := s.db.WithContext(ctx).Model(&models.Bus{}).
		Where("id = ? AND is_on_trip = ?", id, true).
		Updates(map[string]interface{}{
			"current_lat":          loc.Lat,
			"current_lng":          loc.Lng,
			"current_address":      loc.Address,
			"last_location_update": at,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.missOrConflict(ctx, id)
	}
	return s.GetBus(ctx, id)
}

func (s *Store) missOrConflict(ctx context.Context, id uint) error {
	if _, err := s.GetBus(ctx, id); err != nil {
		return err
	}
	return store.ErrConflict
}
