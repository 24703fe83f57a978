package memstore

import (
	"context"
	"sort"
	"time"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

func cloneBus(b models.Bus) models.Bus {
	b.TripStartTime = copyTime(b.TripStartTime)
	b.LastLocationUpdate = copyTime(b.LastLocationUpdate)
	return b
}

// busConflict mirrors the unique bus number index and the partial unique
// index on driver_id for buses that are not out of service.
func (s *Store) busConflict(b *models.Bus) bool {
	for id, other := range s.buses {
		if id == b.ID {
			continue
		}
		if other.BusNumber == b.BusNumber {
			return true
		}
		if other.DriverID == b.DriverID &&
			other.Status != models.BusOutOfService && b.Status != models.BusOutOfService {
			return true
		}
	}
	return false
}

func (s *Store) CreateBus(_ context.Context, b *models.Bus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busConflict(b) {
		return store.ErrDuplicate
	}
	b.ID = s.id()
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	s.buses[b.ID] = cloneBus(*b)
	return nil
}

func (s *Store) GetBus(_ context.Context, id uint) (*models.Bus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	b = cloneBus(b)
	return &b, nil
}

func (s *Store) GetBusByNumber(_ context.Context, number string) (*models.Bus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.buses {
		if b.BusNumber == number {
			b = cloneBus(b)
			return &b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindBusesByDriver(_ context.Context, driverID uint) ([]models.Bus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bus
	for _, b := range s.buses {
		if b.DriverID == driverID {
			out = append(out, cloneBus(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateBus(_ context.Context, b *models.Bus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.buses[b.ID]
	if !ok {
		return store.ErrNotFound
	}
	if s.busConflict(b) {
		return store.ErrDuplicate
	}
	b.IsOnTrip = cur.IsOnTrip
	b.TripStartTime = copyTime(cur.TripStartTime)
	b.CurrentLocation = cur.CurrentLocation
	b.LastLocationUpdate = copyTime(cur.LastLocationUpdate)
	b.CreatedAt = cur.CreatedAt
	b.UpdatedAt = time.Now()
	s.buses[b.ID] = cloneBus(*b)
	return nil
}

func (s *Store) DeleteBus(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.buses, id)
	return nil
}

func (s *Store) ListBuses(_ context.Context, f store.BusFilter) ([]models.Bus, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bus
	for _, b := range s.buses {
		if f.RouteID != 0 && b.RouteID != f.RouteID {
			continue
		}
		if f.OnTrip != nil && b.IsOnTrip != *f.OnTrip {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, cloneBus(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusNumber < out[j].BusNumber })
	return page(out, f.Page), int64(len(out)), nil
}

func (s *Store) CountBusesOnRoute(_ context.Context, routeID uint) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, b := range s.buses {
		if b.RouteID == routeID {
			n++
		}
	}
	return n, nil
}

func (s *Store) SwapTripState(_ context.Context, id uint, from models.BusStatus, patch models.TripPatch) (*models.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if b.Status != from {
		return nil, store.ErrConflict
	}
	b.Status = patch.Status
	b.IsOnTrip = patch.IsOnTrip
	b.TripStartTime = copyTime(patch.TripStartTime)
	b.UpdatedAt = time.Now()
	s.buses[id] = b
	b = cloneBus(b)
	return &b, nil
}

func (s *Store) UpdateBusLocation(_ context.Context, id uint, loc models.Location, at time.Time) (*models.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !b.IsOnTrip {
		return nil, store.ErrConflict
	}
	b.CurrentLocation = loc
	b.LastLocationUpdate = &at
	b.UpdatedAt = time.Now()
	s.buses[id] = b
	b = cloneBus(b)
	return &b, nil
}
