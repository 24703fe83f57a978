package memstore

import (
	"context"
	"sort"
	"time"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

func cloneRoute(r models.Route) models.Route {
	r.Stops = append([]models.Stop(nil), r.Stops...)
	r.AssignedBuses = append([]int64(nil), r.AssignedBuses...)
	r.SortStops()
	return r
}

func (s *Store) routeConflict(r *models.Route) bool {
	for id, other := range s.routes {
		if id != r.ID && (other.RouteNo == r.RouteNo || other.RouteName == r.RouteName) {
			return true
		}
	}
	return false
}

// assignStopIDs gives new ids to the route's stops. Callers hold mu.
func (s *Store) assignStopIDs(r *models.Route) {
	for i := range r.Stops {
		r.Stops[i].ID = s.id()
		r.Stops[i].RouteID = r.ID
	}
}

func (s *Store) CreateRoute(_ context.Context, r *models.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.routeConflict(r) {
		return store.ErrDuplicate
	}
	r.ID = s.id()
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	s.assignStopIDs(r)
	s.routes[r.ID] = cloneRoute(*r)
	return nil
}

func (s *Store) GetRoute(_ context.Context, id uint) (*models.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r = cloneRoute(r)
	return &r, nil
}

func (s *Store) findRoute(match func(models.Route) bool) (*models.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.routes {
		if match(r) {
			r = cloneRoute(r)
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetRouteByNo(_ context.Context, routeNo string) (*models.Route, error) {
	return s.findRoute(func(r models.Route) bool { return r.RouteNo == routeNo })
}

func (s *Store) GetRouteByName(_ context.Context, name string) (*models.Route, error) {
	return s.findRoute(func(r models.Route) bool { return r.RouteName == name })
}

func (s *Store) UpdateRoute(_ context.Context, r *models.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[r.ID]; !ok {
		return store.ErrNotFound
	}
	if s.routeConflict(r) {
		return store.ErrDuplicate
	}
	r.UpdatedAt = time.Now()
	s.assignStopIDs(r)
	s.routes[r.ID] = cloneRoute(*r)
	return nil
}

func (s *Store) SetAssignedBuses(_ context.Context, id uint, busIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routes[id]
	if !ok {
		return store.ErrNotFound
	}
	r.AssignedBuses = append([]int64(nil), busIDs...)
	s.routes[id] = r
	return nil
}

func (s *Store) DeleteRoute(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.routes, id)
	return nil
}

func (s *Store) ListRoutes(_ context.Context, f store.RouteFilter) ([]models.Route, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Route
	for _, r := range s.routes {
		if f.IsActive != nil && r.IsActive != *f.IsActive {
			continue
		}
		out = append(out, cloneRoute(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteNo < out[j].RouteNo })
	return page(out, f.Page), int64(len(out)), nil
}
