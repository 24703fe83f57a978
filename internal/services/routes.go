package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/geo"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

var hhmm = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidHHMM reports whether s is a 24h "HH:MM" clock time.
func ValidHHMM(s string) bool { return hhmm.MatchString(s) }

type RouteService struct {
	store store.Store
}

type StopInput struct {
	Name       string
	Lat        float64
	Lng        float64
	Address    string
	Sequence   int
	PickupTime string
	Fee        float64
}

type RouteInput struct {
	RouteNo              string
	RouteName            string
	DepartureTime        string
	DistanceKm           *float64 // estimated from the stops when nil
	EstimatedDurationMin int
	IsActive             *bool
	Stops                []StopInput
}

type RouteQuery struct {
	IsActive *bool
	PageRequest
}

// buildStops validates stops. Sequences are checked for uniqueness but never renumbered.
func buildStops(in []StopInput) ([]models.Stop, error) {
	fields := map[string]string{}
	seen := map[int]bool{}
	stops := make([]models.Stop, 0, len(in))
	for i, st := range in {
		key := fmt.Sprintf("stops[%d]", i)
		switch {
		case strings.TrimSpace(st.Name) == "":
			fields[key+".name"] = "name is required"
		case st.Sequence < 1:
			fields[key+".sequence"] = "sequence must be at least 1"
		case seen[st.Sequence]:
			fields[key+".sequence"] = fmt.Sprintf("duplicate sequence %d", st.Sequence)
		case !ValidHHMM(st.PickupTime):
			fields[key+".pickupTime"] = "pickupTime must be HH:MM"
		case st.Fee < 0:
			fields[key+".fee"] = "fee must not be negative"
		case !validCoordinates(st.Lat, st.Lng):
			fields[key+".lat"] = "invalid coordinates"
		}
		seen[st.Sequence] = true
		stops = append(stops, models.Stop{
			Name:       strings.TrimSpace(st.Name),
			Lat:        st.Lat,
			Lng:        st.Lng,
			Address:    st.Address,
			Sequence:   st.Sequence,
			PickupTime: st.PickupTime,
			Fee:        st.Fee,
		})
	}
	if len(fields) > 0 {
		return nil, apperr.FieldValidation("Invalid stops", fields)
	}
	return stops, nil
}

// apply validates in and copies it onto r.
func (s *RouteService) apply(ctx context.Context, r *models.Route, in RouteInput) error {
	missing := map[string]string{}
	if strings.TrimSpace(in.RouteNo) == "" {
		missing["routeNo"] = "routeNo is required"
	}
	if strings.TrimSpace(in.RouteName) == "" {
		missing["routeName"] = "routeName is required"
	}
	if in.DepartureTime != "" && !ValidHHMM(in.DepartureTime) {
		missing["departureTime"] = "departureTime must be HH:MM"
	}
	if in.DistanceKm != nil && *in.DistanceKm < 0 {
		missing["distanceKm"] = "distanceKm must not be negative"
	}
	if in.EstimatedDurationMin < 0 {
		missing["estimatedDurationMin"] = "estimatedDurationMin must not be negative"
	}
	if len(missing) > 0 {
		return apperr.FieldValidation("Invalid route", missing)
	}

	stops, err := buildStops(in.Stops)
	if err != nil {
		return err
	}

	r.RouteNo = strings.TrimSpace(in.RouteNo)
	r.RouteName = strings.TrimSpace(in.RouteName)
	if other, err := s.store.GetRouteByNo(ctx, r.RouteNo); err == nil && other.ID != r.ID {
		return apperr.FieldValidation("Route number already exists", map[string]string{"routeNo": r.RouteNo})
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(err, "check route number")
	}
	if other, err := s.store.GetRouteByName(ctx, r.RouteName); err == nil && other.ID != r.ID {
		return apperr.FieldValidation("Route name already exists", map[string]string{"routeName": r.RouteName})
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(err, "check route name")
	}

	r.DepartureTime = in.DepartureTime
	r.EstimatedDurationMin = in.EstimatedDurationMin
	r.Stops = stops
	r.SortStops()
	if in.DistanceKm != nil {
		r.DistanceKm = *in.DistanceKm
	} else {
		r.DistanceKm = geo.PathLengthKm(r.Stops)
	}
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}
	return nil
}

func duplicateRoute(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperr.Validation("Route number or name already exists")
	}
	return errors.Wrap(err, "save route")
}

func (s *RouteService) CreateRoute(ctx context.Context, in RouteInput) (*models.Route, error) {
	r := &models.Route{IsActive: true}
	if err := s.apply(ctx, r, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateRoute(ctx, r); err != nil {
		return nil, duplicateRoute(err)
	}
	return r, nil
}

// UpdateRoute replaces the route's attributes and stops. Assigned buses are kept.
func (s *RouteService) UpdateRoute(ctx context.Context, id uint, in RouteInput) (*models.Route, error) {
	r, err := s.store.GetRoute(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Route not found")
	}
	if err := s.apply(ctx, r, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRoute(ctx, r); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Route not found")
		}
		return nil, duplicateRoute(err)
	}
	return r, nil
}

func (s *RouteService) GetRoute(ctx context.Context, id uint) (*models.Route, error) {
	r, err := s.store.GetRoute(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Route not found")
	}
	r.SortStops()
	return r, nil
}

func (s *RouteService) ListRoutes(ctx context.Context, q RouteQuery) ([]models.Route, Pagination, error) {
	p := q.normalize(defaultLimit)
	routes, total, err := s.store.ListRoutes(ctx, store.RouteFilter{IsActive: q.IsActive, Page: p})
	if err != nil {
		return nil, Pagination{}, errors.Wrap(err, "list routes")
	}
	return routes, newPagination(p, total), nil
}

// DeleteRoute refuses while any bus or student still references the route.
func (s *RouteService) DeleteRoute(ctx context.Context, id uint) error {
	if _, err := s.store.GetRoute(ctx, id); err != nil {
		return notFoundOr(err, "Route not found")
	}
	buses, err := s.store.CountBusesOnRoute(ctx, id)
	if err != nil {
		return errors.Wrap(err, "count route buses")
	}
	if buses > 0 {
		return apperr.InvalidState("Cannot delete route: route has %d assigned buses", buses)
	}
	students, err := s.store.CountStudentsOnRoute(ctx, id)
	if err != nil {
		return errors.Wrap(err, "count route students")
	}
	if students > 0 {
		return apperr.InvalidState("Cannot delete route: %d students are assigned to it", students)
	}
	if err := s.store.DeleteRoute(ctx, id); err != nil {
		return notFoundOr(err, "Route not found")
	}
	return nil
}
