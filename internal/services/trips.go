package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/geo"
	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

// DefaultAddress is stored when a location update carries no address.
const DefaultAddress = "Location not available"

// TripService drives the available <-> on_trip lifecycle of a bus.
type TripService struct {
	store         store.Store
	notifications *NotificationService
	hub           Publisher
	now           Clock
	metrics       *metrics.Collector
}

// driverBus resolves the bus a driver operates. A bus that is not out of
// service wins over retired ones.
func driverBus(ctx context.Context, st store.BusStore, driverID uint) (*models.Bus, error) {
	buses, err := st.FindBusesByDriver(ctx, driverID)
	if err != nil {
		return nil, errors.Wrap(err, "find driver bus")
	}
	if len(buses) == 0 {
		return nil, apperr.NotFound("No bus assigned to this driver")
	}
	for i := range buses {
		if buses[i].Status != models.BusOutOfService {
			return &buses[i], nil
		}
	}
	return &buses[0], nil
}

// StartTrip moves the driver's bus to on_trip and tells students about it.
//
// The student notification is created before returning; if that fails the
// call fails even though the bus is already on its trip.
func (s *TripService) StartTrip(ctx context.Context, driverID uint) (*models.Bus, error) {
	bus, err := driverBus(ctx, s.store, driverID)
	if err != nil {
		return nil, err
	}
	if bus.IsOnTrip {
		return nil, apperr.InvalidState("Trip is already in progress")
	}
	if bus.Status != models.BusAvailable {
		return nil, apperr.InvalidState("Bus is not available for a trip (status: %s)", bus.Status)
	}

	now := s.now()
	updated, err := s.store.SwapTripState(ctx, bus.ID, models.BusAvailable, models.TripPatch{
		Status:        models.BusOnTrip,
		IsOnTrip:      true,
		TripStartTime: &now,
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.InvalidState("Trip is already in progress")
	}
	if err != nil {
		return nil, notFoundOr(err, "Bus not found")
	}

	err = s.notifications.create(ctx, &models.Notification{
		Title:         "Bus Trip Started",
		Message:       fmt.Sprintf("Bus %s has started its trip.", updated.BusNumber),
		Type:          models.NotifyInfo,
		Priority:      models.PriorityMedium,
		SenderRole:    models.SenderDriver,
		SenderID:      &driverID,
		ReceiverRole:  models.ReceiverRole(models.RoleStudent),
		RelatedEntity: &models.RelatedEntity{Type: "bus", ID: updated.ID},
		Metadata:      map[string]interface{}{"busNumber": updated.BusNumber, "routeId": updated.RouteID},
	}, TargetRole)
	if err != nil {
		return nil, errors.Wrap(err, "notify trip start")
	}

	s.metrics.TripStarted()
	s.hub.Publish(hub.Event{
		Type:      hub.EventTripStarted,
		RouteID:   updated.RouteID,
		BusID:     updated.ID,
		Data:      updated,
		Timestamp: now,
	})
	logrus.WithFields(logrus.Fields{
		"bus_id":    updated.ID,
		"driver_id": driverID,
	}).Info("Trip started")
	return updated, nil
}

type TripSummary struct {
	Bus          *models.Bus `json:"bus"`
	TripDuration int         `json:"tripDuration"` // minutes
}

// tripMinutes rounds the elapsed time to the nearest minute, halves up.
func tripMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}

// StopTrip returns the driver's bus to available and reports the trip length.
// Like StartTrip it fails when the completion notification cannot be stored.
func (s *TripService) StopTrip(ctx context.Context, driverID uint) (*TripSummary, error) {
	bus, err := driverBus(ctx, s.store, driverID)
	if err != nil {
		return nil, err
	}
	if !bus.IsOnTrip || bus.Status != models.BusOnTrip {
		return nil, apperr.InvalidState("No trip in progress")
	}

	now := s.now()
	start := now
	if bus.TripStartTime != nil {
		start = *bus.TripStartTime
	}
	minutes := tripMinutes(start, now)

	updated, err := s.store.SwapTripState(ctx, bus.ID, models.BusOnTrip, models.TripPatch{
		Status:   models.BusAvailable,
		IsOnTrip: false,
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.InvalidState("No trip in progress")
	}
	if err != nil {
		return nil, notFoundOr(err, "Bus not found")
	}

	err = s.notifications.create(ctx, &models.Notification{
		Title:         "Bus Trip Completed",
		Message:       fmt.Sprintf("Bus %s has completed its trip in %d minutes.", updated.BusNumber, minutes),
		Type:          models.NotifySuccess,
		Priority:      models.PriorityMedium,
		SenderRole:    models.SenderDriver,
		SenderID:      &driverID,
		ReceiverRole:  models.ReceiverRole(models.RoleStudent),
		RelatedEntity: &models.RelatedEntity{Type: "bus", ID: updated.ID},
		Metadata:      map[string]interface{}{"busNumber": updated.BusNumber, "tripDuration": minutes},
	}, TargetRole)
	if err != nil {
		return nil, errors.Wrap(err, "notify trip stop")
	}

	s.metrics.TripStopped(minutes)
	s.hub.Publish(hub.Event{
		Type:      hub.EventTripStopped,
		RouteID:   updated.RouteID,
		BusID:     updated.ID,
		Data:      stoppedPayload(updated, minutes),
		Timestamp: now,
	})
	logrus.WithFields(logrus.Fields{
		"bus_id":        updated.ID,
		"driver_id":     driverID,
		"trip_duration": minutes,
	}).Info("Trip stopped")
	return &TripSummary{Bus: updated, TripDuration: minutes}, nil
}

func stoppedPayload(b *models.Bus, minutes int) map[string]interface{} {
	return map[string]interface{}{"bus": b, "tripDuration": minutes}
}

type LocationInput struct {
	Lat     float64
	Lng     float64
	Address string
}

func validCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// UpdateLocation records the driver's position. Only a bus on a trip moves.
func (s *TripService) UpdateLocation(ctx context.Context, driverID uint, in LocationInput) (*models.Bus, error) {
	if !validCoordinates(in.Lat, in.Lng) {
		return nil, apperr.FieldValidation("Invalid coordinates", map[string]string{
			"latitude":  "must be between -90 and 90",
			"longitude": "must be between -180 and 180",
		})
	}
	bus, err := driverBus(ctx, s.store, driverID)
	if err != nil {
		return nil, err
	}
	if !bus.IsOnTrip {
		return nil, apperr.InvalidState("Cannot update location while not on a trip")
	}

	loc := models.Location{Lat: in.Lat, Lng: in.Lng, Address: in.Address}
	if loc.Address == "" {
		loc.Address = DefaultAddress
	}
	now := s.now()
	updated, err := s.store.UpdateBusLocation(ctx, bus.ID, loc, now)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.InvalidState("Cannot update location while not on a trip")
	}
	if err != nil {
		return nil, notFoundOr(err, "Bus not found")
	}

	data := map[string]interface{}{"location": loc}
	if prev := bus.CurrentLocation; bus.LastLocationUpdate != nil {
		data["distanceMeters"] = geo.DistanceMeters(prev.Lat, prev.Lng, loc.Lat, loc.Lng)
		data["bearing"] = geo.Bearing(prev.Lat, prev.Lng, loc.Lat, loc.Lng)
	}
	s.metrics.LocationUpdated()
	s.hub.Publish(hub.Event{
		Type:      hub.EventLocationUpdate,
		RouteID:   updated.RouteID,
		BusID:     updated.ID,
		Data:      data,
		Timestamp: now,
	})
	return updated, nil
}

type DriverSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type RouteSummary struct {
	ID        uint   `json:"id"`
	RouteNo   string `json:"routeNo"`
	RouteName string `json:"routeName"`
}

// BusLocation is a bus's position and trip metadata joined with its driver and route.
type BusLocation struct {
	BusID              uint             `json:"busId"`
	BusNumber          string           `json:"busNumber"`
	Status             models.BusStatus `json:"status"`
	CurrentLocation    models.Location  `json:"currentLocation"`
	IsOnTrip           bool             `json:"isOnTrip"`
	TripStartTime      *time.Time       `json:"tripStartTime"`
	LastLocationUpdate *time.Time       `json:"lastLocationUpdate"`
	ElapsedMinutes     *int             `json:"elapsedMinutes,omitempty"`
	Driver             *DriverSummary   `json:"driver,omitempty"`
	Route              *RouteSummary    `json:"route,omitempty"`
}

func (s *TripService) describe(ctx context.Context, b *models.Bus) (*BusLocation, error) {
	out := &BusLocation{
		BusID:              b.ID,
		BusNumber:          b.BusNumber,
		Status:             b.Status,
		CurrentLocation:    b.CurrentLocation,
		IsOnTrip:           b.IsOnTrip,
		TripStartTime:      b.TripStartTime,
		LastLocationUpdate: b.LastLocationUpdate,
	}
	if b.IsOnTrip && b.TripStartTime != nil {
		m := tripMinutes(*b.TripStartTime, s.now())
		out.ElapsedMinutes = &m
	}

	driver, err := s.store.GetUser(ctx, b.DriverID)
	switch {
	case err == nil:
		out.Driver = &DriverSummary{ID: driver.ID, Name: driver.Name, Phone: driver.Phone}
	case !errors.Is(err, store.ErrNotFound):
		return nil, errors.Wrap(err, "load bus driver")
	}

	route, err := s.store.GetRoute(ctx, b.RouteID)
	switch {
	case err == nil:
		out.Route = &RouteSummary{ID: route.ID, RouteNo: route.RouteNo, RouteName: route.RouteName}
	case !errors.Is(err, store.ErrNotFound):
		return nil, errors.Wrap(err, "load bus route")
	}
	return out, nil
}

func (s *TripService) GetBusLocation(ctx context.Context, busID uint) (*BusLocation, error) {
	b, err := s.store.GetBus(ctx, busID)
	if err != nil {
		return nil, notFoundOr(err, "Bus not found")
	}
	return s.describe(ctx, b)
}

// ListActiveBuses returns every bus currently on a trip.
func (s *TripService) ListActiveBuses(ctx context.Context) ([]BusLocation, error) {
	onTrip := true
	buses, _, err := s.store.ListBuses(ctx, store.BusFilter{OnTrip: &onTrip})
	if err != nil {
		return nil, errors.Wrap(err, "list active buses")
	}
	out := make([]BusLocation, 0, len(buses))
	for i := range buses {
		loc, err := s.describe(ctx, &buses[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *loc)
	}
	return out, nil
}

// MyTrip reports the trip status of the caller's own bus.
func (s *TripService) MyTrip(ctx context.Context, driverID uint) (*BusLocation, error) {
	b, err := driverBus(ctx, s.store, driverID)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, b)
}
