package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

// FleetService manages buses and keeps route and driver back references in sync.
type FleetService struct {
	store store.Store
}

type BusInput struct {
	BusNumber string
	DriverID  uint
	RouteID   uint
	Capacity  int
	Model     string
	Year      int
	Status    models.BusStatus
}

// BusUpdate carries the fields to change; nil means unchanged.
type BusUpdate struct {
	BusNumber *string
	DriverID  *uint
	RouteID   *uint
	Capacity  *int
	Model     *string
	Year      *int
	Status    *models.BusStatus
}

type BusQuery struct {
	RouteID uint
	OnTrip  *bool
	Status  models.BusStatus
	PageRequest
}

func validateAdminStatus(st models.BusStatus) error {
	if !st.IsValid() {
		return apperr.FieldValidation("Invalid bus status", map[string]string{"status": string(st)})
	}
	if st == models.BusOnTrip {
		return apperr.FieldValidation("Status on_trip can only be set by starting a trip",
			map[string]string{"status": string(st)})
	}
	return nil
}

// checkBus validates references and uniqueness of b before it is written.
func (s *FleetService) checkBus(ctx context.Context, b *models.Bus) error {
	if other, err := s.store.GetBusByNumber(ctx, b.BusNumber); err == nil && other.ID != b.ID {
		return apperr.FieldValidation("Bus number already exists", map[string]string{"busNumber": b.BusNumber})
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(err, "check bus number")
	}

	driver, err := s.store.GetUser(ctx, b.DriverID)
	if err != nil {
		return notFoundOr(err, "Driver not found")
	}
	if driver.Role != models.RoleDriver {
		return apperr.FieldValidation("Assigned user is not a driver", map[string]string{"driverId": "must reference a driver"})
	}
	if driver.Status != models.StatusActive {
		return apperr.FieldValidation("Driver account is not active", map[string]string{"driverId": "driver must be active"})
	}
	if b.Status != models.BusOutOfService {
		owned, err := s.store.FindBusesByDriver(ctx, b.DriverID)
		if err != nil {
			return errors.Wrap(err, "check driver buses")
		}
		for _, o := range owned {
			if o.ID != b.ID && o.Status != models.BusOutOfService {
				return apperr.FieldValidation("Driver already has an assigned bus",
					map[string]string{"driverId": "driver already operates bus " + o.BusNumber})
			}
		}
	}

	if _, err := s.store.GetRoute(ctx, b.RouteID); err != nil {
		return notFoundOr(err, "Route not found")
	}
	return nil
}

func duplicateBus(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperr.Validation("Bus number or driver assignment already exists")
	}
	return errors.Wrap(err, "save bus")
}

func (s *FleetService) CreateBus(ctx context.Context, in BusInput) (*models.Bus, error) {
	missing := map[string]string{}
	if strings.TrimSpace(in.BusNumber) == "" {
		missing["busNumber"] = "busNumber is required"
	}
	if in.DriverID == 0 {
		missing["driverId"] = "driverId is required"
	}
	if in.RouteID == 0 {
		missing["routeId"] = "routeId is required"
	}
	if in.Capacity < 1 {
		missing["capacity"] = "capacity must be at least 1"
	}
	if len(missing) > 0 {
		return nil, apperr.FieldValidation("Invalid bus", missing)
	}
	if in.Status == "" {
		in.Status = models.BusAvailable
	}
	if err := validateAdminStatus(in.Status); err != nil {
		return nil, err
	}

	b := &models.Bus{
		BusNumber: strings.TrimSpace(in.BusNumber),
		DriverID:  in.DriverID,
		RouteID:   in.RouteID,
		Capacity:  in.Capacity,
		Model:     in.Model,
		Year:      in.Year,
		Status:    in.Status,
	}
	if err := s.checkBus(ctx, b); err != nil {
		return nil, err
	}
	if err := s.store.CreateBus(ctx, b); err != nil {
		return nil, duplicateBus(err)
	}

	if err := s.attach(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *FleetService) GetBus(ctx context.Context, id uint) (*models.Bus, error) {
	b, err := s.store.GetBus(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Bus not found")
	}
	return b, nil
}

func (s *FleetService) ListBuses(ctx context.Context, q BusQuery) ([]models.Bus, Pagination, error) {
	if q.Status != "" && !q.Status.IsValid() {
		return nil, Pagination{}, apperr.Validation("Invalid bus status: %s", q.Status)
	}
	p := q.normalize(defaultLimit)
	buses, total, err := s.store.ListBuses(ctx, store.BusFilter{
		RouteID: q.RouteID,
		OnTrip:  q.OnTrip,
		Status:  q.Status,
		Page:    p,
	})
	if err != nil {
		return nil, Pagination{}, errors.Wrap(err, "list buses")
	}
	return buses, newPagination(p, total), nil
}

// UpdateBus applies an admin edit. Trip fields are never touched here, and a
// bus on a trip keeps its status, driver and route until the trip ends.
func (s *FleetService) UpdateBus(ctx context.Context, id uint, in BusUpdate) (*models.Bus, error) {
	b, err := s.store.GetBus(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Bus not found")
	}
	before := *b

	if in.Status != nil && *in.Status != b.Status {
		if err := validateAdminStatus(*in.Status); err != nil {
			return nil, err
		}
		if b.IsOnTrip {
			return nil, apperr.InvalidState("Cannot change status while the bus is on a trip")
		}
		b.Status = *in.Status
	}
	if b.IsOnTrip && ((in.DriverID != nil && *in.DriverID != b.DriverID) || (in.RouteID != nil && *in.RouteID != b.RouteID)) {
		return nil, apperr.InvalidState("Cannot reassign a bus while it is on a trip")
	}
	if in.BusNumber != nil {
		if strings.TrimSpace(*in.BusNumber) == "" {
			return nil, apperr.FieldValidation("Invalid bus", map[string]string{"busNumber": "busNumber is required"})
		}
		b.BusNumber = strings.TrimSpace(*in.BusNumber)
	}
	if in.DriverID != nil {
		b.DriverID = *in.DriverID
	}
	if in.RouteID != nil {
		b.RouteID = *in.RouteID
	}
	if in.Capacity != nil {
		if *in.Capacity < 1 {
			return nil, apperr.FieldValidation("Invalid bus", map[string]string{"capacity": "capacity must be at least 1"})
		}
		b.Capacity = *in.Capacity
	}
	if in.Model != nil {
		b.Model = *in.Model
	}
	if in.Year != nil {
		b.Year = *in.Year
	}

	if err := s.checkBus(ctx, b); err != nil {
		return nil, err
	}
	if err := s.store.UpdateBus(ctx, b); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Bus not found")
		}
		return nil, duplicateBus(err)
	}

	if before.RouteID != b.RouteID || before.DriverID != b.DriverID {
		if err := s.detach(ctx, &before); err != nil {
			return nil, err
		}
	}
	if err := s.attach(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *FleetService) DeleteBus(ctx context.Context, id uint) error {
	b, err := s.store.GetBus(ctx, id)
	if err != nil {
		return notFoundOr(err, "Bus not found")
	}
	if b.IsOnTrip {
		return apperr.InvalidState("Cannot delete a bus that is currently on a trip")
	}
	if err := s.store.DeleteBus(ctx, id); err != nil {
		return notFoundOr(err, "Bus not found")
	}
	return s.detach(ctx, b)
}

// attach records b on its route and on its driver.
func (s *FleetService) attach(ctx context.Context, b *models.Bus) error {
	route, err := s.store.GetRoute(ctx, b.RouteID)
	if err == nil && !route.HasBus(b.ID) {
		route.AddBus(b.ID)
		err = s.store.SetAssignedBuses(ctx, route.ID, route.AssignedBuses)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(err, "assign bus to route")
	}

	driver, err := s.store.GetUser(ctx, b.DriverID)
	if err == nil && (driver.AssignedBusID == nil || *driver.AssignedBusID != b.ID) {
		id := b.ID
		driver.AssignedBusID = &id
		err = s.store.UpdateUser(ctx, driver)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(err, "assign bus to driver")
	}
	return nil
}

// detach removes b from its route and clears the driver's reference to it.
func (s *FleetService) detach(ctx context.Context, b *models.Bus) error {
	route, err := s.store.GetRoute(ctx, b.RouteID)
	if err == nil && route.HasBus(b.ID) {
		route.RemoveBus(b.ID)
		err = s.store.SetAssignedBuses(ctx, route.ID, route.AssignedBuses)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(err, "unassign bus from route")
	}

	driver, err := s.store.GetUser(ctx, b.DriverID)
	if err == nil && driver.AssignedBusID != nil && *driver.AssignedBusID == b.ID {
		driver.AssignedBusID = nil
		err = s.store.UpdateUser(ctx, driver)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(err, "unassign bus from driver")
	}
	return nil
}
