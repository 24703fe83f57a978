// Package store declares the persistence contracts used by the services.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"shuttle_tracker/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
	// ErrConflict is returned when a conditional write found the record in an unexpected state.
	ErrConflict = errors.New("record changed concurrently")
)

// Page is a 1-indexed page request. A zero Limit means "no paging".
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

type UserFilter struct {
	Role   models.Role
	Status models.UserStatus
	Page
}

type BusFilter struct {
	RouteID uint
	OnTrip  *bool
	Status  models.BusStatus
	Page
}

type RouteFilter struct {
	IsActive *bool
	Page
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, int64, error)
	CountStudentsOnRoute(ctx context.Context, routeID uint) (int64, error)
}

type BusStore interface {
	CreateBus(ctx context.Context, b *models.Bus) error
	GetBus(ctx context.Context, id uint) (*models.Bus, error)
	GetBusByNumber(ctx context.Context, number string) (*models.Bus, error)
	FindBusesByDriver(ctx context.Context, driverID uint) ([]models.Bus, error)
	// UpdateBus writes the admin editable fields. Trip state and location are left alone.
	UpdateBus(ctx context.Context, b *models.Bus) error
	DeleteBus(ctx context.Context, id uint) error
	ListBuses(ctx context.Context, f BusFilter) ([]models.Bus, int64, error)
	CountBusesOnRoute(ctx context.Context, routeID uint) (int64, error)

	// SwapTripState applies patch only if the bus is still in status from.
	// It returns ErrConflict otherwise.
	SwapTripState(ctx context.Context, id uint, from models.BusStatus, patch models.TripPatch) (*models.Bus, error)
	// UpdateBusLocation writes the location only while the bus is on a trip.
	// It returns ErrConflict otherwise.
	UpdateBusLocation(ctx context.Context, id uint, loc models.Location, at time.Time) (*models.Bus, error)
}

type RouteStore interface {
	CreateRoute(ctx context.Context, r *models.Route) error
	GetRoute(ctx context.Context, id uint) (*models.Route, error)
	GetRouteByNo(ctx context.Context, routeNo string) (*models.Route, error)
	GetRouteByName(ctx context.Context, name string) (*models.Route, error)
	// UpdateRoute saves the route and replaces its stops.
	UpdateRoute(ctx context.Context, r *models.Route) error
	SetAssignedBuses(ctx context.Context, id uint, busIDs []int64) error
	DeleteRoute(ctx context.Context, id uint) error
	ListRoutes(ctx context.Context, f RouteFilter) ([]models.Route, int64, error)
}

type NotificationFilter struct {
	IsRead   *bool
	Type     models.NotificationType
	Priority models.Priority
	Page
}

// StatsRow is one aggregated bucket of visible notifications.
type StatsRow struct {
	Type     models.NotificationType
	Priority models.Priority
	IsRead   bool
	Count    int64
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id uint) (*models.Notification, error)
	// ListVisible returns the page newest first along with the total number of matches.
	ListVisible(ctx context.Context, v Visibility, f NotificationFilter) ([]models.Notification, int64, error)
	CountVisibleUnread(ctx context.Context, v Visibility) (int64, error)
	MarkRead(ctx context.Context, id uint, at time.Time) (*models.Notification, error)
	MarkAllVisibleRead(ctx context.Context, v Visibility, at time.Time) (int64, error)
	VisibleStats(ctx context.Context, v Visibility) ([]StatsRow, error)
	DeleteNotification(ctx context.Context, id uint) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store bundles every repository of one backend.
type Store interface {
	UserStore
	BusStore
	RouteStore
	NotificationStore
}
