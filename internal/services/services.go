// Package services holds the business rules of the shuttle backend:
// the trip state machine, notification fan-out, location simulation and the
// fleet, route and user registries. Nothing here knows about HTTP.
package services

import (
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/config"
	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

// Clock returns the current instant.
type Clock func() time.Time

// Publisher receives live trip events.
type Publisher interface {
	Publish(ev hub.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(hub.Event) {}

// Identity is the verified caller of an operation.
type Identity struct {
	UserID      uint
	Role        models.Role
	Status      models.UserStatus
	ActivatedAt *time.Time
}

func IdentityOf(u *models.User) Identity {
	return Identity{UserID: u.ID, Role: u.Role, Status: u.Status, ActivatedAt: u.ActivatedAt}
}

const (
	defaultLimit             = 10
	defaultNotificationLimit = 20
	maxLimit                 = 100
)

// PageRequest is the raw page/limit pair from a caller; zero values take defaults.
type PageRequest struct {
	Page  int
	Limit int
}

func (p PageRequest) normalize(def int) store.Page {
	out := store.Page{Page: p.Page, Limit: p.Limit}
	if out.Page < 1 {
		out.Page = 1
	}
	if out.Limit < 1 {
		out.Limit = def
	}
	if out.Limit > maxLimit {
		out.Limit = maxLimit
	}
	return out
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func newPagination(p store.Page, total int64) Pagination {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// notFoundOr turns store.ErrNotFound into a NotFound with msg and wraps anything else.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("%s", msg)
	}
	return errors.Wrap(err, msg)
}

type Options struct {
	Clock     Clock
	Rand      *rand.Rand
	Metrics   *metrics.Collector
	Publisher Publisher
}

// Services bundles every service sharing one store.
type Services struct {
	Users         *UserService
	Fleet         *FleetService
	Routes        *RouteService
	Trips         *TripService
	Notifications *NotificationService
	Simulator     *Simulator
}

func New(st store.Store, cfg *config.Config, opts Options) *Services {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}

	notifications := &NotificationService{
		store:   st,
		cfg:     cfg.Notifications,
		now:     opts.Clock,
		metrics: opts.Metrics,
	}
	return &Services{
		Users: &UserService{
			store:         st,
			notifications: notifications,
			now:           opts.Clock,
			hashCost:      bcrypt.DefaultCost,
		},
		Fleet:  &FleetService{store: st},
		Routes: &RouteService{store: st},
		Trips: &TripService{
			store:         st,
			notifications: notifications,
			hub:           opts.Publisher,
			now:           opts.Clock,
			metrics:       opts.Metrics,
		},
		Notifications: notifications,
		Simulator:     newSimulator(st, cfg.Simulation, opts.Rand),
	}
}
