package services

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/config"
	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
	"shuttle_tracker/internal/store/memstore"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []hub.Event
}

func (p *recordingPublisher) Publish(ev hub.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

const day = 24 * time.Hour

func testConfig() *config.Config {
	return &config.Config{
		Simulation: config.SimulationConfig{
			AnchorLat:     12.9716,
			AnchorLng:     77.5946,
			AnchorAddress: "Main Campus",
		},
		Notifications: config.NotificationConfig{
			TTL:    30 * day,
			Window: 30 * day,
		},
	}
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	st    store.Store
	mem   *memstore.Store
	clock *fakeClock
	pub   *recordingPublisher
	svc   *Services
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore builds the services over wrap(mem) when wrap is set.
func newFixtureWithStore(t *testing.T, wrap func(*memstore.Store) store.Store) *fixture {
	t.Helper()
	mem := memstore.New()
	var st store.Store = mem
	if wrap != nil {
		st = wrap(mem)
	}
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		st:    st,
		mem:   mem,
		clock: &fakeClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)},
		pub:   &recordingPublisher{},
	}
	f.svc = New(st, testConfig(), Options{
		Clock:     f.clock.Now,
		Rand:      rand.New(rand.NewPCG(1, 2)),
		Publisher: f.pub,
	})
	f.svc.Users.hashCost = bcrypt.MinCost
	return f
}

// user stores a user directly; active users are activated at the current clock.
func (f *fixture) user(name string, role models.Role, status models.UserStatus) *models.User {
	f.t.Helper()
	u := &models.User{
		Name:   name,
		Email:  name + "@campus.test",
		Role:   role,
		Status: status,
	}
	if status == models.StatusActive {
		u.Activate(f.clock.Now())
	}
	if err := f.mem.CreateUser(f.ctx, u); err != nil {
		f.t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (f *fixture) route(no string, stops ...StopInput) *models.Route {
	f.t.Helper()
	r, err := f.svc.Routes.CreateRoute(f.ctx, RouteInput{RouteNo: no, RouteName: "Route " + no, Stops: stops})
	if err != nil {
		f.t.Fatalf("create route %s: %v", no, err)
	}
	return r
}

func (f *fixture) bus(number string, driverID, routeID uint) *models.Bus {
	f.t.Helper()
	b, err := f.svc.Fleet.CreateBus(f.ctx, BusInput{BusNumber: number, DriverID: driverID, RouteID: routeID, Capacity: 40})
	if err != nil {
		f.t.Fatalf("create bus %s: %v", number, err)
	}
	return b
}

func (f *fixture) reloadBus(id uint) *models.Bus {
	f.t.Helper()
	b, err := f.mem.GetBus(f.ctx, id)
	if err != nil {
		f.t.Fatalf("reload bus %d: %v", id, err)
	}
	return b
}

func twoStops() []StopInput {
	return []StopInput{
		{Name: "Library", Lat: 12.97, Lng: 77.59, Address: "Library Gate", Sequence: 1, PickupTime: "07:30", Fee: 10},
		{Name: "Hostel", Lat: 12.98, Lng: 77.60, Address: "Hostel Block A", Sequence: 2, PickupTime: "07:45", Fee: 15},
	}
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s: %v", kind, got, err)
	}
}

func uintPtr(v uint) *uint { return &v }
func boolPtr(v bool) *bool { return &v }
