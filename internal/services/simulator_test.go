package services

import (
	"math"
	"testing"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/models"
)

func within(got, center, span float64) bool {
	return math.Abs(got-center) <= span
}

func TestSimulateForBusWithoutStops(t *testing.T) {
	f := newFixture(t)
	bus := models.Bus{ID: 1, BusNumber: "KA-01", RouteID: 3}

	for i := 0; i < 200; i++ {
		loc := f.svc.Simulator.SimulateForBus(bus, nil)
		if !loc.IsSimulated {
			t.Fatal("simulated location not tagged")
		}
		if !within(loc.Lat, 12.9716, anchorJitter) || !within(loc.Lng, 77.5946, anchorJitter) {
			t.Fatalf("location %v,%v too far from anchor", loc.Lat, loc.Lng)
		}
		if loc.Address != "Main Campus" || loc.CurrentStop != nil {
			t.Fatalf("unexpected anchor location %+v", loc)
		}
	}
}

func TestSimulateForBusNearStop(t *testing.T) {
	f := newFixture(t)
	stops := []models.Stop{
		{Name: "Library", Lat: 12.97, Lng: 77.59, Address: "Library Gate", Sequence: 1},
		{Name: "Hostel", Lat: 12.98, Lng: 77.60, Address: "Hostel Block A", Sequence: 2},
	}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		loc := f.svc.Simulator.SimulateForBus(models.Bus{ID: 1}, stops)
		if !loc.IsSimulated || loc.CurrentStop == nil {
			t.Fatalf("unexpected location %+v", loc)
		}
		st := loc.CurrentStop
		if !within(loc.Lat, st.Lat, stopJitter) || !within(loc.Lng, st.Lng, stopJitter) {
			t.Fatalf("location %v,%v too far from stop %s", loc.Lat, loc.Lng, st.Name)
		}
		if loc.Address != st.Address {
			t.Fatalf("address %q, want %q", loc.Address, st.Address)
		}
		seen[st.Name] = true
	}
	if len(seen) != 2 {
		t.Errorf("stops chosen = %v, want both", seen)
	}
}

func TestSimulateAll(t *testing.T) {
	f := newFixture(t)
	d1 := f.user("d1", models.RoleDriver, models.StatusActive)
	d2 := f.user("d2", models.RoleDriver, models.StatusActive)
	d3 := f.user("d3", models.RoleDriver, models.StatusActive)
	withStops := f.route("R1", twoStops()...)
	empty := f.route("R2")

	f.bus("KA-01", d1.ID, withStops.ID)
	f.bus("KA-02", d2.ID, empty.ID)
	if _, err := f.svc.Fleet.CreateBus(f.ctx, BusInput{
		BusNumber: "KA-03", DriverID: d3.ID, RouteID: withStops.ID, Capacity: 20, Status: models.BusOutOfService,
	}); err != nil {
		t.Fatal(err)
	}

	all, err := f.svc.Simulator.SimulateAll(f.ctx, 0)
	if err != nil {
		t.Fatalf("SimulateAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("simulated %d buses, want 2 (out of service skipped)", len(all))
	}

	onRoute, err := f.svc.Simulator.SimulateAll(f.ctx, withStops.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(onRoute) != 1 || onRoute[0].BusNumber != "KA-01" || onRoute[0].CurrentStop == nil {
		t.Fatalf("route simulation = %+v", onRoute)
	}

	_, err = f.svc.Simulator.SimulateAll(f.ctx, 999)
	wantKind(t, err, apperr.KindNotFound)
}
