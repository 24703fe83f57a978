package services

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/pkg/errors"

	"shuttle_tracker/internal/config"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

const (
	anchorJitter = 0.005  // degrees, about 500m
	stopJitter   = 0.0005 // degrees, about 50m
)

// SimulatedLocation is a made-up position for a bus without a GPS feed.
// IsSimulated is always true.
type SimulatedLocation struct {
	BusID       uint         `json:"busId"`
	BusNumber   string       `json:"busNumber"`
	RouteID     uint         `json:"routeId"`
	Lat         float64      `json:"lat"`
	Lng         float64      `json:"lng"`
	Address     string       `json:"address"`
	CurrentStop *models.Stop `json:"currentStop,omitempty"`
	IsSimulated bool         `json:"isSimulated"`
}

type Simulator struct {
	store  store.Store
	anchor config.SimulationConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func newSimulator(st store.Store, anchor config.SimulationConfig, rng *rand.Rand) *Simulator {
	return &Simulator{store: st, anchor: anchor, rng: rng}
}

// jitter returns a uniform offset in [-span, span).
func (s *Simulator) jitter(span float64) float64 {
	return (s.rng.Float64()*2 - 1) * span
}

// SimulateForBus places the bus near a random stop of its route, or around
// the campus anchor when the route has no stops.
func (s *Simulator) SimulateForBus(bus models.Bus, stops []models.Stop) SimulatedLocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := SimulatedLocation{
		BusID:       bus.ID,
		BusNumber:   bus.BusNumber,
		RouteID:     bus.RouteID,
		IsSimulated: true,
	}
	if len(stops) == 0 {
		out.Lat = s.anchor.AnchorLat + s.jitter(anchorJitter)
		out.Lng = s.anchor.AnchorLng + s.jitter(anchorJitter)
		out.Address = s.anchor.AnchorAddress
		return out
	}

	stop := stops[s.rng.IntN(len(stops))]
	out.Lat = stop.Lat + s.jitter(stopJitter)
	out.Lng = stop.Lng + s.jitter(stopJitter)
	out.Address = stop.Address
	out.CurrentStop = &stop
	return out
}

// SimulateAll simulates every bus that is not out of service, optionally
// limited to one route.
func (s *Simulator) SimulateAll(ctx context.Context, routeID uint) ([]SimulatedLocation, error) {
	routes := map[uint][]models.Stop{}
	if routeID != 0 {
		r, err := s.store.GetRoute(ctx, routeID)
		if err != nil {
			return nil, notFoundOr(err, "Route not found")
		}
		r.SortStops()
		routes[r.ID] = r.Stops
	}

	buses, _, err := s.store.ListBuses(ctx, store.BusFilter{RouteID: routeID})
	if err != nil {
		return nil, errors.Wrap(err, "list buses")
	}

	out := make([]SimulatedLocation, 0, len(buses))
	for _, b := range buses {
		if b.Status == models.BusOutOfService {
			continue
		}
		stops, ok := routes[b.RouteID]
		if !ok {
			r, err := s.store.GetRoute(ctx, b.RouteID)
			switch {
			case err == nil:
				r.SortStops()
				stops = r.Stops
			case !errors.Is(err, store.ErrNotFound):
				return nil, errors.Wrap(err, "load route")
			}
			routes[b.RouteID] = stops
		}
		out = append(out, s.SimulateForBus(b, stops))
	}
	return out, nil
}
