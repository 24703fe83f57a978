package models

import (
	"sort"
	"time"

	"github.com/lib/pq"
)

// Stop is a pickup point along a route. Sequence orders stops within the route.
type Stop struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	RouteID    uint    `gorm:"index" json:"-"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Address    string  `json:"address"`
	Sequence   int     `json:"sequence"`
	PickupTime string  `json:"pickupTime"`
	Fee        float64 `json:"fee"`
}

type Route struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	RouteNo              string  `gorm:"uniqueIndex;not null" json:"routeNo"`
	RouteName            string  `gorm:"uniqueIndex;not null" json:"routeName"`
	DepartureTime        string  `json:"departureTime"`
	DistanceKm           float64 `json:"distanceKm"`
	EstimatedDurationMin int     `json:"estimatedDurationMin"`
	IsActive             bool    `json:"isActive"`

	Stops         []Stop        `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stops"`
	AssignedBuses pq.Int64Array `gorm:"type:bigint[]" json:"assignedBuses"`
}

// SortStops orders the stops by sequence.
func (r *Route) SortStops() {
	sort.SliceStable(r.Stops, func(i, j int) bool { return r.Stops[i].Sequence < r.Stops[j].Sequence })
}

func (r *Route) HasBus(busID uint) bool {
	for _, id := range r.AssignedBuses {
		if id == int64(busID) {
			return true
		}
	}
	return false
}

func (r *Route) AddBus(busID uint) {
	if !r.HasBus(busID) {
		r.AssignedBuses = append(r.AssignedBuses, int64(busID))
	}
}

func (r *Route) RemoveBus(busID uint) {
	kept := r.AssignedBuses[:0]
	for _, id := range r.AssignedBuses {
		if id != int64(busID) {
			kept = append(kept, id)
		}
	}
	r.AssignedBuses = kept
}
