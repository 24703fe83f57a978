package models

import "time"

type BusStatus string

const (
	BusAvailable    BusStatus = "available"
	BusOnTrip       BusStatus = "on_trip"
	BusMaintenance  BusStatus = "maintenance"
	BusOutOfService BusStatus = "out_of_service"
)

func (s BusStatus) IsValid() bool {
	switch s {
	case BusAvailable, BusOnTrip, BusMaintenance, BusOutOfService:
		return true
	}
	return false
}

// Location is a point with a human readable address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type Bus struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	BusNumber string `gorm:"uniqueIndex;not null" json:"busNumber"`
	DriverID  uint   `gorm:"index;not null" json:"driverId"`
	RouteID   uint   `gorm:"index;not null" json:"routeId"`
	Capacity  int    `json:"capacity"`
	Model     string `json:"model"`
	Year      int    `json:"year"`

	CurrentLocation    Location   `gorm:"embedded;embeddedPrefix:current_" json:"currentLocation"`
	IsOnTrip           bool       `gorm:"index" json:"isOnTrip"`
	TripStartTime      *time.Time `json:"tripStartTime"`
	LastLocationUpdate *time.Time `json:"lastLocationUpdate"`
	Status             BusStatus  `gorm:"index;not null" json:"status"`
}

// TripStateConsistent reports whether IsOnTrip, Status and TripStartTime agree.
func (b Bus) TripStateConsistent() bool {
	return b.IsOnTrip == (b.Status == BusOnTrip) && (b.TripStartTime != nil) == b.IsOnTrip
}

// TripPatch is the set of fields a trip transition writes.
type TripPatch struct {
	Status        BusStatus
	IsOnTrip      bool
	TripStartTime *time.Time
}
