package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/services"
)

// TrackingController serves trip control for drivers and live positions for everyone.
type TrackingController struct {
	Trips     *services.TripService
	Simulator *services.Simulator
}

type locationInput struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Address   string   `json:"address"`
}

type simulateQuery struct {
	RouteID uint `form:"routeId"`
}

func (t *TrackingController) StartTrip(c *gin.Context) {
	bus, err := t.Trips.StartTrip(c.Request.Context(), caller(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Trip started successfully", bus)
}

func (t *TrackingController) StopTrip(c *gin.Context) {
	summary, err := t.Trips.StopTrip(c.Request.Context(), caller(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Trip stopped successfully", summary)
}

func (t *TrackingController) UpdateLocation(c *gin.Context) {
	var input locationInput
	if !bindJSON(c, &input) {
		return
	}
	bus, err := t.Trips.UpdateLocation(c.Request.Context(), caller(c).UserID, services.LocationInput{
		Lat:     *input.Latitude,
		Lng:     *input.Longitude,
		Address: input.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Location updated successfully", gin.H{
		"busId":              bus.ID,
		"currentLocation":    bus.CurrentLocation,
		"lastLocationUpdate": bus.LastLocationUpdate,
	})
}

func (t *TrackingController) BusLocation(c *gin.Context) {
	id, ok := parseID(c, "busId")
	if !ok {
		return
	}
	loc, err := t.Trips.GetBusLocation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", loc)
}

func (t *TrackingController) ActiveBuses(c *gin.Context) {
	buses, err := t.Trips.ListActiveBuses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": buses, "count": len(buses)})
}

// Simulate returns made-up positions for buses without a GPS feed.
func (t *TrackingController) Simulate(c *gin.Context) {
	var q simulateQuery
	if !bindQuery(c, &q) {
		return
	}
	locations, err := t.Simulator.SimulateAll(c.Request.Context(), q.RouteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": locations, "count": len(locations)})
}

func (t *TrackingController) MyTrip(c *gin.Context) {
	loc, err := t.Trips.MyTrip(c.Request.Context(), caller(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", loc)
}
