package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/services"
)

type BusController struct {
	Fleet *services.FleetService
}

type busInput struct {
	BusNumber string `json:"busNumber" binding:"required"`
	DriverID  uint   `json:"driverId" binding:"required"`
	RouteID   uint   `json:"routeId" binding:"required"`
	Capacity  int    `json:"capacity" binding:"required,min=1"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	Status    string `json:"status" binding:"omitempty,oneof=available maintenance out_of_service"`
}

type busUpdateInput struct {
	BusNumber *string `json:"busNumber"`
	DriverID  *uint   `json:"driverId"`
	RouteID   *uint   `json:"routeId"`
	Capacity  *int    `json:"capacity" binding:"omitempty,min=1"`
	Model     *string `json:"model"`
	Year      *int    `json:"year"`
	Status    *string `json:"status" binding:"omitempty,oneof=available maintenance out_of_service"`
}

type busListQuery struct {
	RouteID uint   `form:"routeId"`
	OnTrip  *bool  `form:"onTrip"`
	Status  string `form:"status"`
	Page    int    `form:"page" binding:"omitempty,min=1"`
	Limit   int    `form:"limit" binding:"omitempty,min=1"`
}

func (b *BusController) List(c *gin.Context) {
	var q busListQuery
	if !bindQuery(c, &q) {
		return
	}
	buses, page, err := b.Fleet.ListBuses(c.Request.Context(), services.BusQuery{
		RouteID:     q.RouteID,
		OnTrip:      q.OnTrip,
		Status:      models.BusStatus(q.Status),
		PageRequest: services.PageRequest{Page: q.Page, Limit: q.Limit},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, buses, page)
}

func (b *BusController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	bus, err := b.Fleet.GetBus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", bus)
}

func (b *BusController) Create(c *gin.Context) {
	var input busInput
	if !bindJSON(c, &input) {
		return
	}
	bus, err := b.Fleet.CreateBus(c.Request.Context(), services.BusInput{
		BusNumber: input.BusNumber,
		DriverID:  input.DriverID,
		RouteID:   input.RouteID,
		Capacity:  input.Capacity,
		Model:     input.Model,
		Year:      input.Year,
		Status:    models.BusStatus(input.Status),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Bus created successfully", bus)
}

func (b *BusController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input busUpdateInput
	if !bindJSON(c, &input) {
		return
	}

	upd := services.BusUpdate{
		BusNumber: input.BusNumber,
		DriverID:  input.DriverID,
		RouteID:   input.RouteID,
		Capacity:  input.Capacity,
		Model:     input.Model,
		Year:      input.Year,
	}
	if input.Status != nil {
		st := models.BusStatus(*input.Status)
		upd.Status = &st
	}
	bus, err := b.Fleet.UpdateBus(c.Request.Context(), id, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Bus updated successfully", bus)
}

func (b *BusController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := b.Fleet.DeleteBus(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Bus deleted successfully", nil)
}
