package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/services"
)

// UserController serves the admin's account management endpoints.
type UserController struct {
	Users *services.UserService
}

type userListQuery struct {
	Role   string `form:"role" binding:"omitempty,oneof=admin driver student"`
	Status string `form:"status" binding:"omitempty,oneof=active pending suspended"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1"`
}

type userUpdateInput struct {
	Name            *string `json:"name"`
	Phone           *string `json:"phone"`
	FeeStatus       *string `json:"feeStatus" binding:"omitempty,oneof=paid partially_paid pending"`
	AssignedRouteID *uint   `json:"assignedRoute"`
	AssignedBusID   *uint   `json:"assignedBus"`
}

func (u *UserController) List(c *gin.Context) {
	var q userListQuery
	if !bindQuery(c, &q) {
		return
	}
	users, page, err := u.Users.List(c.Request.Context(), services.UserQuery{
		Role:        models.Role(q.Role),
		Status:      models.UserStatus(q.Status),
		PageRequest: services.PageRequest{Page: q.Page, Limit: q.Limit},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, users, page)
}

func (u *UserController) Approve(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := u.Users.Approve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "User approved", user)
}

func (u *UserController) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := u.Users.Reject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "User suspended", user)
}

func (u *UserController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input userUpdateInput
	if !bindJSON(c, &input) {
		return
	}

	upd := services.UserUpdate{
		Name:            input.Name,
		Phone:           input.Phone,
		AssignedRouteID: input.AssignedRouteID,
		AssignedBusID:   input.AssignedBusID,
	}
	if input.FeeStatus != nil {
		fs := models.FeeStatus(*input.FeeStatus)
		upd.FeeStatus = &fs
	}
	user, err := u.Users.Update(c.Request.Context(), id, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "User updated", user)
}
