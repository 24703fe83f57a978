package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/geo"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/services"
)

type RouteController struct {
	Routes *services.RouteService
}

// RouteResponse is a route as returned by the API, with its stops drawn as a
// GeoJSON LineString.
type RouteResponse struct {
	models.Route
	Geometry string `json:"geometry,omitempty"`
}

func toRouteResponse(route models.Route) RouteResponse {
	geometry, err := geo.RouteLineString(route.Stops)
	if err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Warn("toRouteResponse: could not build geometry")
	}
	return RouteResponse{Route: route, Geometry: geometry}
}

type stopInput struct {
	Name       string   `json:"name" binding:"required"`
	Lat        *float64 `json:"lat" binding:"required,gte=-90,lte=90"`
	Lng        *float64 `json:"lng" binding:"required,gte=-180,lte=180"`
	Address    string   `json:"address"`
	Sequence   int      `json:"sequence" binding:"required,min=1"`
	PickupTime string   `json:"pickupTime" binding:"required,hhmm"`
	Fee        float64  `json:"fee" binding:"gte=0"`
}

type routeInput struct {
	RouteNo              string      `json:"routeNo" binding:"required"`
	RouteName            string      `json:"routeName" binding:"required"`
	DepartureTime        string      `json:"departureTime" binding:"required,hhmm"`
	DistanceKm           *float64    `json:"distanceKm" binding:"omitempty,gte=0"`
	EstimatedDurationMin int         `json:"estimatedDurationMin" binding:"gte=0"`
	IsActive             *bool       `json:"isActive"`
	Stops                []stopInput `json:"stops" binding:"dive"`
}

func (in routeInput) toService() services.RouteInput {
	out := services.RouteInput{
		RouteNo:              in.RouteNo,
		RouteName:            in.RouteName,
		DepartureTime:        in.DepartureTime,
		DistanceKm:           in.DistanceKm,
		EstimatedDurationMin: in.EstimatedDurationMin,
		IsActive:             in.IsActive,
		Stops:                make([]services.StopInput, 0, len(in.Stops)),
	}
	for _, st := range in.Stops {
		out.Stops = append(out.Stops, services.StopInput{
			Name:       st.Name,
			Lat:        *st.Lat,
			Lng:        *st.Lng,
			Address:    st.Address,
			Sequence:   st.Sequence,
			PickupTime: st.PickupTime,
			Fee:        st.Fee,
		})
	}
	return out
}

type routeListQuery struct {
	IsActive *bool `form:"isActive"`
	Page     int   `form:"page" binding:"omitempty,min=1"`
	Limit    int   `form:"limit" binding:"omitempty,min=1"`
}

func (r *RouteController) List(c *gin.Context) {
	var q routeListQuery
	if !bindQuery(c, &q) {
		return
	}
	routes, page, err := r.Routes.ListRoutes(c.Request.Context(), services.RouteQuery{
		IsActive:    q.IsActive,
		PageRequest: services.PageRequest{Page: q.Page, Limit: q.Limit},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]RouteResponse, 0, len(routes))
	for _, route := range routes {
		out = append(out, toRouteResponse(route))
	}
	respondList(c, out, page)
}

func (r *RouteController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	route, err := r.Routes.GetRoute(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", toRouteResponse(*route))
}

func (r *RouteController) Create(c *gin.Context) {
	var input routeInput
	if !bindJSON(c, &input) {
		return
	}
	route, err := r.Routes.CreateRoute(c.Request.Context(), input.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Route created successfully", toRouteResponse(*route))
}

func (r *RouteController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input routeInput
	if !bindJSON(c, &input) {
		return
	}
	route, err := r.Routes.UpdateRoute(c.Request.Context(), id, input.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Route updated successfully", toRouteResponse(*route))
}

func (r *RouteController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := r.Routes.DeleteRoute(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Route deleted successfully", nil)
}
