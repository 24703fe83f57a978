package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"shuttle_tracker/internal/config"
	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/services"
	"shuttle_tracker/internal/store/memstore"
)

const testPassword = "secret123"

type harness struct {
	t      *testing.T
	st     *memstore.Store
	svc    *services.Services
	tokens *middleware.TokenIssuer
	hub    *hub.LocationHub
	router *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
		Simulation: config.SimulationConfig{
			AnchorLat: 12.9716, AnchorLng: 77.5946, AnchorAddress: "Main Campus",
		},
		Notifications: config.NotificationConfig{TTL: 30 * 24 * time.Hour, Window: 30 * 24 * time.Hour},
	}
	st := memstore.New()
	h := hub.NewLocationHub(nil)
	t.Cleanup(h.Close)

	svc := services.New(st, cfg, services.Options{Rand: rand.New(rand.NewPCG(1, 2)), Publisher: h})
	tokens := middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	r := SetupRouter(Deps{
		Services: svc,
		Auth:     &middleware.Auth{Tokens: tokens, Users: svc.Users},
		Hub:      h,
		Metrics:  metrics.NewCollector(),
	})
	return &harness{t: t, st: st, svc: svc, tokens: tokens, hub: h, router: r}
}

// user stores an account directly and returns it with a valid token.
func (h *harness) user(name string, role models.Role, status models.UserStatus) (*models.User, string) {
	h.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		h.t.Fatal(err)
	}
	u := &models.User{Name: name, Email: name + "@campus.test", PasswordHash: string(hash), Role: role, Status: status}
	if status == models.StatusActive {
		u.Activate(time.Now().Add(-time.Minute))
	}
	if err := h.st.CreateUser(context.Background(), u); err != nil {
		h.t.Fatalf("create user %s: %v", name, err)
	}
	token, err := h.tokens.Generate(u.ID, u.Role)
	if err != nil {
		h.t.Fatal(err)
	}
	return u, token
}

type envelope struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	Data        json.RawMessage      `json:"data"`
	Pagination  *services.Pagination `json:"pagination"`
	UnreadCount *int64               `json:"unreadCount"`
	Count       *int                 `json:"count"`
	Errors      map[string]string    `json:"errors"`
}

func (h *harness) do(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		h.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func (h *harness) mustDo(method, path, token string, body interface{}, wantCode int, dst interface{}) envelope {
	h.t.Helper()
	code, env := h.do(method, path, token, body)
	if code != wantCode {
		h.t.Fatalf("%s %s = %d (%s), want %d", method, path, code, env.Message, wantCode)
	}
	if dst != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			h.t.Fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
	return env
}

func routeBody(no string) gin.H {
	return gin.H{
		"routeNo":       no,
		"routeName":     "Route " + no,
		"departureTime": "07:15",
		"stops": []gin.H{
			{"name": "Library", "lat": 12.97, "lng": 77.59, "sequence": 1, "pickupTime": "07:30", "fee": 10},
			{"name": "Hostel", "lat": 12.98, "lng": 77.60, "sequence": 2, "pickupTime": "07:45", "fee": 15},
		},
	}
}

func TestAccessControl(t *testing.T) {
	h := newHarness(t)
	_, admin := h.user("ada", models.RoleAdmin, models.StatusActive)
	_, student := h.user("sam", models.RoleStudent, models.StatusActive)
	_, driver := h.user("dan", models.RoleDriver, models.StatusActive)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		wantCode int
	}{
		{name: "no token", method: http.MethodGet, path: "/api/buses", wantCode: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodGet, path: "/api/buses", token: "nope", wantCode: http.StatusUnauthorized},
		{name: "any role lists buses", method: http.MethodGet, path: "/api/buses", token: student, wantCode: http.StatusOK},
		{name: "student cannot create bus", method: http.MethodPost, path: "/api/buses", token: student, wantCode: http.StatusForbidden},
		{name: "student cannot list users", method: http.MethodGet, path: "/api/admin/users", token: student, wantCode: http.StatusForbidden},
		{name: "admin lists users", method: http.MethodGet, path: "/api/admin/users", token: admin, wantCode: http.StatusOK},
		{name: "student cannot start trip", method: http.MethodPost, path: "/api/tracking/start-trip", token: student, wantCode: http.StatusForbidden},
		{name: "driver without bus", method: http.MethodGet, path: "/api/tracking/my-trip", token: driver, wantCode: http.StatusNotFound},
		{name: "student cannot send", method: http.MethodPost, path: "/api/notifications", token: student, wantCode: http.StatusForbidden},
		{name: "bad id", method: http.MethodGet, path: "/api/buses/abc", token: student, wantCode: http.StatusBadRequest},
		{name: "missing bus", method: http.MethodGet, path: "/api/tracking/bus/99", token: student, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := h.do(tt.method, tt.path, tt.token, nil)
			if code != tt.wantCode {
				t.Errorf("%s %s = %d (%s), want %d", tt.method, tt.path, code, env.Message, tt.wantCode)
			}
			if env.Success != (code < 400) {
				t.Errorf("success = %v for status %d", env.Success, code)
			}
		})
	}
}

func TestRegisterLoginMe(t *testing.T) {
	h := newHarness(t)

	var reg struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	h.mustDo(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Sara", "email": "Sara@Campus.test", "password": testPassword, "role": "student", "studentId": "S-1",
	}, http.StatusCreated, &reg)
	if reg.Token == "" || reg.User.Email != "sara@campus.test" || reg.User.FeeStatus != models.FeePending {
		t.Fatalf("register = %+v", reg)
	}

	code, env := h.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Sara", "email": "sara@campus.test", "password": testPassword, "role": "student",
	})
	if code != http.StatusBadRequest {
		t.Errorf("duplicate register = %d (%s), want 400", code, env.Message)
	}

	code, env = h.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "x", "password": "1", "role": "pilot"})
	if code != http.StatusBadRequest {
		t.Fatalf("invalid register = %d, want 400", code)
	}
	for _, field := range []string{"name", "email", "password", "role"} {
		if env.Errors[field] == "" {
			t.Errorf("errors[%q] missing in %v", field, env.Errors)
		}
	}

	code, _ = h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "sara@campus.test", "password": "wrong-pass"})
	if code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", code)
	}

	var login struct {
		Token string `json:"token"`
	}
	h.mustDo(http.MethodPost, "/api/auth/login", "", gin.H{"email": "sara@campus.test", "password": testPassword}, http.StatusOK, &login)

	var profile services.Profile
	h.mustDo(http.MethodGet, "/api/auth/me", login.Token, nil, http.StatusOK, &profile)
	if profile.User == nil || profile.User.ID != reg.User.ID {
		t.Errorf("me = %+v, want user %d", profile.User, reg.User.ID)
	}
}

func TestSuspendedCannotLogin(t *testing.T) {
	h := newHarness(t)
	u, _ := h.user("sid", models.RoleDriver, models.StatusSuspended)

	code, env := h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": u.Email, "password": testPassword})
	if code != http.StatusForbidden {
		t.Errorf("login = %d (%s), want 403", code, env.Message)
	}
}

func TestRouteValidationAndGeometry(t *testing.T) {
	h := newHarness(t)
	_, admin := h.user("ada", models.RoleAdmin, models.StatusActive)

	bad := routeBody("R1")
	bad["stops"].([]gin.H)[0]["pickupTime"] = "7:30am"
	bad["departureTime"] = "25:00"
	code, env := h.do(http.MethodPost, "/api/routes", admin, bad)
	if code != http.StatusBadRequest {
		t.Fatalf("create invalid route = %d, want 400", code)
	}
	for _, field := range []string{"departureTime", "stops[0].pickupTime"} {
		if env.Errors[field] == "" {
			t.Errorf("errors[%q] missing in %v", field, env.Errors)
		}
	}

	var route struct {
		ID         uint    `json:"id"`
		DistanceKm float64 `json:"distanceKm"`
		Geometry   string  `json:"geometry"`
	}
	h.mustDo(http.MethodPost, "/api/routes", admin, routeBody("R1"), http.StatusCreated, &route)
	if !strings.Contains(route.Geometry, `"LineString"`) {
		t.Errorf("geometry = %q, want a LineString", route.Geometry)
	}
	if route.DistanceKm <= 0 {
		t.Errorf("distanceKm = %v, want an estimate from the stops", route.DistanceKm)
	}

	env = h.mustDo(http.MethodGet, "/api/routes", admin, nil, http.StatusOK, nil)
	if env.Pagination == nil || env.Pagination.Total != 1 || env.Pagination.Limit != 10 {
		t.Errorf("pagination = %+v", env.Pagination)
	}
}

func TestTripOverHTTP(t *testing.T) {
	h := newHarness(t)
	_, admin := h.user("ada", models.RoleAdmin, models.StatusActive)
	driver, driverToken := h.user("dan", models.RoleDriver, models.StatusActive)
	_, student := h.user("sam", models.RoleStudent, models.StatusActive)

	var route struct {
		ID uint `json:"id"`
	}
	h.mustDo(http.MethodPost, "/api/routes", admin, routeBody("R1"), http.StatusCreated, &route)
	var bus models.Bus
	h.mustDo(http.MethodPost, "/api/buses", admin, gin.H{
		"busNumber": "KA-01", "driverId": driver.ID, "routeId": route.ID, "capacity": 40,
	}, http.StatusCreated, &bus)

	code, env := h.do(http.MethodPut, "/api/tracking/update-location", driverToken, gin.H{"latitude": 12.9, "longitude": 77.5})
	if code != http.StatusBadRequest {
		t.Errorf("update while idle = %d (%s), want 400", code, env.Message)
	}

	h.mustDo(http.MethodPost, "/api/tracking/start-trip", driverToken, nil, http.StatusOK, nil)
	code, env = h.do(http.MethodPost, "/api/tracking/start-trip", driverToken, nil)
	if code != http.StatusBadRequest || env.Message != "Trip is already in progress" {
		t.Errorf("second start = %d %q", code, env.Message)
	}

	code, env = h.do(http.MethodPut, "/api/tracking/update-location", driverToken, gin.H{"longitude": 77.5})
	if code != http.StatusBadRequest || env.Errors["latitude"] == "" {
		t.Errorf("missing latitude = %d %v", code, env.Errors)
	}
	// 0 is a valid coordinate, not a missing one.
	h.mustDo(http.MethodPut, "/api/tracking/update-location", driverToken, gin.H{"latitude": 0, "longitude": 77.5}, http.StatusOK, nil)

	var active []services.BusLocation
	env = h.mustDo(http.MethodGet, "/api/tracking/active-buses", student, nil, http.StatusOK, &active)
	if len(active) != 1 || active[0].BusID != bus.ID || env.Count == nil || *env.Count != 1 {
		t.Fatalf("active buses = %+v", active)
	}
	if active[0].CurrentLocation.Address != services.DefaultAddress {
		t.Errorf("address = %q, want default", active[0].CurrentLocation.Address)
	}

	var notes []models.Notification
	env = h.mustDo(http.MethodGet, "/api/notifications", student, nil, http.StatusOK, &notes)
	if len(notes) != 1 || notes[0].Title != "Bus Trip Started" {
		t.Fatalf("student notifications = %+v", notes)
	}
	if env.UnreadCount == nil || *env.UnreadCount != 1 {
		t.Errorf("unreadCount = %v, want 1", env.UnreadCount)
	}

	var summary services.TripSummary
	h.mustDo(http.MethodPost, "/api/tracking/stop-trip", driverToken, nil, http.StatusOK, &summary)
	if summary.Bus == nil || summary.Bus.IsOnTrip || summary.Bus.Status != models.BusAvailable {
		t.Errorf("stop summary = %+v", summary)
	}
	code, env = h.do(http.MethodPost, "/api/tracking/stop-trip", driverToken, nil)
	if code != http.StatusBadRequest || env.Message != "No trip in progress" {
		t.Errorf("second stop = %d %q", code, env.Message)
	}
}

func TestDeleteOnTripBusRejected(t *testing.T) {
	h := newHarness(t)
	_, admin := h.user("ada", models.RoleAdmin, models.StatusActive)
	driver, driverToken := h.user("dan", models.RoleDriver, models.StatusActive)

	var route struct {
		ID uint `json:"id"`
	}
	h.mustDo(http.MethodPost, "/api/routes", admin, routeBody("R1"), http.StatusCreated, &route)
	var bus models.Bus
	h.mustDo(http.MethodPost, "/api/buses", admin, gin.H{
		"busNumber": "KA-01", "driverId": driver.ID, "routeId": route.ID, "capacity": 40,
	}, http.StatusCreated, &bus)
	h.mustDo(http.MethodPost, "/api/tracking/start-trip", driverToken, nil, http.StatusOK, nil)

	if code, _ := h.do(http.MethodDelete, "/api/buses/"+itoa(bus.ID), admin, nil); code != http.StatusBadRequest {
		t.Errorf("delete on-trip bus = %d, want 400", code)
	}
	if code, _ := h.do(http.MethodDelete, "/api/routes/"+itoa(route.ID), admin, nil); code != http.StatusBadRequest {
		t.Errorf("delete route with buses = %d, want 400", code)
	}
	code, _ := h.do(http.MethodPut, "/api/buses/"+itoa(bus.ID), admin, gin.H{"status": "on_trip"})
	if code != http.StatusBadRequest {
		t.Errorf("admin set on_trip = %d, want 400", code)
	}
}

func TestSendNotificationOverHTTP(t *testing.T) {
	h := newHarness(t)
	_, admin := h.user("ada", models.RoleAdmin, models.StatusActive)
	_, student := h.user("sam", models.RoleStudent, models.StatusActive)
	_, driver := h.user("dan", models.RoleDriver, models.StatusActive)

	code, env := h.do(http.MethodPost, "/api/notifications", admin, gin.H{})
	if code != http.StatusBadRequest {
		t.Fatalf("empty send = %d, want 400", code)
	}
	for _, field := range []string{"title", "message", "targetType"} {
		if env.Errors[field] == "" {
			t.Errorf("errors[%q] missing in %v", field, env.Errors)
		}
	}

	var sent models.Notification
	h.mustDo(http.MethodPost, "/api/notifications", admin, gin.H{
		"title": "Holiday", "message": "No buses on Friday", "targetType": "role", "targetRole": "student",
	}, http.StatusCreated, &sent)
	if sent.Type != models.NotifyInfo || sent.Priority != models.PriorityMedium {
		t.Errorf("defaults = %s/%s, want info/medium", sent.Type, sent.Priority)
	}

	var count struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	h.mustDo(http.MethodGet, "/api/notifications/unread-count", student, nil, http.StatusOK, &count)
	if count.UnreadCount != 1 {
		t.Errorf("student unread = %d, want 1", count.UnreadCount)
	}
	h.mustDo(http.MethodGet, "/api/notifications/unread-count", driver, nil, http.StatusOK, &count)
	if count.UnreadCount != 0 {
		t.Errorf("driver unread = %d, want 0", count.UnreadCount)
	}

	path := "/api/notifications/" + itoa(sent.ID)
	if code, _ := h.do(http.MethodPut, path+"/read", driver, nil); code != http.StatusForbidden {
		t.Errorf("driver mark student notice = %d, want 403", code)
	}
	h.mustDo(http.MethodPut, path+"/read", student, nil, http.StatusOK, nil)

	var stats services.NotificationStats
	h.mustDo(http.MethodGet, "/api/notifications/stats", student, nil, http.StatusOK, &stats)
	if stats.Total != 1 || stats.Unread != 0 {
		t.Errorf("stats = %+v", stats)
	}

	h.mustDo(http.MethodDelete, path, admin, nil, http.StatusOK, nil)
	if code, _ := h.do(http.MethodDelete, path, admin, nil); code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", code)
	}
}

func TestSimulateOverHTTP(t *testing.T) {
	h := newHarness(t)
	_, admin := h.user("ada", models.RoleAdmin, models.StatusActive)
	driver, _ := h.user("dan", models.RoleDriver, models.StatusActive)

	var route struct {
		ID uint `json:"id"`
	}
	h.mustDo(http.MethodPost, "/api/routes", admin, routeBody("R1"), http.StatusCreated, &route)
	h.mustDo(http.MethodPost, "/api/buses", admin, gin.H{
		"busNumber": "KA-01", "driverId": driver.ID, "routeId": route.ID, "capacity": 40,
	}, http.StatusCreated, nil)

	var locs []services.SimulatedLocation
	h.mustDo(http.MethodGet, "/api/tracking/simulate?routeId="+itoa(route.ID), admin, nil, http.StatusOK, &locs)
	if len(locs) != 1 || !locs[0].IsSimulated || locs[0].CurrentStop == nil {
		t.Fatalf("simulate = %+v", locs)
	}
	if code, _ := h.do(http.MethodGet, "/api/tracking/simulate?routeId=999", admin, nil); code != http.StatusNotFound {
		t.Errorf("unknown route = %d, want 404", code)
	}
}

func TestLocationWebSocket(t *testing.T) {
	h := newHarness(t)
	_, admin := h.user("ada", models.RoleAdmin, models.StatusActive)
	driver, driverToken := h.user("dan", models.RoleDriver, models.StatusActive)
	_, student := h.user("sam", models.RoleStudent, models.StatusActive)

	var route struct {
		ID uint `json:"id"`
	}
	h.mustDo(http.MethodPost, "/api/routes", admin, routeBody("R1"), http.StatusCreated, &route)
	h.mustDo(http.MethodPost, "/api/buses", admin, gin.H{
		"busNumber": "KA-01", "driverId": driver.ID, "routeId": route.ID, "capacity": 40,
	}, http.StatusCreated, nil)

	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/location"

	if _, resp, err := websocket.DefaultDialer.Dial(base+"?token=bad", nil); err == nil {
		t.Fatal("dial with bad token succeeded")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token response = %v", resp)
	}

	ws, _, err := websocket.DefaultDialer.Dial(base+"?token="+student+"&routeId="+itoa(route.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.hub.Subscribers(route.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.mustDo(http.MethodPost, "/api/tracking/start-trip", driverToken, nil, http.StatusOK, nil)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev hub.Event
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != hub.EventTripStarted || ev.RouteID != route.ID {
		t.Errorf("event = %+v", ev)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "shuttle_trips_started_total") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
