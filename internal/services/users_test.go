package services

import (
	"testing"
	"time"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/models"
)

func TestRegisterDefaults(t *testing.T) {
	f := newFixture(t)

	student, err := f.svc.Users.Register(f.ctx, RegisterInput{
		Name: "Sam", Email: " Sam@Campus.test ", Password: "secret1", Role: models.RoleStudent, StudentID: "S-1",
	})
	if err != nil {
		t.Fatalf("Register student: %v", err)
	}
	if student.Status != models.StatusActive || student.ActivatedAt == nil || !student.ActivatedAt.Equal(f.clock.Now()) {
		t.Errorf("student status=%s activatedAt=%v", student.Status, student.ActivatedAt)
	}
	if student.FeeStatus != models.FeePending || student.Email != "sam@campus.test" {
		t.Errorf("student fee=%s email=%s", student.FeeStatus, student.Email)
	}
	if student.PasswordHash == "secret1" || student.PasswordHash == "" {
		t.Error("password was not hashed")
	}

	driver, err := f.svc.Users.Register(f.ctx, RegisterInput{
		Name: "Dana", Email: "dana@campus.test", Password: "secret1", Role: models.RoleDriver, LicenseNumber: "DL-9",
	})
	if err != nil {
		t.Fatalf("Register driver: %v", err)
	}
	if driver.Status != models.StatusPending || driver.ActivatedAt != nil {
		t.Errorf("driver status=%s activatedAt=%v", driver.Status, driver.ActivatedAt)
	}

	admin, err := f.svc.Users.Register(f.ctx, RegisterInput{Name: "Ada", Email: "ada@campus.test", Password: "secret1", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Register admin: %v", err)
	}
	if admin.Status != models.StatusActive {
		t.Errorf("admin status=%s", admin.Status)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Users.Register(f.ctx, RegisterInput{Name: "Sam", Email: "sam@campus.test", Password: "secret1", Role: models.RoleStudent, StudentID: "S-1"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"short password", RegisterInput{Name: "A", Email: "a@campus.test", Password: "123", Role: models.RoleStudent}},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1", Role: models.RoleStudent}},
		{"bad role", RegisterInput{Name: "A", Email: "a@campus.test", Password: "secret1", Role: "parent"}},
		{"duplicate email", RegisterInput{Name: "A", Email: "SAM@campus.test", Password: "secret1", Role: models.RoleStudent}},
		{"duplicate student id", RegisterInput{Name: "A", Email: "a@campus.test", Password: "secret1", Role: models.RoleStudent, StudentID: "S-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Users.Register(f.ctx, tt.in)
			wantKind(t, err, apperr.KindValidation)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Users.Register(f.ctx, RegisterInput{Name: "Dana", Email: "dana@campus.test", Password: "secret1", Role: models.RoleDriver})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Users.Authenticate(f.ctx, "DANA@campus.test", "secret1"); err != nil {
		t.Errorf("pending driver login: %v", err)
	}
	_, err = f.svc.Users.Authenticate(f.ctx, "dana@campus.test", "wrong")
	wantKind(t, err, apperr.KindUnauthenticated)
	_, err = f.svc.Users.Authenticate(f.ctx, "nobody@campus.test", "secret1")
	wantKind(t, err, apperr.KindUnauthenticated)

	if _, err := f.svc.Users.Reject(f.ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Users.Authenticate(f.ctx, "dana@campus.test", "secret1")
	wantKind(t, err, apperr.KindForbidden)
}

func TestApproveActivatesAndNotifies(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Users.Register(f.ctx, RegisterInput{Name: "Dana", Email: "dana@campus.test", Password: "secret1", Role: models.RoleDriver})
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(time.Hour)
	approved, err := f.svc.Users.Approve(f.ctx, u.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != models.StatusActive || approved.ActivatedAt == nil || !approved.ActivatedAt.Equal(f.clock.Now()) {
		t.Fatalf("approved = %s/%v", approved.Status, approved.ActivatedAt)
	}

	list, err := f.svc.Notifications.List(f.ctx, IdentityOf(approved), NotificationQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 1 || list.Items[0].SenderRole != models.SenderSystem || list.Items[0].SenderID != nil {
		t.Fatalf("welcome notification = %+v", list.Items)
	}

	// Approving again keeps the original activation date.
	f.clock.Advance(time.Hour)
	again, err := f.svc.Users.Approve(f.ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !again.ActivatedAt.Equal(*approved.ActivatedAt) {
		t.Errorf("activatedAt moved from %v to %v", approved.ActivatedAt, again.ActivatedAt)
	}

	_, err = f.svc.Users.Approve(f.ctx, 999)
	wantKind(t, err, apperr.KindNotFound)
}

func TestUpdateUserAndProfile(t *testing.T) {
	f := newFixture(t)
	driver := f.user("dana", models.RoleDriver, models.StatusActive)
	student := f.user("sam", models.RoleStudent, models.StatusActive)
	route := f.route("R1", twoStops()...)
	bus := f.bus("KA-01", driver.ID, route.ID)

	paid := models.FeePaid
	if _, err := f.svc.Users.Update(f.ctx, student.ID, UserUpdate{
		FeeStatus: &paid, AssignedRouteID: uintPtr(route.ID), AssignedBusID: uintPtr(bus.ID),
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	p, err := f.svc.Users.Profile(f.ctx, student.ID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.User.FeeStatus != models.FeePaid || p.Route == nil || p.Route.ID != route.ID || p.Bus == nil || p.Bus.ID != bus.ID {
		t.Errorf("profile = %+v", p)
	}

	bogus := models.FeeStatus("waived")
	_, err = f.svc.Users.Update(f.ctx, student.ID, UserUpdate{FeeStatus: &bogus})
	wantKind(t, err, apperr.KindValidation)
	_, err = f.svc.Users.Update(f.ctx, student.ID, UserUpdate{AssignedRouteID: uintPtr(999)})
	wantKind(t, err, apperr.KindNotFound)

	if _, err := f.svc.Users.Update(f.ctx, student.ID, UserUpdate{AssignedRouteID: uintPtr(0)}); err != nil {
		t.Fatal(err)
	}
	p, _ = f.svc.Users.Profile(f.ctx, student.ID)
	if p.Route != nil {
		t.Errorf("route should be cleared, got %+v", p.Route)
	}
}

func TestListUsersFilters(t *testing.T) {
	f := newFixture(t)
	f.user("a", models.RoleDriver, models.StatusPending)
	f.user("b", models.RoleDriver, models.StatusActive)
	f.user("c", models.RoleStudent, models.StatusActive)

	users, p, err := f.svc.Users.List(f.ctx, UserQuery{Role: models.RoleDriver, Status: models.StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].Name != "a" || p.Total != 1 || p.Limit != 10 {
		t.Errorf("users=%+v pagination=%+v", users, p)
	}
}
