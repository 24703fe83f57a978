package services

import (
	"context"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"shuttle_tracker/internal/apperr"
	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

const minPasswordLen = 6

type UserService struct {
	store         store.Store
	notifications *NotificationService
	now           Clock
	hashCost      int
}

type RegisterInput struct {
	Name          string
	Email         string
	Password      string
	Role          models.Role
	Phone         string
	StudentID     string
	LicenseNumber string
}

// UserUpdate carries admin edits; nil means unchanged.
type UserUpdate struct {
	Name            *string
	Phone           *string
	FeeStatus       *models.FeeStatus
	AssignedRouteID *uint
	AssignedBusID   *uint
}

type UserQuery struct {
	Role   models.Role
	Status models.UserStatus
	PageRequest
}

// Profile is a user with the transport they are assigned to.
type Profile struct {
	User  *models.User  `json:"user"`
	Route *models.Route `json:"route,omitempty"`
	Bus   *models.Bus   `json:"bus,omitempty"`
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "name is required"
	}
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "a valid email is required"
	}
	if len(in.Password) < minPasswordLen {
		fields["password"] = "password must be at least 6 characters"
	}
	if !in.Role.IsValid() {
		fields["role"] = "role must be one of admin, driver, student"
	}
	if len(fields) > 0 {
		return nil, apperr.FieldValidation("Invalid registration", fields)
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, apperr.FieldValidation("Email already registered", map[string]string{"email": email})
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, errors.Wrap(err, "check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Phone:        in.Phone,
		Status:       models.DefaultStatus(in.Role),
	}
	switch in.Role {
	case models.RoleStudent:
		u.FeeStatus = models.FeePending
		if id := strings.TrimSpace(in.StudentID); id != "" {
			u.StudentID = &id
		}
	case models.RoleDriver:
		u.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
	}
	if u.Status == models.StatusActive {
		u.Activate(s.now())
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Validation("Email or student ID already registered")
		}
		return nil, errors.Wrap(err, "create user")
	}
	logrus.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("User registered")
	return u, nil
}

// Authenticate checks credentials. Suspended accounts cannot sign in.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Unauthenticated("Invalid email or password")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthenticated("Invalid email or password")
	}
	if u.Status == models.StatusSuspended {
		return nil, apperr.Forbidden("Account is suspended")
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	return u, nil
}

// Profile resolves the user's assigned route and bus. Dangling references are left out.
func (s *UserService) Profile(ctx context.Context, id uint) (*Profile, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: u}
	if u.AssignedRouteID != nil {
		r, err := s.store.GetRoute(ctx, *u.AssignedRouteID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, errors.Wrap(err, "load assigned route")
		}
		if r != nil {
			r.SortStops()
		}
		p.Route = r
	}
	if u.AssignedBusID != nil {
		b, err := s.store.GetBus(ctx, *u.AssignedBusID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, errors.Wrap(err, "load assigned bus")
		}
		p.Bus = b
	}
	return p, nil
}

func (s *UserService) List(ctx context.Context, q UserQuery) ([]models.User, Pagination, error) {
	if q.Role != "" && !q.Role.IsValid() {
		return nil, Pagination{}, apperr.Validation("Invalid role: %s", q.Role)
	}
	p := q.normalize(defaultLimit)
	users, total, err := s.store.ListUsers(ctx, store.UserFilter{Role: q.Role, Status: q.Status, Page: p})
	if err != nil {
		return nil, Pagination{}, errors.Wrap(err, "list users")
	}
	return users, newPagination(p, total), nil
}

// Approve activates the account and greets the user with a system notification.
func (s *UserService) Approve(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActive := u.Status == models.StatusActive
	u.Activate(s.now())
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	if wasActive {
		return u, nil
	}

	receiver := u.ID
	err = s.notifications.create(ctx, &models.Notification{
		Title:        "Account approved",
		Message:      "Your account has been approved. Welcome aboard!",
		Type:         models.NotifySuccess,
		SenderRole:   models.SenderSystem,
		ReceiverRole: models.ReceiverRole(u.Role),
		ReceiverID:   &receiver,
	}, TargetIndividual)
	if err != nil {
		logrus.WithError(err).WithField("user_id", u.ID).Warn("Failed to notify approved user")
	}
	return u, nil
}

func (s *UserService) Reject(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Status = models.StatusSuspended
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	return u, nil
}

func (s *UserService) Update(ctx context.Context, id uint, in UserUpdate) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.FieldValidation("Invalid user", map[string]string{"name": "name must not be empty"})
		}
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.FeeStatus != nil {
		if !in.FeeStatus.IsValid() {
			return nil, apperr.FieldValidation("Invalid fee status", map[string]string{"feeStatus": string(*in.FeeStatus)})
		}
		u.FeeStatus = *in.FeeStatus
	}
	if in.AssignedRouteID != nil {
		if *in.AssignedRouteID == 0 {
			u.AssignedRouteID = nil
		} else {
			if _, err := s.store.GetRoute(ctx, *in.AssignedRouteID); err != nil {
				return nil, notFoundOr(err, "Route not found")
			}
			rid := *in.AssignedRouteID
			u.AssignedRouteID = &rid
		}
	}
	if in.AssignedBusID != nil {
		if *in.AssignedBusID == 0 {
			u.AssignedBusID = nil
		} else {
			if _, err := s.store.GetBus(ctx, *in.AssignedBusID); err != nil {
				return nil, notFoundOr(err, "Bus not found")
			}
			bid := *in.AssignedBusID
			u.AssignedBusID = &bid
		}
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	return u, nil
}
