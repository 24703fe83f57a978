package models

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDriver  Role = "driver"
	RoleStudent Role = "student"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDriver, RoleStudent:
		return true
	}
	return false
}

type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusPending   UserStatus = "pending"
	StatusSuspended UserStatus = "suspended"
)

type FeeStatus string

const (
	FeePaid          FeeStatus = "paid"
	FeePartiallyPaid FeeStatus = "partially_paid"
	FeePending       FeeStatus = "pending"
)

func (f FeeStatus) IsValid() bool {
	switch f {
	case FeePaid, FeePartiallyPaid, FeePending:
		return true
	}
	return false
}

// DefaultStatus is the status a freshly registered account starts in.
// Drivers wait for an admin to approve them.
func DefaultStatus(role Role) UserStatus {
	if role == RoleDriver {
		return StatusPending
	}
	return StatusActive
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name         string     `json:"name"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `gorm:"index;not null" json:"role"`
	Phone        string     `json:"phone"`
	Status       UserStatus `gorm:"index;not null" json:"status"`

	// Actor specific fields
	StudentID     *string   `gorm:"uniqueIndex" json:"studentId,omitempty"`
	LicenseNumber string    `json:"licenseNumber,omitempty"`
	FeeStatus     FeeStatus `json:"feeStatus,omitempty"`

	AssignedRouteID *uint      `gorm:"index" json:"assignedRoute,omitempty"`
	AssignedBusID   *uint      `json:"assignedBus,omitempty"`
	ActivatedAt     *time.Time `json:"activatedAt,omitempty"`
}

// Activate moves the user to active, stamping ActivatedAt when the user was not active before.
func (u *User) Activate(now time.Time) {
	if u.Status != StatusActive || u.ActivatedAt == nil {
		t := now
		u.ActivatedAt = &t
	}
	u.Status = StatusActive
}
