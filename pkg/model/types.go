package model

import (
	"fmt"
	"time"
)

// Role represents the organization-level role held by an account.
// The set is closed: no other representation is permitted.
type Role string

const (
	RoleOrgAdmin Role = "org_admin" // Full write access within the organization
	RoleVerifier Role = "verifier"  // Read-only plus declared actions
	RoleMember   Role = "member"    // Read-only
)

// ParseRole parses a role string, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOrgAdmin, RoleVerifier, RoleMember:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role: %q", s)
}

// Valid reports whether the role is part of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleOrgAdmin, RoleVerifier, RoleMember:
		return true
	}
	return false
}

// Priority represents an alert priority level.
type Priority string

const (
	PriorityGrave Priority = "grave"
	PriorityAlto  Priority = "alto"
	PriorityMedio Priority = "medio"
)

// DefaultPriority is assigned when an alert is created without one.
const DefaultPriority = PriorityMedio

// Priorities lists all priority levels, highest first.
func Priorities() []Priority {
	return []Priority{PriorityGrave, PriorityAlto, PriorityMedio}
}

// ParsePriority parses a priority string, rejecting unknown values.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityGrave, PriorityAlto, PriorityMedio:
		return Priority(s), nil
	}
	return "", fmt.Errorf("invalid priority: %q", s)
}

// Valid reports whether the priority is one of the known levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityGrave, PriorityAlto, PriorityMedio:
		return true
	}
	return false
}

// Organization is the tenancy root. Every other record traces to exactly
// one organization, directly or through its owning device.
type Organization struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Category groups devices within an organization.
type Category struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	OrganizationID int64      `json:"organization_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Zone is a physical location grouping for devices within an organization.
type Zone struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	OrganizationID int64      `json:"organization_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Device is a monitored unit. Its category and zone must belong to the
// same organization as the device itself, and (organization, name) is unique.
type Device struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Serial         string     `json:"serial,omitempty"`
	CategoryID     int64      `json:"category_id"`
	ZoneID         int64      `json:"zone_id"`
	OrganizationID int64      `json:"organization_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Measurement value bounds, enforced at write time.
const (
	MinMeasurementValue = 0
	MaxMeasurementValue = 1000
)

// Measurement is a single reading emitted by a device.
type Measurement struct {
	ID        int64      `json:"id"`
	DeviceID  int64      `json:"device_id"`
	Value     float64    `json:"value"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Alert is raised for a device. Acknowledged only ever moves false -> true;
// priority is immutable after creation.
type Alert struct {
	ID           int64     `json:"id"`
	DeviceID     int64     `json:"device_id"`
	Message      string    `json:"message"`
	Priority     Priority  `json:"priority"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account links an identity to an organization and a role. OrganizationID is
// nil for freshly provisioned accounts that no admin has attached yet.
type Account struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
	Role           Role   `json:"role"`
}

// MeasurementWithDevice is a measurement joined with its device name for
// list and dashboard views.
type MeasurementWithDevice struct {
	Measurement
	DeviceName string `json:"device_name"`
}

// AlertWithDevice is an alert joined with its device name for list views
// and CSV export.
type AlertWithDevice struct {
	Alert
	DeviceName string `json:"device_name"`
}
