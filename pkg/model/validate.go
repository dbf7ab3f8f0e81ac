package model

import (
	"fmt"
	"strings"
)

// ValidationError reports an entity invariant violation with field-level
// detail. Writes are rejected before persistence when validation fails.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError builds a field-level validation error.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// Validate checks the organization invariants.
func (o *Organization) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return NewValidationError("name", "organization name must not be empty")
	}
	return nil
}

// Validate checks the category invariants.
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", "category name must not be empty")
	}
	if c.OrganizationID == 0 {
		return NewValidationError("organization_id", "category must belong to an organization")
	}
	return nil
}

// Validate checks the zone invariants.
func (z *Zone) Validate() error {
	if strings.TrimSpace(z.Name) == "" {
		return NewValidationError("name", "zone name must not be empty")
	}
	if z.OrganizationID == 0 {
		return NewValidationError("organization_id", "zone must belong to an organization")
	}
	return nil
}

// Validate checks the device invariants that do not require a database
// lookup. The cross-organization coherence of category and zone, plus the
// (organization, name) uniqueness, are enforced by the store at write time.
func (d *Device) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return NewValidationError("name", "device name must not be empty")
	}
	if d.CategoryID == 0 {
		return NewValidationError("category_id", "device must reference a category")
	}
	if d.ZoneID == 0 {
		return NewValidationError("zone_id", "device must reference a zone")
	}
	if d.OrganizationID == 0 {
		return NewValidationError("organization_id", "device must belong to an organization")
	}
	return nil
}

// Validate checks the measurement value range.
func (m *Measurement) Validate() error {
	if m.DeviceID == 0 {
		return NewValidationError("device_id", "measurement must reference a device")
	}
	if m.Value < MinMeasurementValue || m.Value > MaxMeasurementValue {
		return NewValidationError("value", "value %g out of range [%d, %d]",
			m.Value, MinMeasurementValue, MaxMeasurementValue)
	}
	return nil
}

// Validate checks the alert invariants.
func (a *Alert) Validate() error {
	if a.DeviceID == 0 {
		return NewValidationError("device_id", "alert must reference a device")
	}
	if strings.TrimSpace(a.Message) == "" {
		return NewValidationError("message", "alert message must not be empty")
	}
	if a.Priority == "" {
		a.Priority = DefaultPriority
	}
	if !a.Priority.Valid() {
		return NewValidationError("priority", "invalid priority %q", a.Priority)
	}
	return nil
}

// Validate checks the account invariants.
func (a *Account) Validate() error {
	if a.UserID == 0 {
		return NewValidationError("user_id", "account must reference an identity")
	}
	if a.Role == "" {
		a.Role = RoleMember
	}
	if !a.Role.Valid() {
		return NewValidationError("role", "invalid role %q", a.Role)
	}
	return nil
}
