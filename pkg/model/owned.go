package model

// ResolvedOrganizationID returns the organization's own ID. An organization
// is its own tenancy root.
func (o *Organization) ResolvedOrganizationID() *int64 {
	id := o.ID
	return &id
}

// ResolvedOrganizationID returns the owning organization.
func (c *Category) ResolvedOrganizationID() *int64 {
	id := c.OrganizationID
	return &id
}

// ResolvedOrganizationID returns the owning organization.
func (z *Zone) ResolvedOrganizationID() *int64 {
	id := z.OrganizationID
	return &id
}

// ResolvedOrganizationID returns the owning organization.
func (d *Device) ResolvedOrganizationID() *int64 {
	id := d.OrganizationID
	return &id
}

// ResolvedOrganizationID returns the account's organization, or nil when the
// account is not attached to one.
func (a *Account) ResolvedOrganizationID() *int64 {
	return a.OrganizationID
}

// OwnedMeasurement is a measurement with its organization resolved through
// the owning device.
type OwnedMeasurement struct {
	Measurement
	OrganizationID int64 `json:"organization_id"`
}

// ResolvedOrganizationID returns the device's organization.
func (m *OwnedMeasurement) ResolvedOrganizationID() *int64 {
	id := m.OrganizationID
	return &id
}

// OwnedAlert is an alert with its organization resolved through the owning
// device.
type OwnedAlert struct {
	Alert
	OrganizationID int64 `json:"organization_id"`
}

// ResolvedOrganizationID returns the device's organization.
func (a *OwnedAlert) ResolvedOrganizationID() *int64 {
	id := a.OrganizationID
	return &id
}
