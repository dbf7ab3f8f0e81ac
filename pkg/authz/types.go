package authz

import (
	"fmt"

	"github.com/vigia-iot/vigia/pkg/model"
)

// Resource identifies a record type under access control.
type Resource string

const (
	ResourceOrganization Resource = "organization"
	ResourceCategory     Resource = "category"
	ResourceZone         Resource = "zone"
	ResourceDevice       Resource = "device"
	ResourceMeasurement  Resource = "measurement"
	ResourceAlert        Resource = "alert"
	ResourceAccount      Resource = "account"
)

// Resources lists every resource type known to the authorization core.
func Resources() []Resource {
	return []Resource{
		ResourceOrganization,
		ResourceCategory,
		ResourceZone,
		ResourceDevice,
		ResourceMeasurement,
		ResourceAlert,
		ResourceAccount,
	}
}

// OrgResolution declares how a resource's owning organization is resolved.
type OrgResolution int

const (
	// OrgNone means the resource has no path to an organization. Scoping
	// fails closed: non-superusers match nothing.
	OrgNone OrgResolution = iota
	// OrgDirect means the resource carries an organization reference.
	OrgDirect
	// OrgViaDevice means the resource reaches its organization through the
	// owning device.
	OrgViaDevice
)

func (r OrgResolution) String() string {
	switch r {
	case OrgDirect:
		return "direct"
	case OrgViaDevice:
		return "via-device"
	default:
		return "none"
	}
}

// resolutionTable is the per-resource declaration of the organization
// resolution strategy. Capability is declared here, not inferred from
// attribute presence at request time. If a resource exposed both a direct
// reference and a device path, the direct reference takes precedence, so
// it is the one declared.
var resolutionTable = map[Resource]OrgResolution{
	ResourceOrganization: OrgNone, // the org IS the tenancy root; superuser-only surface
	ResourceCategory:     OrgDirect,
	ResourceZone:         OrgDirect,
	ResourceDevice:       OrgDirect,
	ResourceMeasurement:  OrgViaDevice,
	ResourceAlert:        OrgViaDevice,
	ResourceAccount:      OrgDirect,
}

// Resolution returns the declared organization resolution for a resource.
// Unknown resources resolve to OrgNone so that scoping fails closed.
func Resolution(r Resource) OrgResolution {
	res, ok := resolutionTable[r]
	if !ok {
		return OrgNone
	}
	return res
}

// ValidateResolutionTable checks the declaration table for completeness.
// Called once at startup; a missing entry is a programming error, not a
// per-request condition.
func ValidateResolutionTable() error {
	for _, r := range Resources() {
		if _, ok := resolutionTable[r]; !ok {
			return fmt.Errorf("resource %q has no organization resolution declared", r)
		}
	}
	return nil
}

// Principal is the authorization-relevant projection of the acting identity.
// A non-superuser with a nil OrganizationID or nil Role has not been
// provisioned into an organization yet and holds no access.
type Principal struct {
	UserID         int64
	IsSuperuser    bool
	OrganizationID *int64
	Role           *model.Role
}

// HasOrganization reports whether the principal is attached to an
// organization.
func (p Principal) HasOrganization() bool {
	return p.OrganizationID != nil
}

// hasRole reports whether the principal holds the given role. Always false
// when the principal has no organization: an unprovisioned role grants
// nothing.
func (p Principal) hasRole(role model.Role) bool {
	return p.HasOrganization() && p.Role != nil && *p.Role == role
}

// Owned is implemented by record instances that can resolve their owning
// organization, so capability checks can compare organizations without the
// core depending on the store.
type Owned interface {
	ResolvedOrganizationID() *int64
}

// sameOrg reports whether the instance's resolved organization equals the
// principal's. False when either side has none.
func (p Principal) sameOrg(instance Owned) bool {
	if !p.HasOrganization() || instance == nil {
		return false
	}
	org := instance.ResolvedOrganizationID()
	return org != nil && *org == *p.OrganizationID
}
