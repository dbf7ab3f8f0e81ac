package authz

import "github.com/vigia-iot/vigia/pkg/model"

// resourceFields lists the caller-editable fields of each resource. The
// organization reference is listed separately because it is system-assigned
// for everyone below superuser.
var resourceFields = map[Resource][]string{
	ResourceOrganization: {"name"},
	ResourceCategory:     {"name"},
	ResourceZone:         {"name"},
	ResourceDevice:       {"name", "serial", "category_id", "zone_id"},
	ResourceMeasurement:  {"device_id", "value"},
	ResourceAlert:        {"device_id", "message", "priority"},
	ResourceAccount:      {"role"},
}

// orgField names the organization-reference field of resources that carry
// one. Absent for via-device and rootless resources.
var orgField = map[Resource]string{
	ResourceCategory: "organization_id",
	ResourceZone:     "organization_id",
	ResourceDevice:   "organization_id",
	ResourceAccount:  "organization_id",
}

// MutableFields returns the set of field names the principal may write on
// the given resource. Superusers may write everything including the
// organization reference. Org admins may write everything except the
// organization reference, which is system-assigned. Verifiers and members
// may write nothing.
func MutableFields(p Principal, r Resource, instance Owned) map[string]bool {
	fields := make(map[string]bool)

	if p.IsSuperuser {
		for _, f := range resourceFields[r] {
			fields[f] = true
		}
		if f, ok := orgField[r]; ok {
			fields[f] = true
		}
		return fields
	}

	if !p.hasRole(model.RoleOrgAdmin) {
		return fields
	}
	if instance != nil && !p.sameOrg(instance) {
		return fields
	}
	if r == ResourceOrganization {
		return fields
	}
	for _, f := range resourceFields[r] {
		fields[f] = true
	}
	return fields
}
