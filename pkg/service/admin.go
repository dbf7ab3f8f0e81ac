package service

import (
	"context"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
)

// Admin operations: create, update, and delete of the managed resources.
// Each write re-checks the rules against the fetched instance, and the
// organization reference is system-assigned for everyone below superuser.

// CreateOrganization creates an organization. Superuser-only.
func (s *Service) CreateOrganization(ctx context.Context, p authz.Principal, org *model.Organization) error {
	if !authz.CanCreate(p, authz.ResourceOrganization) {
		return s.deny(authz.ResourceOrganization, "create")
	}
	return s.stores.Organizations.Create(ctx, org)
}

// ListOrganizations returns organizations the principal may see: all for a
// superuser, the principal's own otherwise.
func (s *Service) ListOrganizations(ctx context.Context, p authz.Principal) ([]model.Organization, error) {
	scope := authz.RestrictRelationChoices(p, authz.ResourceOrganization)
	return s.stores.Organizations.List(ctx, scope)
}

// UpdateOrganization renames an organization. Superuser-only.
func (s *Service) UpdateOrganization(ctx context.Context, p authz.Principal, org *model.Organization) error {
	if !authz.CanModify(p, authz.ResourceOrganization, org) {
		return s.deny(authz.ResourceOrganization, "update")
	}
	return s.stores.Organizations.Update(ctx, authz.ScopeAll, org)
}

// DeleteOrganization soft-deletes an organization. Superuser-only.
func (s *Service) DeleteOrganization(ctx context.Context, p authz.Principal, id int64) error {
	if !authz.CanDelete(p, authz.ResourceOrganization, nil) {
		return s.deny(authz.ResourceOrganization, "delete")
	}
	return s.stores.Organizations.SoftDelete(ctx, authz.ScopeAll, id)
}

// assignOrg forces the organization reference for non-superuser writers.
// An org admin creates records in its own organization no matter what the
// request body says; a superuser must say which organization it means.
func assignOrg(p authz.Principal, requested int64) (int64, error) {
	if p.IsSuperuser {
		if requested == 0 {
			return 0, model.NewValidationError("organization_id", "organization is required")
		}
		return requested, nil
	}
	if p.OrganizationID == nil {
		return 0, ErrPermissionDenied
	}
	return *p.OrganizationID, nil
}

// CreateCategory creates a category in the writer's organization.
func (s *Service) CreateCategory(ctx context.Context, p authz.Principal, cat *model.Category) error {
	if !authz.CanCreate(p, authz.ResourceCategory) {
		return s.deny(authz.ResourceCategory, "create")
	}
	orgID, err := assignOrg(p, cat.OrganizationID)
	if err != nil {
		return err
	}
	cat.OrganizationID = orgID
	return s.stores.Categories.Create(ctx, cat)
}

// ListCategories returns categories visible to the principal.
func (s *Service) ListCategories(ctx context.Context, p authz.Principal) ([]model.Category, error) {
	scope := authz.ScopeFilter(p, authz.ResourceCategory)
	return s.stores.Categories.List(ctx, scope)
}

// UpdateCategory renames a category the principal may modify.
func (s *Service) UpdateCategory(ctx context.Context, p authz.Principal, cat *model.Category) error {
	scope := authz.ScopeFilter(p, authz.ResourceCategory)
	existing, err := s.stores.Categories.Get(ctx, scope, cat.ID)
	if err != nil {
		return err
	}
	if !authz.CanModify(p, authz.ResourceCategory, existing) {
		return s.deny(authz.ResourceCategory, "update")
	}
	// The organization reference is not an editable field.
	cat.OrganizationID = existing.OrganizationID
	return s.stores.Categories.Update(ctx, scope, cat)
}

// DeleteCategory soft-deletes a category the principal may delete.
func (s *Service) DeleteCategory(ctx context.Context, p authz.Principal, id int64) error {
	scope := authz.ScopeFilter(p, authz.ResourceCategory)
	existing, err := s.stores.Categories.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if !authz.CanDelete(p, authz.ResourceCategory, existing) {
		return s.deny(authz.ResourceCategory, "delete")
	}
	return s.stores.Categories.SoftDelete(ctx, scope, id)
}

// CreateZone creates a zone in the writer's organization.
func (s *Service) CreateZone(ctx context.Context, p authz.Principal, zone *model.Zone) error {
	if !authz.CanCreate(p, authz.ResourceZone) {
		return s.deny(authz.ResourceZone, "create")
	}
	orgID, err := assignOrg(p, zone.OrganizationID)
	if err != nil {
		return err
	}
	zone.OrganizationID = orgID
	return s.stores.Zones.Create(ctx, zone)
}

// ListZones returns zones visible to the principal.
func (s *Service) ListZones(ctx context.Context, p authz.Principal) ([]model.Zone, error) {
	scope := authz.ScopeFilter(p, authz.ResourceZone)
	return s.stores.Zones.List(ctx, scope)
}

// UpdateZone renames a zone the principal may modify.
func (s *Service) UpdateZone(ctx context.Context, p authz.Principal, zone *model.Zone) error {
	scope := authz.ScopeFilter(p, authz.ResourceZone)
	existing, err := s.stores.Zones.Get(ctx, scope, zone.ID)
	if err != nil {
		return err
	}
	if !authz.CanModify(p, authz.ResourceZone, existing) {
		return s.deny(authz.ResourceZone, "update")
	}
	zone.OrganizationID = existing.OrganizationID
	return s.stores.Zones.Update(ctx, scope, zone)
}

// DeleteZone soft-deletes a zone the principal may delete.
func (s *Service) DeleteZone(ctx context.Context, p authz.Principal, id int64) error {
	scope := authz.ScopeFilter(p, authz.ResourceZone)
	existing, err := s.stores.Zones.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if !authz.CanDelete(p, authz.ResourceZone, existing) {
		return s.deny(authz.ResourceZone, "delete")
	}
	return s.stores.Zones.SoftDelete(ctx, scope, id)
}

// CreateDevice creates a device in the writer's organization. The category
// and zone must belong to that same organization; the store rejects
// anything else, so a reference outside the writer's pick-list can never
// land.
func (s *Service) CreateDevice(ctx context.Context, p authz.Principal, d *model.Device) error {
	if !authz.CanCreate(p, authz.ResourceDevice) {
		return s.deny(authz.ResourceDevice, "create")
	}
	orgID, err := assignOrg(p, d.OrganizationID)
	if err != nil {
		return err
	}
	d.OrganizationID = orgID
	if err := s.stores.Devices.Create(ctx, d); err != nil {
		return err
	}
	s.InvalidateDashboard(ctx, &d.OrganizationID)
	return nil
}

// UpdateDevice rewrites a device the principal may modify.
func (s *Service) UpdateDevice(ctx context.Context, p authz.Principal, d *model.Device) error {
	scope := authz.ScopeFilter(p, authz.ResourceDevice)
	existing, err := s.stores.Devices.Get(ctx, scope, d.ID)
	if err != nil {
		return err
	}
	if !authz.CanModify(p, authz.ResourceDevice, existing) {
		return s.deny(authz.ResourceDevice, "update")
	}
	d.OrganizationID = existing.OrganizationID
	if err := s.stores.Devices.Update(ctx, scope, d); err != nil {
		return err
	}
	s.InvalidateDashboard(ctx, &existing.OrganizationID)
	return nil
}

// DeleteDevice soft-deletes a device the principal may delete.
func (s *Service) DeleteDevice(ctx context.Context, p authz.Principal, id int64) error {
	scope := authz.ScopeFilter(p, authz.ResourceDevice)
	existing, err := s.stores.Devices.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if !authz.CanDelete(p, authz.ResourceDevice, existing) {
		return s.deny(authz.ResourceDevice, "delete")
	}
	if err := s.stores.Devices.SoftDelete(ctx, scope, id); err != nil {
		return err
	}
	s.InvalidateDashboard(ctx, &existing.OrganizationID)
	return nil
}

// RelationChoices lists the valid foreign-key targets for device forms:
// the categories and zones the principal may reference.
type RelationChoices struct {
	Organizations []model.Organization `json:"organizations"`
	Categories    []model.Category     `json:"categories"`
	Zones         []model.Zone         `json:"zones"`
}

// DeviceRelationChoices returns the pick-lists for creating or editing a
// device. For an org admin each list holds only its own organization's
// rows; the organization list is a singleton.
func (s *Service) DeviceRelationChoices(ctx context.Context, p authz.Principal) (*RelationChoices, error) {
	if !authz.CanCreate(p, authz.ResourceDevice) {
		return nil, s.deny(authz.ResourceDevice, "create")
	}

	orgs, err := s.stores.Organizations.List(ctx, authz.RestrictRelationChoices(p, authz.ResourceOrganization))
	if err != nil {
		return nil, err
	}
	cats, err := s.stores.Categories.List(ctx, authz.RestrictRelationChoices(p, authz.ResourceCategory))
	if err != nil {
		return nil, err
	}
	zones, err := s.stores.Zones.List(ctx, authz.RestrictRelationChoices(p, authz.ResourceZone))
	if err != nil {
		return nil, err
	}

	return &RelationChoices{Organizations: orgs, Categories: cats, Zones: zones}, nil
}
