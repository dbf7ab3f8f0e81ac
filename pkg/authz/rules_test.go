package authz

import (
	"testing"

	"github.com/vigia-iot/vigia/pkg/model"
)

func principalWith(orgID int64, role model.Role) Principal {
	return Principal{UserID: 1, OrganizationID: &orgID, Role: &role}
}

func superuser() Principal {
	return Principal{UserID: 1, IsSuperuser: true}
}

func TestScopeFilter(t *testing.T) {
	admin := principalWith(7, model.RoleOrgAdmin)

	scope := ScopeFilter(admin, ResourceDevice)
	if scope.Kind != MatchOrg || scope.OrgID != 7 || scope.Resolution != OrgDirect {
		t.Errorf("Expected direct org scope for devices, got %+v", scope)
	}

	scope = ScopeFilter(admin, ResourceMeasurement)
	if scope.Kind != MatchOrg || scope.Resolution != OrgViaDevice {
		t.Errorf("Expected via-device scope for measurements, got %+v", scope)
	}

	if scope := ScopeFilter(superuser(), ResourceAlert); scope.Kind != MatchAll {
		t.Errorf("Expected MatchAll for superuser, got %+v", scope)
	}

	// No organization fails closed regardless of role.
	role := model.RoleOrgAdmin
	floating := Principal{UserID: 2, Role: &role}
	if scope := ScopeFilter(floating, ResourceDevice); scope.Kind != MatchNone {
		t.Errorf("Expected MatchNone without an organization, got %+v", scope)
	}
}

func TestCanViewCrossOrganization(t *testing.T) {
	admin := principalWith(1, model.RoleOrgAdmin)

	otherOrg := int64(2)
	foreign := &model.Device{ID: 10, OrganizationID: otherOrg}
	if CanView(admin, ResourceDevice, foreign) {
		t.Error("Expected org admin denied on another organization's device")
	}

	ownOrg := int64(1)
	own := &model.Device{ID: 11, OrganizationID: ownOrg}
	if !CanView(admin, ResourceDevice, own) {
		t.Error("Expected org admin allowed on own device")
	}

	member := principalWith(1, model.RoleMember)
	if !CanView(member, ResourceDevice, own) {
		t.Error("Expected member allowed to view own org's device")
	}

	if !CanView(superuser(), ResourceDevice, foreign) {
		t.Error("Expected superuser allowed everywhere")
	}
}

func TestCanModifyIsRoleGated(t *testing.T) {
	own := &model.Device{ID: 1, OrganizationID: 1}

	if !CanModify(principalWith(1, model.RoleOrgAdmin), ResourceDevice, own) {
		t.Error("Expected org admin allowed to modify own device")
	}
	if CanModify(principalWith(1, model.RoleVerifier), ResourceDevice, own) {
		t.Error("Expected verifier denied modify")
	}
	if CanModify(principalWith(1, model.RoleMember), ResourceDevice, own) {
		t.Error("Expected member denied modify")
	}
	if CanModify(principalWith(2, model.RoleOrgAdmin), ResourceDevice, own) {
		t.Error("Expected cross-org admin denied modify")
	}
}

func TestOrganizationIsSuperuserOnly(t *testing.T) {
	admin := principalWith(1, model.RoleOrgAdmin)

	if CanCreate(admin, ResourceOrganization) {
		t.Error("Expected org admin denied organization create")
	}
	org := &model.Organization{ID: 1}
	if CanModify(admin, ResourceOrganization, org) {
		t.Error("Expected org admin denied organization modify")
	}
	if CanDelete(admin, ResourceOrganization, org) {
		t.Error("Expected org admin denied organization delete")
	}
	if !CanCreate(superuser(), ResourceOrganization) {
		t.Error("Expected superuser allowed organization create")
	}
}

func TestAcknowledgeAction(t *testing.T) {
	cases := []struct {
		role    model.Role
		allowed bool
	}{
		{model.RoleOrgAdmin, true},
		{model.RoleVerifier, true},
		{model.RoleMember, false},
	}
	for _, tc := range cases {
		p := principalWith(1, tc.role)
		if got := CanRunAction(p, ActionAcknowledgeAlerts); got != tc.allowed {
			t.Errorf("Role %s: expected allowed=%v, got %v", tc.role, tc.allowed, got)
		}
	}

	if !CanRunAction(superuser(), ActionAcknowledgeAlerts) {
		t.Error("Expected superuser allowed")
	}

	// Unknown actions are denied below superuser.
	if CanRunAction(principalWith(1, model.RoleOrgAdmin), Action("purge_everything")) {
		t.Error("Expected unknown action denied")
	}
}

func TestMutableFieldsOrgReference(t *testing.T) {
	ownOrg := int64(1)
	device := &model.Device{ID: 1, OrganizationID: ownOrg}

	fields := MutableFields(principalWith(1, model.RoleOrgAdmin), ResourceDevice, device)
	if !fields["name"] || !fields["category_id"] {
		t.Errorf("Expected org admin able to edit device fields, got %v", fields)
	}
	if fields["organization_id"] {
		t.Error("Expected organization reference system-assigned for org admin")
	}

	fields = MutableFields(superuser(), ResourceDevice, device)
	if !fields["organization_id"] {
		t.Error("Expected superuser able to reassign organization")
	}

	if len(MutableFields(principalWith(1, model.RoleVerifier), ResourceDevice, device)) != 0 {
		t.Error("Expected verifier to have no mutable fields")
	}
	if len(MutableFields(principalWith(2, model.RoleOrgAdmin), ResourceDevice, device)) != 0 {
		t.Error("Expected cross-org admin to have no mutable fields")
	}
}

func TestRestrictRelationChoices(t *testing.T) {
	admin := principalWith(5, model.RoleOrgAdmin)

	scope := RestrictRelationChoices(admin, ResourceOrganization)
	if scope.Kind != MatchOrg || scope.OrgID != 5 || scope.Resolution != OrgDirect {
		t.Errorf("Expected singleton org scope, got %+v", scope)
	}

	scope = RestrictRelationChoices(admin, ResourceCategory)
	if scope.Kind != MatchOrg || scope.OrgID != 5 {
		t.Errorf("Expected own-org category choices, got %+v", scope)
	}

	if scope := RestrictRelationChoices(superuser(), ResourceOrganization); scope.Kind != MatchAll {
		t.Errorf("Expected unrestricted choices for superuser, got %+v", scope)
	}
}

func TestResolutionTableComplete(t *testing.T) {
	if err := ValidateResolutionTable(); err != nil {
		t.Fatalf("Resolution table incomplete: %v", err)
	}
	for _, r := range Resources() {
		// Every resource resolves to something deliberate, even OrgNone.
		_ = Resolution(r)
	}
}
