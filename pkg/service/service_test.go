package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vigia-iot/vigia/pkg/authz"
	"github.com/vigia-iot/vigia/pkg/model"
	"github.com/vigia-iot/vigia/pkg/store"
)

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	ident, acct, err := svc.Register(ctx, RegisterInput{
		Email:            "ana@example.com",
		Username:         "ana",
		Password:         "long-enough-password",
		OrganizationName: "Acme",
	})
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	if acct.Role != model.RoleMember {
		t.Errorf("Expected member role on signup, got %s", acct.Role)
	}

	token, got, err := svc.Login(ctx, "ana@example.com", "long-enough-password")
	if err != nil {
		t.Fatalf("Failed to login: %v", err)
	}
	if got.ID != ident.ID {
		t.Errorf("Expected identity %d, got %d", ident.ID, got.ID)
	}
	if token == "" {
		t.Fatal("Expected a session token")
	}

	if _, _, err := svc.Login(ctx, "ana@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "whatever-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	// Logout twice: both succeed.
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Failed to logout: %v", err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Expected idempotent logout, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{
		Email: "x@example.com", Username: "x", Password: "short", OrganizationName: "Org",
	})
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "password" {
		t.Fatalf("Expected validation error on password, got %v", err)
	}

	_, _, err = svc.Register(ctx, RegisterInput{
		Email: "x@example.com", Username: "x", Password: "long-enough-password",
	})
	if !errors.As(err, &verr) || verr.Field != "organization_name" {
		t.Fatalf("Expected validation error on organization_name, got %v", err)
	}

	ok := RegisterInput{
		Email: "dup@example.com", Username: "dup", Password: "long-enough-password", OrganizationName: "Org",
	}
	if _, _, err := svc.Register(ctx, ok); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	if _, _, err := svc.Register(ctx, ok); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("Expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestIngestIsRoleGated(t *testing.T) {
	svc, stores := setupTestService(t)
	ctx := context.Background()

	org := seedTestOrg(t, stores, "Acme")

	for _, p := range []struct {
		name      string
		principal authz.Principal
	}{
		{"member", org.Member},
		{"verifier", org.Verifier},
	} {
		m := &model.Measurement{DeviceID: org.Device.ID, Value: 10}
		if err := svc.RecordMeasurement(ctx, p.principal, m); !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("%s: expected ErrPermissionDenied recording measurement, got %v", p.name, err)
		}
		a := &model.Alert{DeviceID: org.Device.ID, Message: "spike"}
		if err := svc.RaiseAlert(ctx, p.principal, a); !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("%s: expected ErrPermissionDenied raising alert, got %v", p.name, err)
		}
	}

	// Nothing slipped through.
	measurements, err := svc.ListMeasurements(ctx, org.Admin, store.MeasurementFilter{})
	if err != nil {
		t.Fatalf("Failed to list measurements: %v", err)
	}
	if len(measurements) != 0 {
		t.Errorf("Expected no measurements, got %d", len(measurements))
	}

	// The admin write path still works.
	if err := svc.RecordMeasurement(ctx, org.Admin, &model.Measurement{DeviceID: org.Device.ID, Value: 10}); err != nil {
		t.Fatalf("Failed to record measurement as admin: %v", err)
	}
	if err := svc.RaiseAlert(ctx, org.Admin, &model.Alert{DeviceID: org.Device.ID, Message: "spike"}); err != nil {
		t.Fatalf("Failed to raise alert as admin: %v", err)
	}
}

func TestAcknowledgeAlertsRoleGated(t *testing.T) {
	svc, stores := setupTestService(t)
	ctx := context.Background()

	org := seedTestOrg(t, stores, "Acme")

	alert := &model.Alert{DeviceID: org.Device.ID, Message: "spike"}
	if err := svc.RaiseAlert(ctx, org.Admin, alert); err != nil {
		t.Fatalf("Failed to raise alert: %v", err)
	}

	// Members cannot acknowledge.
	if _, err := svc.AcknowledgeAlerts(ctx, org.Member, []int64{alert.ID}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied for member, got %v", err)
	}

	// Verifiers can.
	n, err := svc.AcknowledgeAlerts(ctx, org.Verifier, []int64{alert.ID})
	if err != nil {
		t.Fatalf("Failed to acknowledge as verifier: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 acknowledged, got %d", n)
	}
}

func TestAcknowledgeAlertsCrossOrgSkipped(t *testing.T) {
	svc, stores := setupTestService(t)
	ctx := context.Background()

	a := seedTestOrg(t, stores, "Org A")
	b := seedTestOrg(t, stores, "Org B")

	alert := &model.Alert{DeviceID: b.Device.ID, Message: "not yours"}
	if err := svc.RaiseAlert(ctx, b.Admin, alert); err != nil {
		t.Fatalf("Failed to raise alert: %v", err)
	}

	n, err := svc.AcknowledgeAlerts(ctx, a.Verifier, []int64{alert.ID})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected foreign alert skipped, got %d acknowledged", n)
	}
}

func TestDashboardScoping(t *testing.T) {
	svc, stores := setupTestService(t)
	ctx := context.Background()

	a := seedTestOrg(t, stores, "Org A")
	b := seedTestOrg(t, stores, "Org B")

	if err := svc.RecordMeasurement(ctx, a.Admin, &model.Measurement{DeviceID: a.Device.ID, Value: 100}); err != nil {
		t.Fatalf("Failed to record measurement: %v", err)
	}
	if err := svc.RecordMeasurement(ctx, b.Admin, &model.Measurement{DeviceID: b.Device.ID, Value: 200}); err != nil {
		t.Fatalf("Failed to record measurement: %v", err)
	}
	if err := svc.RaiseAlert(ctx, a.Admin, &model.Alert{DeviceID: a.Device.ID, Message: "a", Priority: model.PriorityGrave}); err != nil {
		t.Fatalf("Failed to raise alert: %v", err)
	}

	dash, err := svc.GetDashboard(ctx, a.Member, DashboardFilter{})
	if err != nil {
		t.Fatalf("Failed to get dashboard: %v", err)
	}
	if len(dash.LatestMeasurements) != 1 || dash.LatestMeasurements[0].DeviceID != a.Device.ID {
		t.Errorf("Expected only own org measurements, got %+v", dash.LatestMeasurements)
	}
	if len(dash.RecentAlerts) != 1 {
		t.Errorf("Expected 1 recent alert, got %d", len(dash.RecentAlerts))
	}
	if dash.WeekAlertCounts[model.PriorityGrave] != 1 {
		t.Errorf("Expected 1 grave alert this week, got %d", dash.WeekAlertCounts[model.PriorityGrave])
	}
	if len(dash.DevicesByCategory) != 1 || dash.DevicesByCategory[0].ID != a.Category.ID {
		t.Errorf("Expected only own org category group, got %+v", dash.DevicesByCategory)
	}

	// The superuser sees both organizations.
	all, err := svc.GetDashboard(ctx, superuserPrincipal(), DashboardFilter{})
	if err != nil {
		t.Fatalf("Failed to get superuser dashboard: %v", err)
	}
	if len(all.LatestMeasurements) != 2 {
		t.Errorf("Expected 2 measurements for superuser, got %d", len(all.LatestMeasurements))
	}

	// A principal with no organization sees an empty dashboard.
	role := model.RoleMember
	floating := authz.Principal{UserID: 42, Role: &role}
	empty, err := svc.GetDashboard(ctx, floating, DashboardFilter{})
	if err != nil {
		t.Fatalf("Failed to get empty dashboard: %v", err)
	}
	if len(empty.LatestMeasurements) != 0 || len(empty.DevicesByCategory) != 0 {
		t.Errorf("Expected empty dashboard without an organization, got %+v", empty)
	}
}

func TestDashboardCategoryFilterNarrows(t *testing.T) {
	svc, stores := setupTestService(t)
	ctx := context.Background()

	a := seedTestOrg(t, stores, "Org A")
	other := &model.Category{Name: "Other", OrganizationID: a.Org.ID}
	if err := stores.Categories.Create(ctx, other); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}
	second := &model.Device{
		Name:           "second",
		Serial:         "serial-second",
		OrganizationID: a.Org.ID,
		CategoryID:     other.ID,
		ZoneID:         a.Zone.ID,
	}
	if err := stores.Devices.Create(ctx, second); err != nil {
		t.Fatalf("Failed to create device: %v", err)
	}
	if err := svc.RecordMeasurement(ctx, a.Admin, &model.Measurement{DeviceID: a.Device.ID, Value: 1}); err != nil {
		t.Fatalf("Failed to record measurement: %v", err)
	}
	if err := svc.RecordMeasurement(ctx, a.Admin, &model.Measurement{DeviceID: second.ID, Value: 2}); err != nil {
		t.Fatalf("Failed to record measurement: %v", err)
	}

	dash, err := svc.GetDashboard(ctx, a.Member, DashboardFilter{CategoryID: &other.ID})
	if err != nil {
		t.Fatalf("Failed to get filtered dashboard: %v", err)
	}
	if len(dash.LatestMeasurements) != 1 || dash.LatestMeasurements[0].DeviceID != second.ID {
		t.Errorf("Expected only filtered device's measurements, got %+v", dash.LatestMeasurements)
	}
}

func TestCreateCategoryAssignsOrganization(t *testing.T) {
	svc, stores := setupTestService(t)
	ctx := context.Background()

	a := seedTestOrg(t, stores, "Org A")
	b := seedTestOrg(t, stores, "Org B")

	// The request body claims another organization; the writer's own wins.
	cat := &model.Category{Name: "Claimed", OrganizationID: b.Org.ID}
	if err := svc.CreateCategory(ctx, a.Admin, cat); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}
	if cat.OrganizationID != a.Org.ID {
		t.Errorf("Expected category forced into org %d, got %d", a.Org.ID, cat.OrganizationID)
	}

	// Members cannot create at all.
	if err := svc.CreateCategory(ctx, a.Member, &model.Category{Name: "Nope"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied for member, got %v", err)
	}

	// A superuser must name the organization explicitly.
	err := svc.CreateCategory(ctx, superuserPrincipal(), &model.Category{Name: "Orphan"})
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "organization_id" {
		t.Fatalf("Expected validation error on organization_id, got %v", err)
	}
}

func TestOrganizationAdminIsSuperuserOnly(t *testing.T) {
	svc, stores := setupTestService(t)
	ctx := context.Background()

	a := seedTestOrg(t, stores, "Org A")

	if err := svc.CreateOrganization(ctx, a.Admin, &model.Organization{Name: "New"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied for org admin, got %v", err)
	}
	if err := svc.CreateOrganization(ctx, superuserPrincipal(), &model.Organization{Name: "New"}); err != nil {
		t.Fatalf("Failed to create organization as superuser: %v", err)
	}

	// Org admins list only their own organization.
	orgs, err := svc.ListOrganizations(ctx, a.Admin)
	if err != nil {
		t.Fatalf("Failed to list organizations: %v", err)
	}
	if len(orgs) != 1 || orgs[0].ID != a.Org.ID {
		t.Errorf("Expected singleton list with own org, got %+v", orgs)
	}
}

func TestGetDeviceCrossOrgIsNotFound(t *testing.T) {
	svc, stores := setupTestService(t)
	ctx := context.Background()

	a := seedTestOrg(t, stores, "Org A")
	b := seedTestOrg(t, stores, "Org B")

	if _, err := svc.GetDevice(ctx, a.Member, b.Device.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for cross-org device, got %v", err)
	}

	detail, err := svc.GetDevice(ctx, a.Member, a.Device.ID)
	if err != nil {
		t.Fatalf("Failed to get own device: %v", err)
	}
	if detail.Device.ID != a.Device.ID {
		t.Errorf("Expected device %d, got %d", a.Device.ID, detail.Device.ID)
	}
}

func TestUpdateAccountRole(t *testing.T) {
	svc, stores := setupTestService(t)
	ctx := context.Background()

	a := seedTestOrg(t, stores, "Org A")

	ident := &model.Identity{Email: "m@example.com", Username: "m", PasswordHash: "hash", IsActive: true}
	if err := stores.Identities.Create(ctx, ident); err != nil {
		t.Fatalf("Failed to create identity: %v", err)
	}
	acct, err := stores.Accounts.Provision(ctx, ident.ID)
	if err != nil {
		t.Fatalf("Failed to provision: %v", err)
	}
	if err := stores.Accounts.Attach(ctx, acct.ID, a.Org.ID, model.RoleMember); err != nil {
		t.Fatalf("Failed to attach: %v", err)
	}

	if err := svc.UpdateAccountRole(ctx, a.Admin, acct.ID, model.RoleVerifier); err != nil {
		t.Fatalf("Failed to update role as admin: %v", err)
	}

	got, err := stores.Accounts.Get(ctx, authz.ScopeAll, acct.ID)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if got.Role != model.RoleVerifier {
		t.Errorf("Expected verifier role, got %s", got.Role)
	}

	// Members cannot change roles, and attach is superuser-only.
	if err := svc.UpdateAccountRole(ctx, a.Member, acct.ID, model.RoleOrgAdmin); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied for member, got %v", err)
	}
	if err := svc.AttachAccount(ctx, a.Admin, acct.ID, a.Org.ID, model.RoleMember); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied for org admin attach, got %v", err)
	}
}
