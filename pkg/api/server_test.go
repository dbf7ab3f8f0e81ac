package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vigia-iot/vigia/pkg/auth"
	"github.com/vigia-iot/vigia/pkg/observability"
	"github.com/vigia-iot/vigia/pkg/service"
	"github.com/vigia-iot/vigia/pkg/store"
)

func setupTestServer(t *testing.T) (*httptest.Server, *store.Stores) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);
		CREATE TABLE categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			organization_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP,
			UNIQUE(organization_id, name)
		);
		CREATE TABLE zones (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			organization_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP,
			UNIQUE(organization_id, name)
		);
		CREATE TABLE devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			serial TEXT UNIQUE,
			organization_id INTEGER NOT NULL,
			category_id INTEGER NOT NULL,
			zone_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP,
			UNIQUE(organization_id, name)
		);
		CREATE TABLE measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id INTEGER NOT NULL,
			value REAL NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);
		CREATE TABLE alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id INTEGER NOT NULL,
			message TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'medio',
			acknowledged INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_superuser INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_login_at TIMESTAMP
		);
		CREATE TABLE accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL UNIQUE,
			organization_id INTEGER,
			role TEXT NOT NULL DEFAULT 'member',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE TABLE sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	stores := store.NewStores(store.NewSingle(db))
	svc := service.New(stores, nil, service.Options{})
	resolver := auth.NewPrincipalResolver(stores, 0, 0)
	logger := observability.NewLogger(slog.LevelError, io.Discard)

	server := NewServer(svc, resolver, logger, nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts, stores
}

func doJSON(t *testing.T, method, url, token, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		json.Unmarshal(data, &decoded)
	}
	return resp, decoded
}

func registerAndLogin(t *testing.T, ts *httptest.Server, email, username, orgName string) string {
	t.Helper()

	body := fmt.Sprintf(
		`{"email":%q,"username":%q,"password":"long-enough-password","organization_name":%q}`,
		email, username, orgName,
	)
	resp, _ := doJSON(t, "POST", ts.URL+"/api/v1/register", "", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 from register, got %d", resp.StatusCode)
	}

	resp, decoded := doJSON(t, "POST", ts.URL+"/api/v1/login", "",
		fmt.Sprintf(`{"email":%q,"password":"long-enough-password"}`, email))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from login, got %d", resp.StatusCode)
	}
	token, _ := decoded["token"].(string)
	if token == "" {
		t.Fatal("Expected a token in the login response")
	}
	return token
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	ts, _ := setupTestServer(t)

	token := registerAndLogin(t, ts, "ana@example.com", "ana", "Acme")

	// The session works.
	resp, _ := doJSON(t, "GET", ts.URL+"/api/v1/me", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from /me, got %d", resp.StatusCode)
	}

	// Logout kills it.
	resp, _ = doJSON(t, "POST", ts.URL+"/api/v1/logout", token, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204 from logout, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "GET", ts.URL+"/api/v1/me", token, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts, _ := setupTestServer(t)

	for _, path := range []string{"/api/v1/dashboard", "/api/v1/devices", "/api/v1/alerts"} {
		resp, _ := doJSON(t, "GET", ts.URL+path, "", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without token, got %d", path, resp.StatusCode)
		}
	}

	resp, _ := doJSON(t, "GET", ts.URL+"/api/v1/dashboard", "vigia_bogustoken", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for garbage token, got %d", resp.StatusCode)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	ts, _ := setupTestServer(t)
	registerAndLogin(t, ts, "bo@example.com", "bo", "Acme")

	resp, _ := doJSON(t, "POST", ts.URL+"/api/v1/login", "",
		`{"email":"bo@example.com","password":"wrong-password"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for wrong password, got %d", resp.StatusCode)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)
	token := registerAndLogin(t, ts, "cam@example.com", "cam", "Acme")

	resp, decoded := doJSON(t, "GET", ts.URL+"/api/v1/dashboard", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if _, ok := decoded["week_alert_counts"]; !ok {
		t.Errorf("Expected week_alert_counts section, got %v", decoded)
	}

	// "all" means no filter, not a malformed id.
	resp, _ = doJSON(t, "GET", ts.URL+"/api/v1/dashboard?category=all&zone=all", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for the all sentinel, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "GET", ts.URL+"/api/v1/devices?category=all", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for the all sentinel on devices, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, "GET", ts.URL+"/api/v1/dashboard?category=abc", token, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed filter, got %d", resp.StatusCode)
	}
}

func TestMemberCannotManageOrAcknowledge(t *testing.T) {
	ts, _ := setupTestServer(t)
	token := registerAndLogin(t, ts, "dee@example.com", "dee", "Acme")

	// A freshly registered member may not create categories.
	resp, _ := doJSON(t, "POST", ts.URL+"/api/v1/admin/categories", token, `{"name":"Freezers"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for member create, got %d", resp.StatusCode)
	}

	// Nor acknowledge alerts.
	resp, _ = doJSON(t, "POST", ts.URL+"/api/v1/alerts/acknowledge", token, `{"ids":[1]}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for member acknowledge, got %d", resp.StatusCode)
	}

	// Empty selection is rejected before authorization.
	resp, _ = doJSON(t, "POST", ts.URL+"/api/v1/alerts/acknowledge", token, `{"ids":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for empty ids, got %d", resp.StatusCode)
	}
}

func TestAlertExportCSV(t *testing.T) {
	ts, _ := setupTestServer(t)
	token := registerAndLogin(t, ts, "eve@example.com", "eve", "Acme")

	req, _ := http.NewRequest("GET", ts.URL+"/api/v1/alerts/export", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Expected attachment disposition, got %q", cd)
	}

	data, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(data), "id,device,message,priority,acknowledged,created_at") {
		t.Errorf("Expected CSV header, got %q", string(data))
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	ts, _ := setupTestServer(t)
	registerAndLogin(t, ts, "flo@example.com", "flo", "Acme")

	resp, _ := doJSON(t, "POST", ts.URL+"/api/v1/register", "",
		`{"email":"flo@example.com","username":"flo2","password":"long-enough-password","organization_name":"Acme"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409 for duplicate email, got %d", resp.StatusCode)
	}
}
