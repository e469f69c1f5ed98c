package dashboard_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"appmonitor/internal/authz"
	"appmonitor/internal/dashboard"
	"appmonitor/internal/directory"
	"appmonitor/internal/entrasync"
	"appmonitor/internal/inventory"
	"appmonitor/internal/records"
	"appmonitor/pkg/catalog"
	"appmonitor/pkg/companies"
)

// writeJSONBody marks the body as JSON so clients decode it instead of
// sniffing it as plain text.
func writeJSONBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	srv   *httptest.Server
	graph *httptest.Server
}

// newTestEnv wires the full stack on in-memory stores plus a fake
// directory service.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop().Sugar()

	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSONBody(w, map[string]any{"access_token": "tok-1", "expires_in": 3600})
	})
	mux.HandleFunc("/applications", func(w http.ResponseWriter, r *http.Request) {
		writeJSONBody(w, map[string]any{"value": []map[string]any{
			{"id": "a1", "displayName": "Slack", "signInAudience": "AzureADMyOrg"},
			{"id": "a2", "displayName": "Zoom"},
		}})
	})
	mux.HandleFunc("/organization", func(w http.ResponseWriter, r *http.Request) {
		writeJSONBody(w, map[string]any{"displayName": "Acme Corp", "id": "tenant-1"})
	})
	graph := httptest.NewServer(mux)
	t.Cleanup(graph.Close)

	companyStore := companies.NewMemoryStore(log)
	inventoryStore := inventory.NewMemoryStore()
	recordStore := records.NewMemoryStore()
	cat, err := catalog.Load("")
	require.NoError(t, err)
	az, err := authz.New("", log)
	require.NoError(t, err)
	clients := directory.NewCache(directory.Options{LoginBaseURL: graph.URL, GraphBaseURL: graph.URL})
	syncSvc := entrasync.New(companyStore, inventoryStore, clients, az, log)

	app := dashboard.New(dashboard.Config{
		SessionSigningKey: "test-signing-key-0123456789abcdef",
		SessionTTL:        time.Hour,
		SignInWindowDays:  7,
	}, dashboard.Deps{
		Companies: companyStore,
		Inventory: inventoryStore,
		Records:   recordStore,
		Catalog:   cat,
		Sync:      syncSvc,
		Authz:     az,
		Log:       log,
	})
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, graph: graph}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

// registerUser creates an account and returns its session token.
func (e *testEnv) registerUser(t *testing.T, username string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": username,
		"email":    username + "@acme.com",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

// setupCompany creates a company for the user and configures the
// integration against the fake directory.
func (e *testEnv) setupCompany(t *testing.T, token string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/company/setup", token, map[string]any{
		"name":   "Acme",
		"domain": "acme.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = e.do(t, http.MethodPut, "/api/company/integration", token, map[string]string{
		"tenant_id":     "tenant-1",
		"client_id":     "client-1",
		"client_secret": "super-secret-value",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestRegisterLoginAndMe(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")

	resp, body := e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(body, &me))
	require.Equal(t, "alice", me.Username)
	require.Equal(t, "user", me.Role)

	// duplicate username
	resp, _ = e.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "alice", "email": "other@acme.com", "password": "another password",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// wrong password
	resp, _ = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "alice", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// login by email
	resp, _ = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "alice@acme.com", "password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestShortPasswordRejected(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "bob", "email": "bob@acme.com", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogoutRevokesSession(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")

	resp, _ := e.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "revoked session no longer works")
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodGet, "/api/metrics", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, "/api/metrics", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCompanySetupPromotesFounder(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")
	e.setupCompany(t, token)

	_, body := e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	var me struct {
		Role      string `json:"role"`
		CompanyID string `json:"company_id"`
	}
	require.NoError(t, json.Unmarshal(body, &me))
	require.Equal(t, "admin", me.Role)
	require.NotEmpty(t, me.CompanyID)
}

func TestIntegrationSecretNeverServed(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")
	e.setupCompany(t, token)

	resp, body := e.do(t, http.MethodGet, "/api/company/integration", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, string(body), "super-secret-value")
	require.Contains(t, string(body), `"configured":true`)
}

func TestIntegrationRequiresAllCredentialFields(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")
	resp, body := e.do(t, http.MethodPost, "/api/company/setup", token, map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = e.do(t, http.MethodPut, "/api/company/integration", token, map[string]string{
		"tenant_id": "tenant-1",
		"client_id": "client-1",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "client_secret")
}

func TestSyncNotConfigured(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")
	resp, body := e.do(t, http.MethodPost, "/api/company/setup", token, map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = e.do(t, http.MethodPost, "/api/company/sync-entra", token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "Entra ID not configured")
}

func TestSyncEndToEnd(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")
	e.setupCompany(t, token)

	resp, body := e.do(t, http.MethodPost, "/api/company/sync-entra", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var res entrasync.Result
	require.NoError(t, json.Unmarshal(body, &res))
	require.True(t, res.Success)
	require.Equal(t, 2, res.Synced)

	resp, body = e.do(t, http.MethodGet, "/api/company/apps", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var apps []inventory.Application
	require.NoError(t, json.Unmarshal(body, &apps))
	require.Len(t, apps, 2)

	// sync attempts land in the event log
	resp, body = e.do(t, http.MethodGet, "/api/events", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "entra_sync")
}

func TestSyncForbiddenForNonAdmin(t *testing.T) {
	e := newTestEnv(t)
	admin := e.registerUser(t, "alice")
	e.setupCompany(t, admin)

	// second user in no company tries to sync
	outsider := e.registerUser(t, "mallory")
	resp, _ := e.do(t, http.MethodPost, "/api/company/sync-entra", outsider, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTestConnectionEndpoint(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")
	e.setupCompany(t, token)

	resp, body := e.do(t, http.MethodPost, "/api/company/test-connection", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res directory.ConnectionResult
	require.NoError(t, json.Unmarshal(body, &res))
	require.True(t, res.Success)
	require.Equal(t, "Acme Corp", res.TenantName)
}

func TestPreferencesLifecycle(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")

	resp, body := e.do(t, http.MethodGet, "/api/preferences", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var prefs records.Preferences
	require.NoError(t, json.Unmarshal(body, &prefs))
	require.Equal(t, "light", prefs.Theme)
	require.Equal(t, 30, prefs.RefreshInterval)

	resp, body = e.do(t, http.MethodPut, "/api/preferences", token, map[string]any{
		"theme": "dark", "refresh_interval": 60,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &prefs))
	require.Equal(t, "dark", prefs.Theme)
	require.Equal(t, 60, prefs.RefreshInterval)

	resp, body = e.do(t, http.MethodPut, "/api/preferences", token, map[string]any{"favorite_color": "mauve"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "unknown preference")

	resp, _ = e.do(t, http.MethodPut, "/api/preferences", token, map[string]any{"theme": "mauve"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPut, "/api/preferences", token, map[string]any{"refresh_interval": 1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsAndEvents(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")
	e.setupCompany(t, token)

	resp, _ := e.do(t, http.MethodPost, "/api/metrics", token, map[string]any{
		"metric_name": "page_load_ms", "metric_value": 412.5, "metric_unit": "ms",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/metrics", token, map[string]any{"metric_value": 1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "metric_name is required")

	resp, body := e.do(t, http.MethodGet, "/api/metrics", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var metrics []records.Metric
	require.NoError(t, json.Unmarshal(body, &metrics))
	require.Len(t, metrics, 1)
	require.Equal(t, "page_load_ms", metrics[0].Name)

	resp, _ = e.do(t, http.MethodPost, "/api/events", token, map[string]any{
		"event_type": "deploy", "message": "v2 released", "event_level": "info",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/api/events", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "v2 released")
}

func TestProvidersCatalog(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")

	resp, body := e.do(t, http.MethodGet, "/api/providers", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var specs []catalog.ProviderSpec
	require.NoError(t, json.Unmarshal(body, &specs))
	require.NotEmpty(t, specs)
	require.Equal(t, "entra_id", specs[0].ID)
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(body))
}

func TestDuplicateCompanySetup(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")
	e.setupCompany(t, token)

	resp, _ := e.do(t, http.MethodPost, "/api/company/setup", token, map[string]any{"name": "Another"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCompanyStatusView(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")

	// before setup
	_, body := e.do(t, http.MethodGet, "/api/company/", token, nil)
	var status struct {
		Company       any  `json:"company"`
		SetupComplete bool `json:"setup_complete"`
	}
	require.NoError(t, json.Unmarshal(body, &status))
	require.Nil(t, status.Company)
	require.False(t, status.SetupComplete)

	e.setupCompany(t, token)
	resp, body := e.do(t, http.MethodGet, "/api/company/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &status))
	require.NotNil(t, status.Company)
	require.True(t, status.SetupComplete)
	require.Contains(t, string(body), `"sync_status":"pending"`)
	require.NotContains(t, string(body), "super-secret-value")
}

func TestSetupWithInlineCredentials(t *testing.T) {
	e := newTestEnv(t)
	token := e.registerUser(t, "alice")

	resp, body := e.do(t, http.MethodPost, "/api/company/setup", token, map[string]any{
		"name":          "Acme",
		"domain":        "acme.com",
		"tenant_id":     "tenant-1",
		"client_id":     "client-1",
		"client_secret": "super-secret-value",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = e.do(t, http.MethodPost, "/api/company/sync-entra", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestAddCompanyUser(t *testing.T) {
	e := newTestEnv(t)
	admin := e.registerUser(t, "alice")
	e.setupCompany(t, admin)

	resp, body := e.do(t, http.MethodPost, "/api/company/users", admin, map[string]any{
		"username": "carol", "email": "carol@acme.com", "password": "a decent password",
		"role": "superuser",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		Role      string `json:"role"`
		CompanyID string `json:"company_id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.Equal(t, "user", created.Role, "unknown roles collapse to user")
	require.NotEmpty(t, created.CompanyID)

	resp, body = e.do(t, http.MethodGet, "/api/company/users", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(body, &users))
	require.Len(t, users, 2)

	// the invited user cannot invite others
	resp, _ = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "carol", "password": "a decent password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAddCompanyUserForbiddenForNonAdmin(t *testing.T) {
	e := newTestEnv(t)
	admin := e.registerUser(t, "alice")
	e.setupCompany(t, admin)

	resp, body := e.do(t, http.MethodPost, "/api/company/users", admin, map[string]any{
		"username": "carol", "email": "carol@acme.com", "password": "a decent password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "carol", "password": "a decent password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))

	resp, _ = e.do(t, http.MethodPost, "/api/company/users", out.Token, map[string]any{
		"username": "dave", "email": "dave@acme.com", "password": "a decent password",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCompanyScopedListings(t *testing.T) {
	e := newTestEnv(t)
	alice := e.registerUser(t, "alice")
	e.setupCompany(t, alice)
	_, _ = e.do(t, http.MethodPost, "/api/metrics", alice, map[string]any{"metric_name": "cpu", "metric_value": 0.7})

	bob := e.registerUser(t, "bob")
	resp, body := e.do(t, http.MethodPost, "/api/company/setup", bob, map[string]any{"name": "Globex", "domain": "globex.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	_, body = e.do(t, http.MethodGet, "/api/metrics", bob, nil)
	var metrics []records.Metric
	require.NoError(t, json.Unmarshal(body, &metrics))
	require.Empty(t, metrics, "another company's metrics are invisible")
}
