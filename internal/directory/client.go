// internal/directory/client.go
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// tokenExpiryMargin is subtracted from the advertised token lifetime so a
// token is refreshed before the directory service actually rejects it.
const tokenExpiryMargin = 300 * time.Second

// signInTimeFormat renders UTC instants with microsecond precision, the
// shape the audit-log $filter expects.
const signInTimeFormat = "2006-01-02T15:04:05.000000Z"

const defaultSignInWindowDays = 7

// Credentials identify one tenant's client-credentials grant.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Options configure how clients talk to the directory service.
type Options struct {
	LoginBaseURL string // token endpoint root, e.g. https://login.microsoftonline.com
	GraphBaseURL string // API root, e.g. https://graph.microsoft.com/v1.0
	Scope        string
	Timeout      time.Duration
	Log          *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	if o.LoginBaseURL == "" {
		o.LoginBaseURL = "https://login.microsoftonline.com"
	}
	if o.GraphBaseURL == "" {
		o.GraphBaseURL = "https://graph.microsoft.com/v1.0"
	}
	if o.Scope == "" {
		o.Scope = "https://graph.microsoft.com/.default"
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	return o
}

// RemoteApplication is an application record as returned by the directory
// service. Read-only from this system's perspective.
type RemoteApplication struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	SignInAudience string `json:"signInAudience"`
	Enabled        *bool  `json:"enabled"`
}

// ConnectionResult is the structured outcome of TestConnection.
type ConnectionResult struct {
	Success    bool   `json:"success"`
	TenantName string `json:"tenant_name,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}

// Client performs authenticated reads against one tenant's directory.
//
// The access token lives only in memory on the client; keep the client
// alive as long as the tenant's credentials (see Cache) or every request
// pays a full token fetch.
//
// List operations are best effort: a transport or HTTP-status failure on
// the data fetch degrades to an empty result (logged and counted), while a
// token-acquisition failure is returned so sync triggers can tell "cannot
// authenticate" from "empty directory".
type Client struct {
	creds   Credentials
	scope   string
	authURL string
	http    *resty.Client
	log     *zap.SugaredLogger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	now      func() time.Time
}

// NewClient constructs a directory client for one credential set.
func NewClient(creds Credentials, opts Options) *Client {
	opts = opts.withDefaults()
	hc := resty.New().
		SetBaseURL(opts.GraphBaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{
		creds:   creds,
		scope:   opts.Scope,
		authURL: strings.TrimRight(opts.LoginBaseURL, "/") + "/" + creds.TenantID + "/oauth2/v2.0/token",
		http:    hc,
		log:     opts.Log,
		now:     time.Now,
	}
}

// accessToken returns the cached bearer token, fetching a new one when no
// token is held or the margin-adjusted expiry has passed.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExp) {
		return c.token, nil
	}
	tokenRequests.Inc()
	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.creds.ClientID,
			"client_secret": c.creds.ClientSecret,
			"scope":         c.scope,
		}).
		SetResult(&tr).
		Post(c.authURL)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token request: %s", resp.Status())
	}
	if tr.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}
	c.token = tr.AccessToken
	// Refresh ahead of expiry, but keep a usable window when the service
	// hands out tokens shorter than the margin itself.
	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime > 2*tokenExpiryMargin {
		lifetime -= tokenExpiryMargin
	} else {
		lifetime /= 2
	}
	c.tokenExp = c.now().Add(lifetime)
	return c.token, nil
}

// get performs an authenticated GET. ok=false means the fetch failed and
// the caller should serve an empty result; err is reserved for token
// acquisition failures.
func (c *Client) get(ctx context.Context, endpoint, path string, query map[string]string, out any) (bool, error) {
	tok, err := c.accessToken(ctx)
	if err != nil {
		return false, err
	}
	req := c.http.R().SetContext(ctx).SetAuthToken(tok).SetResult(out)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	if err != nil {
		fetchFailures.WithLabelValues(endpoint).Inc()
		c.log.Warnw("directory fetch failed", "endpoint", endpoint, "err", err)
		return false, nil
	}
	if resp.IsError() {
		fetchFailures.WithLabelValues(endpoint).Inc()
		c.log.Warnw("directory fetch failed", "endpoint", endpoint, "status", resp.StatusCode())
		return false, nil
	}
	return true, nil
}

// Applications lists the tenant's registered applications.
func (c *Client) Applications(ctx context.Context) ([]RemoteApplication, error) {
	var env struct {
		Value []RemoteApplication `json:"value"`
	}
	ok, err := c.get(ctx, "applications", "/applications", nil, &env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RemoteApplication{}, nil
	}
	return env.Value, nil
}

// Application fetches a single application; nil when unavailable.
func (c *Client) Application(ctx context.Context, appID string) (map[string]any, error) {
	var out map[string]any
	ok, err := c.get(ctx, "application", "/applications/"+appID, nil, &out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return out, nil
}

// Organization returns basic tenant information; nil when unavailable.
func (c *Client) Organization(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	ok, err := c.get(ctx, "organization", "/organization", nil, &out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return unwrapOrganization(out), nil
}

// unwrapOrganization tolerates both a bare object and the collection
// envelope the live service returns.
func unwrapOrganization(org map[string]any) map[string]any {
	if v, ok := org["value"].([]any); ok {
		if len(v) == 0 {
			return nil
		}
		if m, ok := v[0].(map[string]any); ok {
			return m
		}
	}
	return org
}

// Users lists directory users.
func (c *Client) Users(ctx context.Context) ([]map[string]any, error) {
	var env struct {
		Value []map[string]any `json:"value"`
	}
	ok, err := c.get(ctx, "users", "/users", nil, &env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []map[string]any{}, nil
	}
	return env.Value, nil
}

// SignInLogs returns raw sign-in records for the trailing window.
func (c *Client) SignInLogs(ctx context.Context, windowDays int) ([]json.RawMessage, error) {
	q := map[string]string{"$filter": c.signInWindowFilter(windowDays)}
	var env struct {
		Value []json.RawMessage `json:"value"`
	}
	ok, err := c.get(ctx, "signins", "/auditLogs/signIns", q, &env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []json.RawMessage{}, nil
	}
	return env.Value, nil
}

// ApplicationSignIns returns sign-in records for one application.
func (c *Client) ApplicationSignIns(ctx context.Context, appID string, windowDays int) ([]json.RawMessage, error) {
	q := map[string]string{"$filter": c.signInWindowFilter(windowDays) + " and appId eq " + appID}
	var env struct {
		Value []json.RawMessage `json:"value"`
	}
	ok, err := c.get(ctx, "signins", "/auditLogs/signIns", q, &env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []json.RawMessage{}, nil
	}
	return env.Value, nil
}

// DirectoryRoles lists activated directory roles.
func (c *Client) DirectoryRoles(ctx context.Context) ([]map[string]any, error) {
	var env struct {
		Value []map[string]any `json:"value"`
	}
	ok, err := c.get(ctx, "roles", "/directoryRoles", nil, &env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []map[string]any{}, nil
	}
	return env.Value, nil
}

// DirectoryRoleMembers lists the members of one directory role.
func (c *Client) DirectoryRoleMembers(ctx context.Context, roleID string) ([]map[string]any, error) {
	var env struct {
		Value []map[string]any `json:"value"`
	}
	ok, err := c.get(ctx, "role_members", "/directoryRoles/"+roleID+"/members", nil, &env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []map[string]any{}, nil
	}
	return env.Value, nil
}

// TestConnection validates the configured credentials by reading basic
// tenant information. It never returns an error value; failures are
// reported inside the result.
func (c *Client) TestConnection(ctx context.Context) ConnectionResult {
	var org map[string]any
	ok, err := c.get(ctx, "organization", "/organization", nil, &org)
	if err != nil {
		return ConnectionResult{Success: false, Error: err.Error(), Message: "Connection failed"}
	}
	if !ok {
		return ConnectionResult{Success: false, Error: "organization request failed", Message: "Connection failed"}
	}
	flat := unwrapOrganization(org)
	name, _ := flat["displayName"].(string)
	if name == "" {
		name = "Unknown"
	}
	id, _ := flat["id"].(string)
	if id == "" {
		id = c.creds.TenantID
	}
	return ConnectionResult{Success: true, TenantName: name, TenantID: id, Message: "Connection successful"}
}

func (c *Client) signInWindowFilter(windowDays int) string {
	if windowDays <= 0 {
		windowDays = defaultSignInWindowDays
	}
	end := c.now().UTC()
	start := end.Add(-time.Duration(windowDays) * 24 * time.Hour)
	return fmt.Sprintf("createdDateTime ge %s and createdDateTime le %s",
		start.Format(signInTimeFormat), end.Format(signInTimeFormat))
}
