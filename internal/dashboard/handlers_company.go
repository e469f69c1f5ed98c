// internal/dashboard/handlers_company.go
package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"appmonitor/internal/entrasync"
	"appmonitor/internal/records"
	"appmonitor/pkg/companies"
)

func (a *App) createCompany(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user.CompanyID != "" {
		writeErr(w, http.StatusConflict, "account already belongs to a company")
		return
	}
	var body struct {
		Name          string `json:"name"`
		Domain        string `json:"domain"`
		Industry      string `json:"industry"`
		EmployeeCount int    `json:"employee_count"`
		TenantID      string `json:"tenant_id"`
		ClientID      string `json:"client_id"`
		ClientSecret  string `json:"client_secret"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeErr(w, http.StatusBadRequest, "company name is required")
		return
	}
	co := companies.Company{
		Name:          strings.TrimSpace(body.Name),
		Domain:        strings.TrimSpace(strings.ToLower(body.Domain)),
		Industry:      body.Industry,
		EmployeeCount: body.EmployeeCount,
	}
	if err := a.companies.CreateCompany(r.Context(), &co); err != nil {
		if errors.Is(err, companies.ErrExists) {
			writeErr(w, http.StatusConflict, "a company with that domain already exists")
			return
		}
		a.log.Errorw("create company", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	// The founding user becomes the company admin.
	if err := a.companies.AttachUserToCompany(r.Context(), user.ID, co.ID, "admin"); err != nil {
		a.log.Errorw("attach founder", "company", co.ID, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Credentials supplied during setup configure the integration in the
	// same call.
	if body.TenantID != "" && body.ClientID != "" && body.ClientSecret != "" {
		integ := companies.Integration{
			CompanyID:    co.ID,
			TenantID:     strings.TrimSpace(body.TenantID),
			ClientID:     strings.TrimSpace(body.ClientID),
			ClientSecret: body.ClientSecret,
			SyncStatus:   companies.SyncPending,
		}
		if err := a.companies.UpsertIntegration(r.Context(), integ); err != nil {
			a.log.Errorw("setup integration", "company", co.ID, "err", err)
			writeErr(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	a.recordEvent(r, co.ID, "company_created", "info", "Company "+co.Name+" created")
	writeJSON(w, co, http.StatusCreated)
}

func (a *App) getCompany(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user.CompanyID == "" {
		writeJSON(w, map[string]any{"company": nil, "integration": nil, "setup_complete": false}, http.StatusOK)
		return
	}
	co, err := a.companies.GetCompany(r.Context(), user.CompanyID)
	if err != nil {
		writeErr(w, http.StatusNotFound, "no company configured")
		return
	}
	out := map[string]any{"company": co, "setup_complete": false, "integration": nil}
	integ, err := a.companies.GetIntegration(r.Context(), user.CompanyID)
	if err == nil {
		out["setup_complete"] = integ.Configured()
		out["integration"] = integrationView{
			TenantID:   integ.TenantID,
			ClientID:   integ.ClientID,
			Configured: integ.Configured(),
			SyncStatus: integ.SyncStatus,
			LastSync:   integ.LastSync,
			LastError:  integ.LastError,
		}
	} else if !errors.Is(err, companies.ErrNoIntegration) {
		a.log.Errorw("get integration", "company", user.CompanyID, "err", err)
	}
	writeJSON(w, out, http.StatusOK)
}

// addUser lets a company manager create an account directly attached to
// the company.
func (a *App) addUser(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r.Context())
	if !a.authz.CanManageCompany(r.Context(), actor, actor.CompanyID) {
		writeErr(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	var body struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Role      string `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Username) == "" || strings.TrimSpace(body.Email) == "" {
		writeErr(w, http.StatusBadRequest, "username and email are required")
		return
	}
	if len(body.Password) < 8 {
		writeErr(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	role := body.Role
	if role != "admin" {
		role = "user"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	u := companies.User{
		CompanyID:    actor.CompanyID,
		Username:     strings.TrimSpace(body.Username),
		Email:        strings.TrimSpace(strings.ToLower(body.Email)),
		PasswordHash: string(hash),
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		Role:         role,
		IsActive:     true,
	}
	if err := a.companies.CreateUser(r.Context(), &u); err != nil {
		if errors.Is(err, companies.ErrExists) {
			writeErr(w, http.StatusConflict, "username or email already taken")
			return
		}
		a.log.Errorw("add user", "company", actor.CompanyID, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, viewUser(u), http.StatusCreated)
}

// integrationView omits the client secret; it is write-only via
// putIntegration.
type integrationView struct {
	TenantID   string     `json:"tenant_id"`
	ClientID   string     `json:"client_id"`
	Configured bool       `json:"configured"`
	SyncStatus string     `json:"sync_status"`
	LastSync   *time.Time `json:"last_sync,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

func (a *App) getIntegration(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if !a.authz.CanManageCompany(r.Context(), user, user.CompanyID) {
		writeErr(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	integ, err := a.companies.GetIntegration(r.Context(), user.CompanyID)
	if err != nil {
		if errors.Is(err, companies.ErrNoIntegration) {
			writeJSON(w, integrationView{SyncStatus: companies.SyncPending}, http.StatusOK)
			return
		}
		a.log.Errorw("get integration", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, integrationView{
		TenantID:   integ.TenantID,
		ClientID:   integ.ClientID,
		Configured: integ.Configured(),
		SyncStatus: integ.SyncStatus,
		LastSync:   integ.LastSync,
		LastError:  integ.LastError,
	}, http.StatusOK)
}

func (a *App) putIntegration(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user.CompanyID == "" {
		writeErr(w, http.StatusBadRequest, "complete company setup first")
		return
	}
	if !a.authz.CanManageCompany(r.Context(), user, user.CompanyID) {
		writeErr(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	var body map[string]string
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	spec, ok := a.catalog.Get("entra_id")
	if !ok {
		writeErr(w, http.StatusInternalServerError, "provider not available")
		return
	}
	for _, field := range spec.Credentials {
		if strings.TrimSpace(body[field]) == "" {
			writeErr(w, http.StatusBadRequest, field+" is required")
			return
		}
	}
	integ := companies.Integration{
		CompanyID:    user.CompanyID,
		TenantID:     strings.TrimSpace(body["tenant_id"]),
		ClientID:     strings.TrimSpace(body["client_id"]),
		ClientSecret: body["client_secret"],
		SyncStatus:   companies.SyncPending,
	}
	if err := a.companies.UpsertIntegration(r.Context(), integ); err != nil {
		a.log.Errorw("upsert integration", "company", user.CompanyID, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.recordEvent(r, user.CompanyID, "integration_configured", "info", "Entra ID integration configured")
	writeJSON(w, map[string]bool{"ok": true}, http.StatusOK)
}

func (a *App) syncEntra(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	res, err := a.sync.SyncApplications(r.Context(), user.CompanyID, user)
	if err != nil {
		switch {
		case errors.Is(err, entrasync.ErrForbidden):
			writeErr(w, http.StatusForbidden, "insufficient permissions")
		case errors.Is(err, entrasync.ErrNotConfigured):
			writeJSON(w, entrasync.Result{Success: false, Error: err.Error()}, http.StatusBadRequest)
		default:
			a.log.Errorw("sync", "company", user.CompanyID, "err", err)
			writeErr(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	level, msg := "info", res.Message
	if !res.Success {
		level, msg = "error", res.Error
	}
	a.recordEvent(r, user.CompanyID, "entra_sync", level, msg)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, res, status)
}

func (a *App) testConnection(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	res, err := a.sync.TestConnection(r.Context(), user.CompanyID, user)
	if err != nil {
		switch {
		case errors.Is(err, entrasync.ErrForbidden):
			writeErr(w, http.StatusForbidden, "insufficient permissions")
		case errors.Is(err, entrasync.ErrNotConfigured):
			writeErr(w, http.StatusBadRequest, err.Error())
		default:
			a.log.Errorw("test connection", "company", user.CompanyID, "err", err)
			writeErr(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, res, http.StatusOK)
}

func (a *App) listApps(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user.CompanyID == "" {
		writeJSON(w, []any{}, http.StatusOK)
		return
	}
	apps, err := a.inventory.ListByCompany(r.Context(), user.CompanyID)
	if err != nil {
		a.log.Errorw("list apps", "company", user.CompanyID, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, apps, http.StatusOK)
}

func (a *App) appActivity(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	days := a.cfg.SignInWindowDays
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 90 {
			days = n
		}
	}
	activity, err := a.sync.Activity(r.Context(), user.CompanyID, days)
	if err != nil {
		if errors.Is(err, entrasync.ErrNotConfigured) {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		a.log.Errorw("app activity", "company", user.CompanyID, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, activity, http.StatusOK)
}

func (a *App) listUsers(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if !a.authz.CanManageCompany(r.Context(), user, user.CompanyID) {
		writeErr(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	users, err := a.companies.ListCompanyUsers(r.Context(), user.CompanyID)
	if err != nil {
		a.log.Errorw("list users", "company", user.CompanyID, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, viewUser(u))
	}
	writeJSON(w, out, http.StatusOK)
}

// recordEvent appends a system event, best effort.
func (a *App) recordEvent(r *http.Request, companyID, typ, level, msg string) {
	ev := records.Event{CompanyID: companyID, Type: typ, Level: level, Message: msg, Source: "dashboard"}
	if err := a.records.InsertEvent(r.Context(), &ev); err != nil {
		a.log.Warnw("record event", "type", typ, "err", err)
	}
}
