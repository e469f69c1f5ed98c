// internal/dashboard/handlers_records.go
package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"appmonitor/internal/records"
)

const (
	defaultMetricLimit = 100
	defaultEventLimit  = 50
	maxListLimit       = 500
)

func listLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > maxListLimit {
				return maxListLimit
			}
			return n
		}
	}
	return def
}

func (a *App) listMetrics(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	out, err := a.records.ListMetrics(r.Context(), user.CompanyID, listLimit(r, defaultMetricLimit))
	if err != nil {
		a.log.Errorw("list metrics", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if out == nil {
		out = []records.Metric{}
	}
	writeJSON(w, out, http.StatusOK)
}

func (a *App) createMetric(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	var m records.Metric
	if err := decodeJSON(r, &m); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(m.Name) == "" {
		writeErr(w, http.StatusBadRequest, "metric_name is required")
		return
	}
	m.CompanyID = user.CompanyID
	m.UserID = user.ID
	if err := a.records.InsertMetric(r.Context(), &m); err != nil {
		a.log.Errorw("insert metric", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, m, http.StatusCreated)
}

func (a *App) listEvents(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	out, err := a.records.ListEvents(r.Context(), user.CompanyID, listLimit(r, defaultEventLimit))
	if err != nil {
		a.log.Errorw("list events", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if out == nil {
		out = []records.Event{}
	}
	writeJSON(w, out, http.StatusOK)
}

func (a *App) createEvent(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	var e records.Event
	if err := decodeJSON(r, &e); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(e.Type) == "" || strings.TrimSpace(e.Message) == "" {
		writeErr(w, http.StatusBadRequest, "event_type and message are required")
		return
	}
	e.CompanyID = user.CompanyID
	if err := a.records.InsertEvent(r.Context(), &e); err != nil {
		a.log.Errorw("insert event", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, e, http.StatusCreated)
}

func (a *App) getPreferences(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	prefs, err := a.records.GetPreferences(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			writeJSON(w, records.DefaultPreferences(user.ID), http.StatusOK)
			return
		}
		a.log.Errorw("get preferences", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, prefs, http.StatusOK)
}

var validThemes = map[string]bool{"light": true, "dark": true}

// putPreferences applies a partial update. Only the known preference keys
// are accepted; anything else is rejected rather than silently written.
func (a *App) putPreferences(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	prefs, err := a.records.GetPreferences(r.Context(), user.ID)
	if errors.Is(err, records.ErrNotFound) {
		prefs, err = records.DefaultPreferences(user.ID), nil
	}
	if err != nil {
		a.log.Errorw("get preferences", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	for key, raw := range body {
		switch key {
		case "theme":
			var v string
			if json.Unmarshal(raw, &v) != nil || !validThemes[v] {
				writeErr(w, http.StatusBadRequest, "theme must be light or dark")
				return
			}
			prefs.Theme = v
		case "dashboard_layout":
			var v string
			if json.Unmarshal(raw, &v) != nil || strings.TrimSpace(v) == "" {
				writeErr(w, http.StatusBadRequest, "dashboard_layout must be a non-empty string")
				return
			}
			prefs.DashboardLayout = v
		case "notifications_enabled":
			var v bool
			if json.Unmarshal(raw, &v) != nil {
				writeErr(w, http.StatusBadRequest, "notifications_enabled must be a boolean")
				return
			}
			prefs.NotificationsEnabled = v
		case "refresh_interval":
			var v int
			if json.Unmarshal(raw, &v) != nil || v < 5 || v > 3600 {
				writeErr(w, http.StatusBadRequest, "refresh_interval must be between 5 and 3600 seconds")
				return
			}
			prefs.RefreshInterval = v
		default:
			writeErr(w, http.StatusBadRequest, "unknown preference: "+key)
			return
		}
	}

	if err := a.records.SavePreferences(r.Context(), &prefs); err != nil {
		a.log.Errorw("save preferences", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, prefs, http.StatusOK)
}

func (a *App) listProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.catalog.Providers(), http.StatusOK)
}
