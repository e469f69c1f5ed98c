// internal/dashboard/handlers_auth.go
package dashboard

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"appmonitor/pkg/companies"
)

// userView is the serialized account shape. The password hash never
// leaves the store layer.
type userView struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	Role      string     `json:"role"`
	IsAdmin   bool       `json:"is_admin"`
	CompanyID string     `json:"company_id,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func viewUser(u companies.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		IsAdmin:   u.IsAdmin,
		CompanyID: u.CompanyID,
		LastLogin: u.LastLogin,
	}
}

func (a *App) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if body.Username == "" || body.Email == "" {
		writeErr(w, http.StatusBadRequest, "username and email are required")
		return
	}
	if len(body.Password) < 8 {
		writeErr(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	user := companies.User{
		Username:     body.Username,
		Email:        body.Email,
		PasswordHash: string(hash),
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		Role:         "user",
		IsActive:     true,
	}
	if err := a.companies.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, companies.ErrExists) {
			writeErr(w, http.StatusConflict, "username or email already taken")
			return
		}
		a.log.Errorw("create user", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	token, exp, err := a.sessions.issue(user)
	if err != nil {
		a.log.Errorw("issue session", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, map[string]any{"token": token, "expires_at": exp, "user": viewUser(user)}, http.StatusCreated)
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	user, err := a.companies.GetUserByUsername(r.Context(), strings.TrimSpace(body.Username))
	if errors.Is(err, companies.ErrNotFound) {
		// Allow login by email address as well.
		user, err = a.companies.GetUserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(body.Username)))
	}
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil {
		writeErr(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.IsActive {
		writeErr(w, http.StatusForbidden, "account disabled")
		return
	}
	if err := a.companies.RecordLogin(r.Context(), user.ID); err != nil {
		a.log.Warnw("record login", "user", user.ID, "err", err)
	}
	token, exp, err := a.sessions.issue(user)
	if err != nil {
		a.log.Errorw("issue session", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, map[string]any{"token": token, "expires_at": exp, "user": viewUser(user)}, http.StatusOK)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r.Context())
	a.sessions.revoke(r.Context(), sess.JTI, sess.Expires)
	writeJSON(w, map[string]bool{"ok": true}, http.StatusOK)
}

func (a *App) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, viewUser(currentUser(r.Context())), http.StatusOK)
}
