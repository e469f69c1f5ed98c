// internal/entrasync/service.go
package entrasync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"appmonitor/internal/directory"
	"appmonitor/internal/inventory"
	"appmonitor/pkg/companies"
)

var (
	// ErrNotConfigured is returned when the company has no usable
	// directory integration. Not retried; setup must be completed first.
	ErrNotConfigured = errors.New("Entra ID not configured")
	// ErrForbidden is returned when the caller lacks company-management
	// rights. Not retried.
	ErrForbidden = errors.New("insufficient permissions")
)

// Authorizer is the company-management authorization check.
type Authorizer interface {
	CanManageCompany(ctx context.Context, user companies.User, companyID string) bool
}

// Result is the structured outcome of a sync run.
type Result struct {
	Success bool   `json:"success"`
	Synced  int    `json:"synced"`
	Created int    `json:"created"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Service drives sync cycles for company directory integrations.
type Service struct {
	companies companies.Store
	inventory inventory.Store
	clients   *directory.Cache
	authz     Authorizer
	log       *zap.SugaredLogger
}

func New(cs companies.Store, inv inventory.Store, clients *directory.Cache, az Authorizer, log *zap.SugaredLogger) *Service {
	return &Service{companies: cs, inventory: inv, clients: clients, authz: az, log: log}
}

// clientFor resolves the company's integration into a cached directory
// client. ErrNotConfigured when no complete credential set exists; no
// network traffic happens here.
func (s *Service) clientFor(ctx context.Context, companyID string) (*directory.Client, error) {
	integ, err := s.companies.GetIntegration(ctx, companyID)
	if err != nil {
		if errors.Is(err, companies.ErrNoIntegration) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}
	if !integ.Configured() {
		return nil, ErrNotConfigured
	}
	return s.clients.For(directory.Credentials{
		TenantID:     integ.TenantID,
		ClientID:     integ.ClientID,
		ClientSecret: integ.ClientSecret,
	}), nil
}

// SyncApplications runs one full sync cycle for the company.
//
// Configuration and authorization violations come back as the error value
// (no network call is made); everything else is folded into the Result.
// On success the sync state moves to "active" and last-sync advances; on
// failure the state moves to "error" with the message recorded and
// last-sync untouched.
func (s *Service) SyncApplications(ctx context.Context, companyID string, actor companies.User) (Result, error) {
	if !s.authz.CanManageCompany(ctx, actor, companyID) {
		return Result{}, ErrForbidden
	}
	client, err := s.clientFor(ctx, companyID)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return Result{}, ErrNotConfigured
		}
		return s.fail(ctx, companyID, err), nil
	}

	apps, err := client.Applications(ctx)
	if err != nil {
		return s.fail(ctx, companyID, err), nil
	}

	created := 0
	for _, remote := range apps {
		if remote.ID == "" {
			continue
		}
		appType := remote.SignInAudience
		if appType == "" {
			appType = "web"
		}
		active := true
		if remote.Enabled != nil {
			active = *remote.Enabled
		}

		existing, err := s.inventory.GetByEntraID(ctx, companyID, remote.ID)
		switch {
		case errors.Is(err, inventory.ErrNotFound):
			app := inventory.Application{
				CompanyID:  companyID,
				EntraAppID: remote.ID,
				Name:       remote.DisplayName,
				AppType:    appType,
				IsActive:   active,
			}
			if err := s.inventory.Insert(ctx, &app); err != nil {
				if errors.Is(err, inventory.ErrConflict) {
					// A concurrent sync won the insert race. Retryable.
					return s.fail(ctx, companyID, fmt.Errorf("concurrent sync conflict on application %s: %w", remote.ID, err)), nil
				}
				return s.fail(ctx, companyID, err), nil
			}
			created++
		case err != nil:
			return s.fail(ctx, companyID, err), nil
		default:
			if err := s.inventory.UpdateRemoteFields(ctx, companyID, existing.EntraAppID, remote.DisplayName, appType, active); err != nil {
				return s.fail(ctx, companyID, err), nil
			}
		}
	}

	now := time.Now().UTC()
	if err := s.companies.SetSyncStatus(ctx, companyID, companies.SyncActive, &now, ""); err != nil {
		return s.fail(ctx, companyID, err), nil
	}
	syncRuns.WithLabelValues("success").Inc()
	s.log.Infow("entra sync complete", "company", companyID, "synced", len(apps), "created", created)
	return Result{
		Success: true,
		Synced:  len(apps),
		Created: created,
		Message: fmt.Sprintf("Synced %d applications from Entra ID", len(apps)),
	}, nil
}

// TestConnection validates the company's directory credentials. Same
// preconditions as SyncApplications; the connection outcome itself is
// always a structured result.
func (s *Service) TestConnection(ctx context.Context, companyID string, actor companies.User) (directory.ConnectionResult, error) {
	if !s.authz.CanManageCompany(ctx, actor, companyID) {
		return directory.ConnectionResult{}, ErrForbidden
	}
	client, err := s.clientFor(ctx, companyID)
	if err != nil {
		return directory.ConnectionResult{}, err
	}
	return client.TestConnection(ctx), nil
}

// Activity summarizes recent sign-in traffic per application and advances
// the inventory's last-activity timestamps for applications it has seen.
// Best effort: an unreachable directory yields an empty summary.
func (s *Service) Activity(ctx context.Context, companyID string, windowDays int) ([]directory.AppActivity, error) {
	client, err := s.clientFor(ctx, companyID)
	if err != nil {
		return nil, err
	}
	signIns, err := client.SignInLogs(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	activity := directory.SummarizeSignIns(signIns)
	for _, a := range activity {
		if a.LastSeen.IsZero() {
			continue
		}
		if err := s.inventory.TouchActivity(ctx, companyID, a.AppID, a.LastSeen); err != nil && !errors.Is(err, inventory.ErrNotFound) {
			s.log.Warnw("touch activity", "company", companyID, "app", a.AppID, "err", err)
		}
	}
	return activity, nil
}

func (s *Service) fail(ctx context.Context, companyID string, err error) Result {
	syncRuns.WithLabelValues("error").Inc()
	s.log.Errorw("entra sync failed", "company", companyID, "err", err)
	if serr := s.companies.SetSyncStatus(ctx, companyID, companies.SyncError, nil, err.Error()); serr != nil {
		s.log.Warnw("record sync error", "company", companyID, "err", serr)
	}
	return Result{Success: false, Error: err.Error()}
}
