// internal/dashboard/app.go
package dashboard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"appmonitor/internal/entrasync"
	"appmonitor/internal/inventory"
	"appmonitor/internal/records"
	"appmonitor/pkg/catalog"
	"appmonitor/pkg/companies"
)

// Config holds dashboard-api specific configuration.
type Config struct {
	SessionSigningKey string
	SessionTTL        time.Duration
	CORSOrigins       []string
	SignInWindowDays  int
}

// Authorizer answers company-management authorization questions.
type Authorizer interface {
	CanManageCompany(ctx context.Context, user companies.User, companyID string) bool
}

// Deps are the shared services the dashboard handlers need.
type Deps struct {
	Companies companies.Store
	Inventory inventory.Store
	Records   records.Store
	Catalog   *catalog.Catalog
	Sync      *entrasync.Service
	Authz     Authorizer
	Redis     *redis.Client // optional; nil falls back to in-process revocation
	Log       *zap.SugaredLogger
}

// App is the dashboard application container.
// Handlers and middleware have methods on this type.
//
// Keep it lean: shared deps and config only.
// Request-scoped work should use context.
type App struct {
	log       *zap.SugaredLogger
	cfg       Config
	companies companies.Store
	inventory inventory.Store
	records   records.Store
	catalog   *catalog.Catalog
	sync      *entrasync.Service
	authz     Authorizer
	sessions  *sessionManager
}

// New constructs App from its dependencies.
func New(cfg Config, deps Deps) *App {
	return &App{
		log:       deps.Log,
		cfg:       cfg,
		companies: deps.Companies,
		inventory: deps.Inventory,
		records:   deps.Records,
		catalog:   deps.Catalog,
		sync:      deps.Sync,
		authz:     deps.Authz,
		sessions:  newSessionManager(cfg.SessionSigningKey, cfg.SessionTTL, deps.Redis, deps.Log),
	}
}
