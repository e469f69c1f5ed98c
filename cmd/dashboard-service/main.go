// cmd/dashboard-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appmonitor/internal/authz"
	"appmonitor/internal/dashboard"
	"appmonitor/internal/directory"
	"appmonitor/internal/entrasync"
	"appmonitor/internal/inventory"
	"appmonitor/internal/records"
	"appmonitor/pkg/catalog"
	"appmonitor/pkg/companies"
	"appmonitor/pkg/config"
	"appmonitor/pkg/db"
	"appmonitor/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var (
		companyStore   companies.Store
		inventoryStore inventory.Store
		recordStore    records.Store
	)
	if pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := companies.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("companies schema", "err", err)
		}
		if err := inventory.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("inventory schema", "err", err)
		}
		if err := records.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("records schema", "err", err)
		}
		companyStore = companies.NewPostgresStore(pool, log)
		inventoryStore = inventory.NewPostgresStore(pool, log)
		recordStore = records.NewPostgresStore(pool, log)
		if err := companies.SeedFromEnv(ctx, companyStore, os.Getenv("APPMON_SEED_JSON")); err != nil {
			log.Warnw("seed", "err", err)
		}
		cancel()
	} else {
		companyStore = companies.NewMemoryStore(log)
		inventoryStore = inventory.NewMemoryStore()
		recordStore = records.NewMemoryStore()
	}

	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		log.Fatalw("catalog", "err", err)
	}
	az, err := authz.New(cfg.AuthzPolicyFile, log)
	if err != nil {
		log.Fatalw("authz policy", "err", err)
	}

	clients := directory.NewCache(directory.Options{
		LoginBaseURL: cfg.LoginBaseURL,
		GraphBaseURL: cfg.GraphBaseURL,
		Scope:        cfg.GraphScope,
		Timeout:      cfg.GraphTimeout,
		Log:          log,
	})
	syncSvc := entrasync.New(companyStore, inventoryStore, clients, az, log)

	app := dashboard.New(dashboard.Config{
		SessionSigningKey: cfg.SessionSigningKey,
		SessionTTL:        cfg.SessionTTL,
		CORSOrigins:       cfg.CORSOrigins,
		SignInWindowDays:  cfg.SignInWindowDays,
	}, dashboard.Deps{
		Companies: companyStore,
		Inventory: inventoryStore,
		Records:   recordStore,
		Catalog:   cat,
		Sync:      syncSvc,
		Authz:     az,
		Redis:     rdb,
		Log:       log,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("dashboard-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("dashboard-service stopped")
}
