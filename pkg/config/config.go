// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Postgres & Redis (both optional: empty -> in-memory dev stores)
	DatabaseURL string
	RedisURL    string

	// Session tokens issued to dashboard users
	SessionSigningKey string
	SessionTTL        time.Duration
	CORSOrigins       []string

	// Directory (Entra / Graph-style) endpoints. Overridable for tests
	// and for pointing at a mock directory.
	LoginBaseURL     string
	GraphBaseURL     string
	GraphScope       string
	GraphTimeout     time.Duration
	SignInWindowDays int

	// Optional operator-provided assets
	CatalogDir      string
	AuthzPolicyFile string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:               env("APPMON_ENV", "dev"),
		HTTPAddr:          env("APPMON_HTTP_ADDR", ":8080"),
		DatabaseURL:       env("DATABASE_URL", ""),
		RedisURL:          env("REDIS_URL", ""),
		SessionSigningKey: env("SESSION_SIGNING_KEY", ""),
		SessionTTL:        envDur("SESSION_TTL_MIN", 12*60) * time.Minute,
		CORSOrigins:       envList("CORS_ORIGINS", "http://localhost:3000"),
		LoginBaseURL:      env("ENTRA_LOGIN_BASE_URL", "https://login.microsoftonline.com"),
		GraphBaseURL:      env("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		GraphScope:        env("GRAPH_SCOPE", "https://graph.microsoft.com/.default"),
		GraphTimeout:      envDur("GRAPH_TIMEOUT_SEC", 15) * time.Second,
		SignInWindowDays:  envInt("SIGNIN_WINDOW_DAYS", 7),
		CatalogDir:        env("PROVIDER_CATALOG_DIR", ""),
		AuthzPolicyFile:   env("AUTHZ_POLICY_FILE", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; using in-memory stores for dev")
	}
	if cfg.SessionSigningKey == "" && cfg.Env != "dev" {
		log.Println("[WARN] SESSION_SIGNING_KEY not set; sessions will not survive restarts")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}

func envList(k, def string) []string {
	raw := env(k, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
