// internal/dashboard/auth.go
package dashboard

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"appmonitor/pkg/companies"
)

type ctxKey int

const (
	ctxUser ctxKey = iota
	ctxSession
)

// session carries the parsed token identity for logout.
type session struct {
	JTI     string
	Expires time.Time
}

// sessionManager issues and validates HS256 session tokens. Revoked token
// ids live in redis when available so logout holds across instances; the
// in-process map is the dev fallback.
type sessionManager struct {
	key []byte
	ttl time.Duration
	rdb *redis.Client
	log *zap.SugaredLogger

	mu      sync.Mutex
	revoked map[string]time.Time
}

func newSessionManager(signingKey string, ttl time.Duration, rdb *redis.Client, log *zap.SugaredLogger) *sessionManager {
	key := []byte(signingKey)
	if len(key) == 0 {
		// Ephemeral key: sessions die with the process.
		key = make([]byte, 32)
		_, _ = rand.Read(key)
		log.Warnw("no session signing key configured, generated ephemeral key")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &sessionManager{key: key, ttl: ttl, rdb: rdb, log: log, revoked: map[string]time.Time{}}
}

func (s *sessionManager) issue(u companies.User) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(s.ttl)
	tok, err := jwt.NewBuilder().
		Subject(u.ID).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(exp).
		Claim("username", u.Username).
		Claim("company_id", u.CompanyID).
		Claim("role", u.Role).
		Claim("is_admin", u.IsAdmin).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), exp, nil
}

func (s *sessionManager) parse(ctx context.Context, raw string) (jwt.Token, error) {
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, s.key), jwt.WithValidate(true))
	if err != nil {
		return nil, err
	}
	if s.isRevoked(ctx, tok.JwtID()) {
		return nil, errors.New("session revoked")
	}
	return tok, nil
}

func (s *sessionManager) revoke(ctx context.Context, jti string, until time.Time) {
	if jti == "" {
		return
	}
	if s.rdb != nil {
		err := s.rdb.Set(ctx, "session:revoked:"+jti, "1", time.Until(until)).Err()
		if err == nil {
			return
		}
		s.log.Warnw("redis revoke failed, falling back to local denylist", "err", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = until
	for id, exp := range s.revoked {
		if time.Now().After(exp) {
			delete(s.revoked, id)
		}
	}
}

func (s *sessionManager) isRevoked(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	if s.rdb != nil {
		if n, err := s.rdb.Exists(ctx, "session:revoked:"+jti).Result(); err == nil {
			return n > 0
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	return ok && time.Now().Before(exp)
}

// requireUser validates the bearer token and loads the account fresh from
// the store so role changes and deactivation take effect immediately.
func (a *App) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			writeErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		raw := strings.TrimSpace(authz[len("Bearer "):])
		tok, err := a.sessions.parse(r.Context(), raw)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "invalid session")
			return
		}
		user, err := a.companies.GetUser(r.Context(), tok.Subject())
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "unknown account")
			return
		}
		if !user.IsActive {
			writeErr(w, http.StatusForbidden, "account disabled")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUser, user)
		ctx = context.WithValue(ctx, ctxSession, session{JTI: tok.JwtID(), Expires: tok.Expiration()})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(ctx context.Context) companies.User {
	u, _ := ctx.Value(ctxUser).(companies.User)
	return u
}

func currentSession(ctx context.Context) session {
	s, _ := ctx.Value(ctxSession).(session)
	return s
}
