package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	gateway "github.com/KuolDimDeng/Dott-Project-sub054"
	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Globals struct {
	Dev     bool
	Version string
}

// EngineFlags configure the gateway engine shared by every command.
type EngineFlags struct {
	Secret         string   `help:"master secret, at least 32 bytes" env:"SESSIONGATE_SECRET" required:""`
	RotatedSecrets []string `help:"previous master secrets accepted for decoding" env:"SESSIONGATE_ROTATED_SECRETS"`
	AllowLegacy    bool     `help:"accept legacy base64 JSON session cookies" default:"false" env:"SESSIONGATE_ALLOW_LEGACY"`

	CookieDomain string        `help:"parent cookie domain (derived from the host when empty)" default:"" env:"SESSIONGATE_COOKIE_DOMAIN"`
	Insecure     bool          `help:"omit the Secure cookie attribute (local HTTP only)" default:"false" env:"SESSIONGATE_INSECURE"`
	SessionTTL   time.Duration `help:"session lifetime" default:"24h" env:"SESSIONGATE_SESSION_TTL"`
	NoMigration  bool          `help:"stop writing the legacy-named session cookie" default:"false" env:"SESSIONGATE_NO_MIGRATION"`
	Fingerprint  bool          `help:"enable fingerprint hijack detection" default:"true" negatable:"" env:"SESSIONGATE_FINGERPRINT"`
	TenantPaths  bool          `help:"serve tenant applications under /{tenantId}/" default:"false" env:"SESSIONGATE_TENANT_PATHS"`

	RedisAddr   string `help:"Redis address; an in-process Redis is used in dev mode when empty" default:"" env:"SESSIONGATE_REDIS_ADDR"`
	RedisPrefix string `help:"Redis key prefix" default:"gw" env:"SESSIONGATE_REDIS_PREFIX"`

	Postgres         PostgresFlags `embed:"" prefix:"postgres-"`
	StaticMembership []string      `help:"dev memberships as subject:tenant:role[:perm,perm]" env:"SESSIONGATE_STATIC_MEMBERSHIP"`
}

type PostgresFlags struct {
	ConnString      string        `help:"PostgreSQL connection string for tenant memberships" env:"POSTGRES_CONNECTION_STRING"`
	MaxConns        int32         `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
}

func (p PostgresFlags) poolConfig() *postgres.PoolConfig {
	return &postgres.PoolConfig{
		ConnString:      p.ConnString,
		MaxConns:        p.MaxConns,
		MinConns:        p.MinConns,
		MaxConnLifetime: p.MaxConnLifetime,
		MaxConnIdleTime: p.MaxConnIdleTime,
	}
}

func (f *EngineFlags) config() gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.Codec.Secret = []byte(f.Secret)
	for _, s := range f.RotatedSecrets {
		cfg.Codec.RotatedSecrets = append(cfg.Codec.RotatedSecrets, []byte(s))
	}
	cfg.Codec.AllowLegacyDecode = f.AllowLegacy
	cfg.Cookie.Domain = f.CookieDomain
	cfg.Cookie.Secure = !f.Insecure
	cfg.Cookie.MigrationWindow = !f.NoMigration
	cfg.Session.TTL = f.SessionTTL
	cfg.Session.RedisPrefix = f.RedisPrefix
	if cfg.Cookie.MaxAge > f.SessionTTL {
		cfg.Cookie.MaxAge = f.SessionTTL
	}
	if cfg.Session.RefreshThreshold >= f.SessionTTL {
		cfg.Session.RefreshThreshold = f.SessionTTL / 4
	}
	cfg.Fingerprint.Enabled = f.Fingerprint
	cfg.Onboarding.TenantPathPrefix = f.TenantPaths
	cfg.Audit.Enabled = true
	return cfg
}

// buildEngine wires the engine and returns a cleanup releasing every
// backend it opened.
func buildEngine(ctx context.Context, f *EngineFlags, dev bool, logger zerolog.Logger) (*gateway.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	addr := f.RedisAddr
	if addr == "" {
		if !dev {
			return nil, cleanup, errors.New("redis address is required (--redis-addr or SESSIONGATE_REDIS_ADDR)")
		}
		mr, err := miniredis.Run()
		if err != nil {
			return nil, cleanup, fmt.Errorf("start in-process redis: %w", err)
		}
		closers = append(closers, mr.Close)
		addr = mr.Addr()
		logger.Warn().Str("addr", addr).Msg("using in-process redis, sessions are not persisted")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	closers = append(closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("%w: %v", gateway.ErrStoreUnavailable, err)
	}

	loader, closeLoader, err := membershipLoader(ctx, f, logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	closers = append(closers, closeLoader)

	engine, err := gateway.New().
		WithConfig(f.config()).
		WithRedis(rdb).
		WithMembershipLoader(loader).
		WithAuditSink(audit.NewZerologSink(logger.With().Str("component", "audit").Logger())).
		WithLogger(logger).
		Build()
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	closers = append(closers, engine.Close)
	return engine, cleanup, nil
}

func membershipLoader(ctx context.Context, f *EngineFlags, logger zerolog.Logger) (tenant.MembershipLoader, func(), error) {
	if f.Postgres.ConnString != "" {
		pool, err := postgres.NewPool(ctx, f.Postgres.poolConfig())
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewMembershipLoader(pool), pool.Close, nil
	}

	loader := tenant.NewMemoryLoader()
	for _, spec := range f.StaticMembership {
		subject, tenantID, m, err := parseStaticMembership(spec)
		if err != nil {
			return nil, nil, err
		}
		loader.Put(subject, tenantID, m)
	}
	logger.Warn().Int("memberships", len(f.StaticMembership)).Msg("using static membership table")
	return loader, func() {}, nil
}

func parseStaticMembership(spec string) (string, string, tenant.Membership, error) {
	parts := strings.SplitN(spec, ":", 4)
	if len(parts) < 3 {
		return "", "", tenant.Membership{}, fmt.Errorf("static membership %q: want subject:tenant:role[:perms]", spec)
	}
	m := tenant.Membership{Role: tenant.Role(parts[2])}
	if !m.Role.Valid() {
		return "", "", tenant.Membership{}, fmt.Errorf("static membership %q: unknown role %q", spec, parts[2])
	}
	if len(parts) == 4 && parts[3] != "" {
		m.Permissions = strings.Split(parts[3], ",")
	}
	return parts[0], parts[1], m, nil
}

func setupLogger(dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).With().Stack().Logger()
	}
	return logger
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    16 * 1024, // session cookies plus client hints
	}
}
