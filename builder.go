package gateway

import (
	"errors"
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/bootstrap"
	"github.com/KuolDimDeng/Dott-Project-sub054/cookie"
	"github.com/KuolDimDeng/Dott-Project-sub054/fingerprint"
	"github.com/KuolDimDeng/Dott-Project-sub054/internal"
	"github.com/KuolDimDeng/Dott-Project-sub054/onboarding"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine]. A Builder is single use: configure it
// during initialization, call Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  session.Store

	loader    tenant.MembershipLoader
	auditSink audit.Sink
	logger    zerolog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores sessions in Redis under Session.RedisPrefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore uses store instead of Redis. It takes precedence over
// WithRedis.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithMembershipLoader sets the data-layer authority for tenant
// memberships. It is required.
func (b *Builder) WithMembershipLoader(loader tenant.MembershipLoader) *Builder {
	b.loader = loader
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces the time source of every component. Intended for
// tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, derives every sub-key from the master
// secret and wires the pipeline.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("session store required: provide a redis client or a store")
		}
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	}
	if b.loader == nil {
		return nil, errors.New("membership loader required")
	}

	logger := b.logger

	// -------- KEYS --------
	keys, err := internal.DeriveKeySet(cfg.Codec.Secret)
	if err != nil {
		return nil, err
	}
	rotated := make([][]byte, 0, len(cfg.Codec.RotatedSecrets))
	for _, secret := range cfg.Codec.RotatedSecrets {
		k, err := internal.DeriveKey(secret, internal.PurposeSessionAEAD, session.KeySize)
		if err != nil {
			return nil, err
		}
		rotated = append(rotated, k)
	}

	// -------- CODEC --------
	codec, err := session.NewCodec(keys.SessionAEAD,
		session.WithRotatedKeys(rotated...),
		session.WithLegacyDecode(cfg.Codec.AllowLegacyDecode),
		session.WithClock(b.now),
		session.WithLogger(logger.With().Str("component", "codec").Logger()),
	)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		store:    store,
		codec:    codec,
		resolver: tenant.NewResolver(b.loader, logger.With().Str("component", "tenant").Logger()),
		audit:    audit.NewDispatcher(audit.Config{Enabled: cfg.Audit.Enabled, BufferSize: cfg.Audit.BufferSize}, b.auditSink),
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
		now:      b.now,
		newID:    newSessionID,
	}

	// -------- FINGERPRINT --------
	computer, err := fingerprint.NewComputer(keys.Fingerprint, cfg.Fingerprint.Headers)
	if err != nil {
		return nil, err
	}
	engine.fingerprints = fingerprint.NewValidator(computer, auditEmitter{engine},
		fingerprint.WithEnabled(cfg.Fingerprint.Enabled),
		fingerprint.WithClock(b.now),
		fingerprint.WithLogger(logger.With().Str("component", "fingerprint").Logger()),
	)

	// -------- BOOTSTRAP --------
	var redeemer cookie.BootstrapRedeemer
	if cfg.Bootstrap.Enabled {
		bm, err := bootstrap.NewManager(bootstrap.Config{
			Key:    keys.Bootstrap,
			TTL:    cfg.Bootstrap.TTL,
			Issuer: cfg.Bootstrap.Issuer,
			Param:  cfg.Bootstrap.Param,
		}, store,
			bootstrap.WithClock(b.now),
			bootstrap.WithLogger(logger.With().Str("component", "bootstrap").Logger()),
		)
		if err != nil {
			return nil, err
		}
		engine.bootstrap = bm
		redeemer = bm
	}

	// -------- COOKIES --------
	cookies, err := cookie.NewManager(cookie.Options{
		Name:            cfg.Cookie.Name,
		LegacyName:      cfg.Cookie.LegacyName,
		StatusName:      cfg.Cookie.StatusName,
		SaltName:        cfg.Cookie.FingerprintName,
		Domain:          cfg.Cookie.Domain,
		Path:            cfg.Cookie.Path,
		MaxAge:          cfg.Cookie.MaxAge,
		Secure:          cfg.Cookie.Secure,
		SameSite:        cfg.Cookie.SameSite,
		MigrationWindow: cfg.Cookie.MigrationWindow,
		BootstrapParam:  cfg.Bootstrap.Param,
	}, codec, redeemer, keys.CookieHash, keys.CookieBlock)
	if err != nil {
		return nil, err
	}
	cookies.SetClock(b.now)
	engine.cookies = cookies

	// -------- ONBOARDING --------
	gate, err := onboarding.NewGate(cfg.Onboarding.Routes())
	if err != nil {
		return nil, err
	}
	engine.gate = gate

	engine.flows = engine.buildFlowDeps()
	b.built = true

	return engine, nil
}

func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
