package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/bootstrap"
	"github.com/KuolDimDeng/Dott-Project-sub054/fingerprint"
	"github.com/KuolDimDeng/Dott-Project-sub054/onboarding"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
)

// MinSecretSize is the minimum length of the master secret and of every
// rotated secret.
const MinSecretSize = 32

// Config holds every tunable of the gateway engine.
//
// Config is copied on [Builder.WithConfig] and again on [Builder.Build];
// mutating the original afterwards has no effect on a built Engine.
type Config struct {
	Codec       CodecConfig
	Cookie      CookieConfig
	Session     SessionConfig
	Fingerprint FingerprintConfig
	Bootstrap   BootstrapConfig
	Onboarding  OnboardingConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
CODEC CONFIG
====================================
*/

// CodecConfig controls session token sealing.
//
// Secret is the master secret; every sub-key (AEAD, fingerprint, salt
// cookie, bootstrap signing) is derived from it. RotatedSecrets are
// previous master secrets, accepted for decoding only.
type CodecConfig struct {
	Secret         []byte
	RotatedSecrets [][]byte

	// AllowLegacyDecode accepts the previous gateway's base64 JSON cookie.
	// Such sessions are re-issued in the current scheme on first use.
	AllowLegacyDecode bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names the gateway cookies and sets their attributes.
type CookieConfig struct {
	Name            string
	LegacyName      string
	StatusName      string
	FingerprintName string

	// Domain overrides the parent domain derived from the request host.
	Domain   string
	Path     string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite

	// MigrationWindow writes the session under LegacyName as well.
	MigrationWindow bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime and the store key namespace.
type SessionConfig struct {
	TTL time.Duration
	// RefreshThreshold triggers a sliding refresh once the remaining
	// lifetime drops below it. Zero disables automatic refresh.
	RefreshThreshold time.Duration
	RedisPrefix      string
}

/*
====================================
FINGERPRINT CONFIG
====================================
*/

// FingerprintConfig controls hijack detection.
type FingerprintConfig struct {
	Enabled bool
	// Headers are hashed in this order.
	Headers []string
}

/*
====================================
BOOTSTRAP CONFIG
====================================
*/

// BootstrapConfig controls the one-time handoff parameter used right after
// session creation.
type BootstrapConfig struct {
	Enabled bool
	Param   string
	TTL     time.Duration
	Issuer  string
}

/*
====================================
ONBOARDING CONFIG
====================================
*/

// OnboardingConfig maps onboarding steps and application areas to paths.
type OnboardingConfig struct {
	StepPaths        map[session.OnboardingState]string
	DashboardPath    string
	LoginPath        string
	PublicPrefixes   []string
	TenantPathPrefix bool
}

// Routes converts c into the route table used by the onboarding gate.
func (c OnboardingConfig) Routes() onboarding.Routes {
	steps := make(map[session.OnboardingState]string, len(c.StepPaths))
	for k, v := range c.StepPaths {
		steps[k] = v
	}
	return onboarding.Routes{
		Steps:            steps,
		Dashboard:        c.DashboardPath,
		Login:            c.LoginPath,
		Public:           append([]string(nil), c.PublicPrefixes...),
		TenantPathPrefix: c.TenantPathPrefix,
	}
}

/*
====================================
AUDIT & METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Codec.Secret is left
// empty and must be provided.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	routes := onboarding.DefaultRoutes()
	return Config{
		Codec: CodecConfig{
			AllowLegacyDecode: false,
		},
		Cookie: CookieConfig{
			Name:            "session",
			LegacyName:      "session_token",
			StatusName:      "session_status",
			FingerprintName: "session_fp",
			Path:            "/",
			MaxAge:          24 * time.Hour,
			Secure:          true,
			SameSite:        http.SameSiteLaxMode,
			MigrationWindow: true,
		},
		Session: SessionConfig{
			TTL:              24 * time.Hour,
			RefreshThreshold: 6 * time.Hour,
			RedisPrefix:      "gw",
		},
		Fingerprint: FingerprintConfig{
			Enabled: true,
			Headers: append([]string(nil), fingerprint.DefaultHeaders...),
		},
		Bootstrap: BootstrapConfig{
			Enabled: true,
			Param:   "bt",
			TTL:     time.Minute,
			Issuer:  "sessiongate",
		},
		Onboarding: OnboardingConfig{
			StepPaths:        routes.Steps,
			DashboardPath:    routes.Dashboard,
			LoginPath:        routes.Login,
			PublicPrefixes:   routes.Public,
			TenantPathPrefix: routes.TenantPathPrefix,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Codec.Secret = cloneBytes(cfg.Codec.Secret)
	if len(cfg.Codec.RotatedSecrets) > 0 {
		out.Codec.RotatedSecrets = make([][]byte, len(cfg.Codec.RotatedSecrets))
		for i, s := range cfg.Codec.RotatedSecrets {
			out.Codec.RotatedSecrets[i] = cloneBytes(s)
		}
	}
	out.Fingerprint.Headers = append([]string(nil), cfg.Fingerprint.Headers...)
	out.Onboarding = OnboardingConfig{
		DashboardPath:    cfg.Onboarding.DashboardPath,
		LoginPath:        cfg.Onboarding.LoginPath,
		PublicPrefixes:   append([]string(nil), cfg.Onboarding.PublicPrefixes...),
		TenantPathPrefix: cfg.Onboarding.TenantPathPrefix,
	}
	if cfg.Onboarding.StepPaths != nil {
		out.Onboarding.StepPaths = make(map[session.OnboardingState]string, len(cfg.Onboarding.StepPaths))
		for k, v := range cfg.Onboarding.StepPaths {
			out.Onboarding.StepPaths[k] = v
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error found. A Config that
// passes Validate can be built into an Engine.
func (c *Config) Validate() error {
	// Codec
	if len(c.Codec.Secret) < MinSecretSize {
		return fmt.Errorf("Codec Secret must be at least %d bytes", MinSecretSize)
	}
	for i, s := range c.Codec.RotatedSecrets {
		if len(s) < MinSecretSize {
			return fmt.Errorf("Codec RotatedSecrets[%d] must be at least %d bytes", i, MinSecretSize)
		}
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RefreshThreshold < 0 || c.Session.RefreshThreshold >= c.Session.TTL {
		return errors.New("Session RefreshThreshold must be >= 0 and < TTL")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name must not be empty")
	}
	names := map[string]string{}
	for field, name := range map[string]string{
		"Name":            c.Cookie.Name,
		"LegacyName":      c.Cookie.LegacyName,
		"StatusName":      c.Cookie.StatusName,
		"FingerprintName": c.Cookie.FingerprintName,
	} {
		if name == "" {
			continue
		}
		if other, dup := names[strings.ToLower(name)]; dup {
			return fmt.Errorf("Cookie %s and %s must differ", other, field)
		}
		names[strings.ToLower(name)] = field
	}
	if c.Cookie.MaxAge <= 0 {
		return errors.New("Cookie MaxAge must be > 0")
	}
	if c.Cookie.MaxAge > c.Session.TTL {
		return errors.New("Cookie MaxAge must be <= Session TTL")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}
	if c.Cookie.MigrationWindow && c.Cookie.LegacyName == "" {
		return errors.New("Cookie MigrationWindow requires LegacyName")
	}

	// Fingerprint
	if c.Fingerprint.Enabled {
		if len(c.Fingerprint.Headers) == 0 {
			return errors.New("Fingerprint Headers must not be empty when enabled")
		}
		if c.Cookie.FingerprintName == "" {
			return errors.New("Fingerprint requires Cookie FingerprintName")
		}
	}

	// Bootstrap
	if c.Bootstrap.Enabled {
		if c.Bootstrap.TTL <= 0 || c.Bootstrap.TTL > bootstrap.MaxTTL {
			return fmt.Errorf("Bootstrap TTL must be in (0, %s]", bootstrap.MaxTTL)
		}
		if strings.TrimSpace(c.Bootstrap.Param) == "" {
			return errors.New("Bootstrap Param must not be empty")
		}
	}

	// Onboarding
	if err := c.Onboarding.Routes().Validate(); err != nil {
		return err
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
