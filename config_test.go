package gateway

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/session"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Codec.Secret = bytes.Repeat([]byte{0x42}, MinSecretSize)
	cfg.Cookie.Domain = "example.com"
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with secret", mutate: func(c *Config) {}, wantValid: true},
		{
			name:      "short secret",
			mutate:    func(c *Config) { c.Codec.Secret = []byte("short") },
			wantValid: false,
		},
		{
			name:      "short rotated secret",
			mutate:    func(c *Config) { c.Codec.RotatedSecrets = [][]byte{[]byte("old")} },
			wantValid: false,
		},
		{
			name:      "zero ttl",
			mutate:    func(c *Config) { c.Session.TTL = 0 },
			wantValid: false,
		},
		{
			name:      "refresh threshold equals ttl",
			mutate:    func(c *Config) { c.Session.RefreshThreshold = c.Session.TTL },
			wantValid: false,
		},
		{
			name:      "refresh disabled",
			mutate:    func(c *Config) { c.Session.RefreshThreshold = 0 },
			wantValid: true,
		},
		{
			name:      "cookie outlives session",
			mutate:    func(c *Config) { c.Cookie.MaxAge = c.Session.TTL + time.Second },
			wantValid: false,
		},
		{
			name: "samesite none without secure",
			mutate: func(c *Config) {
				c.Cookie.SameSite = http.SameSiteNoneMode
				c.Cookie.Secure = false
			},
			wantValid: false,
		},
		{
			name:      "samesite none with secure",
			mutate:    func(c *Config) { c.Cookie.SameSite = http.SameSiteNoneMode },
			wantValid: true,
		},
		{
			name:      "duplicate cookie names",
			mutate:    func(c *Config) { c.Cookie.StatusName = "SESSION" },
			wantValid: false,
		},
		{
			name: "migration without legacy name",
			mutate: func(c *Config) {
				c.Cookie.LegacyName = ""
			},
			wantValid: false,
		},
		{
			name:      "bootstrap ttl too long",
			mutate:    func(c *Config) { c.Bootstrap.TTL = 6 * time.Minute },
			wantValid: false,
		},
		{
			name: "bootstrap disabled ignores ttl",
			mutate: func(c *Config) {
				c.Bootstrap.Enabled = false
				c.Bootstrap.TTL = 0
			},
			wantValid: true,
		},
		{
			name:      "fingerprint without headers",
			mutate:    func(c *Config) { c.Fingerprint.Headers = nil },
			wantValid: false,
		},
		{
			name:      "missing step path",
			mutate:    func(c *Config) { delete(c.Onboarding.StepPaths, session.StatePayment) },
			wantValid: false,
		},
		{
			name: "duplicate step paths",
			mutate: func(c *Config) {
				c.Onboarding.StepPaths[session.StatePayment] = c.Onboarding.StepPaths[session.StateSetup]
			},
			wantValid: false,
		},
		{
			name:      "audit enabled without buffer",
			mutate:    func(c *Config) { c.Audit.BufferSize = 0 },
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestCloneConfigIsDeep(t *testing.T) {
	cfg := testConfig()
	cfg.Codec.RotatedSecrets = [][]byte{bytes.Repeat([]byte{1}, MinSecretSize)}

	out := cloneConfig(cfg)
	cfg.Codec.Secret[0] = 0
	cfg.Codec.RotatedSecrets[0][0] = 0
	cfg.Fingerprint.Headers[0] = "X-Changed"
	cfg.Onboarding.StepPaths[session.StateSetup] = "/changed"

	if out.Codec.Secret[0] != 0x42 {
		t.Fatal("secret shared with clone")
	}
	if out.Codec.RotatedSecrets[0][0] != 1 {
		t.Fatal("rotated secret shared with clone")
	}
	if out.Fingerprint.Headers[0] == "X-Changed" {
		t.Fatal("headers shared with clone")
	}
	if out.Onboarding.StepPaths[session.StateSetup] == "/changed" {
		t.Fatal("step paths shared with clone")
	}
}
