package cookie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/gorilla/securecookie"
)

var (
	// ErrNoCredential is returned when a request carries no session cookie
	// and no bootstrap parameter.
	ErrNoCredential = errors.New("no session credential")
	// ErrResponseCommitted is returned when cookies must be written but the
	// response headers are already sent.
	ErrResponseCommitted = errors.New("response already committed")
	// ErrBootstrapRejected wraps every failure to redeem a bootstrap token.
	ErrBootstrapRejected = errors.New("bootstrap token rejected")
)

// Source says where a credential was found.
type Source string

const (
	SourceCookie       Source = "cookie"
	SourceLegacyCookie Source = "legacy_cookie"
	SourceBootstrap    Source = "bootstrap"
)

// Candidate is one credential found on a request, in priority order.
type Candidate struct {
	Source Source
	value  string
}

// Encoder seals a record into a cookie token.
type Encoder interface {
	Encode(rec *session.Record) (string, error)
}

// BootstrapRedeemer verifies a bootstrap parameter, consumes it, and returns
// the session id it refers to.
type BootstrapRedeemer interface {
	Redeem(ctx context.Context, raw string) (string, error)
}

// Credential is a redeemed Candidate. Cookie sources carry a Token to
// decode; bootstrap sources carry only the SessionID to load from the store.
type Credential struct {
	Source    Source
	Token     string
	SessionID string
}

// Options configures cookie names and attributes.
type Options struct {
	Name       string
	LegacyName string
	StatusName string
	SaltName   string

	// Domain overrides the derived parent domain.
	Domain   string
	Path     string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite

	// MigrationWindow also writes the session under LegacyName so clients
	// still on the previous gateway keep working.
	MigrationWindow bool

	BootstrapParam string
}

// Status is the client-readable onboarding hint. It carries no authority.
type Status struct {
	NeedsOnboarding bool    `json:"needsOnboarding"`
	TenantIDHint    *string `json:"tenantIdHint"`
}

// StatusFor derives the status cookie body from rec.
func StatusFor(rec *session.Record) Status {
	st := Status{NeedsOnboarding: rec.OnboardingState != session.StateComplete || !rec.HasTenant()}
	if rec.HasTenant() {
		id := rec.TenantID
		st.TenantIDHint = &id
	}
	return st
}

// Manager reads and writes every gateway cookie.
type Manager struct {
	opts  Options
	enc   Encoder
	boot  BootstrapRedeemer
	salts *securecookie.SecureCookie
	now   func() time.Time
}

// NewManager validates opts and returns a Manager. hashKey and blockKey
// protect the salt cookie; boot may be nil to disable bootstrap redemption.
func NewManager(opts Options, enc Encoder, boot BootstrapRedeemer, hashKey, blockKey []byte) (*Manager, error) {
	if opts.Name == "" {
		return nil, errors.New("cookie: name cannot be empty")
	}
	if enc == nil {
		return nil, errors.New("cookie: encoder cannot be nil")
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.MaxAge <= 0 {
		return nil, errors.New("cookie: max age must be positive")
	}
	if opts.SameSite == http.SameSiteNoneMode && !opts.Secure {
		return nil, errors.New("cookie: SameSite=None requires Secure")
	}
	if len(hashKey) == 0 {
		return nil, errors.New("cookie: salt hash key required")
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(opts.MaxAge / time.Second))

	return &Manager{opts: opts, enc: enc, boot: boot, salts: sc, now: time.Now}, nil
}

// SetClock replaces the manager's time source.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Options returns the effective options.
func (m *Manager) Options() Options { return m.opts }

// Issue seals rec and writes the session and status cookies. It returns the
// token written.
func (m *Manager) Issue(w http.ResponseWriter, r *http.Request, rec *session.Record) (string, error) {
	if isCommitted(w) {
		return "", ErrResponseCommitted
	}
	maxAge := m.maxAgeFor(rec)
	if maxAge <= 0 {
		return "", fmt.Errorf("cookie: %w", session.ErrSessionExpired)
	}
	token, err := m.enc.Encode(rec)
	if err != nil {
		return "", err
	}

	domain := m.domainFor(r)
	http.SetCookie(w, m.makeCookie(m.opts.Name, token, domain, maxAge, true))
	if m.opts.MigrationWindow && m.opts.LegacyName != "" {
		http.SetCookie(w, m.makeCookie(m.opts.LegacyName, token, domain, maxAge, true))
	}
	if m.opts.StatusName != "" {
		if err := m.writeStatus(w, domain, StatusFor(rec), maxAge); err != nil {
			return "", err
		}
	}
	return token, nil
}

func (m *Manager) writeStatus(w http.ResponseWriter, domain string, st Status, maxAge time.Duration) error {
	body, err := json.Marshal(st)
	if err != nil {
		return err
	}
	// Readable from JS, hence not HttpOnly.
	http.SetCookie(w, m.makeCookie(m.opts.StatusName, url.QueryEscape(string(body)), domain, maxAge, false))
	return nil
}

// Extract lists the credentials on r in priority order: current cookie,
// legacy cookie, then the bootstrap parameter. Nothing is verified here.
func (m *Manager) Extract(r *http.Request) []Candidate {
	var out []Candidate
	for _, c := range getCookies(r, m.opts.Name) {
		if c.Value != "" {
			out = append(out, Candidate{Source: SourceCookie, value: c.Value})
		}
	}
	if m.opts.LegacyName != "" {
		for _, c := range getCookies(r, m.opts.LegacyName) {
			if c.Value != "" {
				out = append(out, Candidate{Source: SourceLegacyCookie, value: c.Value})
			}
		}
	}
	if m.boot != nil && m.opts.BootstrapParam != "" {
		if raw := r.URL.Query().Get(m.opts.BootstrapParam); raw != "" {
			out = append(out, Candidate{Source: SourceBootstrap, value: raw})
		}
	}
	return out
}

// Redeem turns c into a Credential. Bootstrap candidates are verified and
// consumed; a second redemption of the same parameter fails.
func (m *Manager) Redeem(ctx context.Context, c Candidate) (Credential, error) {
	if c.Source != SourceBootstrap {
		return Credential{Source: c.Source, Token: c.value}, nil
	}
	id, err := m.boot.Redeem(ctx, c.value)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrBootstrapRejected, err)
	}
	return Credential{Source: SourceBootstrap, SessionID: id}, nil
}

// Clear expires every gateway cookie, both on the shared domain and
// host-only.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	if isCommitted(w) {
		return ErrResponseCommitted
	}
	domains := []string{m.domainFor(r)}
	if domains[0] != "" {
		domains = append(domains, "")
	}
	for _, name := range []string{m.opts.Name, m.opts.LegacyName, m.opts.StatusName, m.opts.SaltName} {
		if name == "" {
			continue
		}
		for _, d := range domains {
			c := m.makeCookie(name, "", d, 0, true)
			c.MaxAge = -1
			c.Expires = m.now().Add(-time.Hour)
			http.SetCookie(w, c)
		}
	}
	return nil
}

// IssueSalt writes the fingerprint salt cookie.
func (m *Manager) IssueSalt(w http.ResponseWriter, r *http.Request, salt []byte) error {
	if m.opts.SaltName == "" {
		return nil
	}
	if isCommitted(w) {
		return ErrResponseCommitted
	}
	encoded, err := m.salts.Encode(m.opts.SaltName, salt)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.makeCookie(m.opts.SaltName, encoded, m.domainFor(r), m.opts.MaxAge, true))
	return nil
}

// Salt returns the fingerprint salt carried by r, if present and intact.
func (m *Manager) Salt(r *http.Request) ([]byte, bool) {
	if m.opts.SaltName == "" {
		return nil, false
	}
	for _, c := range getCookies(r, m.opts.SaltName) {
		var salt []byte
		if err := m.salts.Decode(m.opts.SaltName, c.Value, &salt); err == nil && len(salt) > 0 {
			return salt, true
		}
	}
	return nil, false
}

// ReadStatus parses the status cookie on r.
func (m *Manager) ReadStatus(r *http.Request) (Status, bool) {
	var st Status
	c, err := r.Cookie(m.opts.StatusName)
	if err != nil {
		return st, false
	}
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return st, false
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return st, false
	}
	return st, true
}

func (m *Manager) maxAgeFor(rec *session.Record) time.Duration {
	remaining := rec.ExpiresAt.Sub(m.now())
	if remaining < m.opts.MaxAge {
		return remaining
	}
	return m.opts.MaxAge
}

func (m *Manager) domainFor(r *http.Request) string {
	if m.opts.Domain != "" {
		return m.opts.Domain
	}
	return DeriveDomain(r.Host)
}

func (m *Manager) makeCookie(name, value, domain string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	secs := int(maxAge / time.Second)
	if maxAge > 0 && secs == 0 {
		secs = 1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.opts.Path,
		Domain:   domain,
		MaxAge:   secs,
		Expires:  m.now().Add(time.Duration(secs) * time.Second),
		HttpOnly: httpOnly,
		Secure:   m.opts.Secure,
		SameSite: m.opts.SameSite,
	}
}

func getCookies(r *http.Request, name string) []*http.Cookie {
	all := r.Cookies()
	matched := make([]*http.Cookie, 0, len(all))
	for _, c := range all {
		if strings.EqualFold(c.Name, name) {
			matched = append(matched, c)
		}
	}
	return matched
}
