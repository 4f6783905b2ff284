package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/internal"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxTTL bounds how long a bootstrap token may live.
const MaxTTL = 5 * time.Minute

var (
	ErrInvalidToken = errors.New("invalid bootstrap token")
	ErrReplayed     = errors.New("bootstrap token already redeemed")
	ErrLedger       = errors.New("bootstrap ledger unavailable")
)

// Ledger records redeemed token ids. session.Store implementations satisfy it.
type Ledger interface {
	ConsumeOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Config configures minting and verification.
type Config struct {
	// Key is the HS256 signing key.
	Key      []byte
	TTL      time.Duration
	Issuer   string
	Audience string
	// Param is the query parameter the token travels in.
	Param string
}

// Claims carries the session id being handed over. The sealed session token
// itself never appears in a URL.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager mints and redeems single use bootstrap tokens for cross-subdomain
// session handoff.
type Manager struct {
	cfg    Config
	ledger Ledger
	now    func() time.Time
	logger zerolog.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(cfg Config, ledger Ledger, opts ...Option) (*Manager, error) {
	if len(cfg.Key) < 32 {
		return nil, errors.New("bootstrap: signing key must be at least 32 bytes")
	}
	if cfg.TTL <= 0 || cfg.TTL > MaxTTL {
		return nil, fmt.Errorf("bootstrap: ttl must be in (0, %s]", MaxTTL)
	}
	if ledger == nil {
		return nil, errors.New("bootstrap: ledger is required")
	}
	if cfg.Param == "" {
		cfg.Param = "bt"
	}
	m := &Manager{cfg: cfg, ledger: ledger, now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Param returns the query parameter name.
func (m *Manager) Param() string { return m.cfg.Param }

// Mint returns a signed token for sessionID.
func (m *Manager) Mint(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("bootstrap: empty session id")
	}
	now := m.now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TTL)),
		},
	}
	if m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Key)
}

// RedirectURL appends a freshly minted token for sessionID to target.
func (m *Manager) RedirectURL(target, sessionID string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("bootstrap: redirect target: %w", err)
	}
	tok, err := m.Mint(sessionID)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(m.cfg.Param, tok)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Redeem verifies raw and consumes it. It returns the session id on the
// first successful call for a given token and ErrReplayed afterwards.
func (m *Manager) Redeem(ctx context.Context, raw string) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.cfg.Issuer))
	}
	if m.cfg.Audience != "" {
		options = append(options, jwt.WithAudience(m.cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.cfg.Key, nil
	})
	if err != nil || !token.Valid {
		m.logger.Debug().Err(err).Str("token_ref", internal.TokenRef(raw)).Msg("bootstrap token rejected")
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.SessionID == "" || claims.IssuedAt == nil {
		return "", fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) > MaxTTL {
		return "", fmt.Errorf("%w: lifetime exceeds %s", ErrInvalidToken, MaxTTL)
	}

	ttl := claims.ExpiresAt.Sub(m.now())
	first, err := m.ledger.ConsumeOnce(ctx, "bootstrap:"+claims.ID, ttl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLedger, err)
	}
	if !first {
		m.logger.Warn().Str("token_ref", internal.TokenRef(raw)).Msg("bootstrap token replayed")
		return "", ErrReplayed
	}
	return claims.SessionID, nil
}
