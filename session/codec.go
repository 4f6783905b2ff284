package session

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidSession is returned for every token that cannot be turned into a
// live record: malformed, tampered, wrong key, unknown version or expired.
var ErrInvalidSession = errors.New("invalid session")

// ErrSessionExpired is wrapped together with ErrInvalidSession when the
// record decoded fine but is past its expiry.
var ErrSessionExpired = errors.New("session expired")

// KeySize is the required length of every codec key.
const KeySize = chacha20poly1305.KeySize

const (
	nonceSize    = chacha20poly1305.NonceSizeX
	minTokenSize = 1 + nonceSize + chacha20poly1305.Overhead
)

// Codec seals records into opaque cookie tokens and opens them again.
//
// Token layout: base64url(version || nonce || ciphertext), with the version
// byte bound as additional data. Decoding is closed-world: anything that does
// not authenticate under one of the configured keys is rejected.
type Codec struct {
	aeads       []cipher.AEAD
	allowLegacy bool
	now         func() time.Time
	logger      zerolog.Logger
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec) error

// WithRotatedKeys adds keys that are accepted for decoding only. Tokens are
// always sealed with the primary key.
func WithRotatedKeys(keys ...[]byte) CodecOption {
	return func(c *Codec) error {
		for _, k := range keys {
			aead, err := chacha20poly1305.NewX(k)
			if err != nil {
				return fmt.Errorf("session: rotated key: %w", err)
			}
			c.aeads = append(c.aeads, aead)
		}
		return nil
	}
}

// WithLegacyDecode enables acceptance of pre-AEAD JSON cookies.
func WithLegacyDecode(enabled bool) CodecOption {
	return func(c *Codec) error {
		c.allowLegacy = enabled
		return nil
	}
}

func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

func WithLogger(l zerolog.Logger) CodecOption {
	return func(c *Codec) error {
		c.logger = l
		return nil
	}
}

// NewCodec returns a Codec sealing with key, which must be KeySize bytes.
func NewCodec(key []byte, opts ...CodecOption) (*Codec, error) {
	primary, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("session: primary key: %w", err)
	}
	c := &Codec{
		aeads:  []cipher.AEAD{primary},
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Encode seals rec in the current scheme. The record's Version field is
// ignored; the output always carries CurrentSchemaVersion.
func (c *Codec) Encode(rec *Record) (string, error) {
	plain, err := MarshalBinary(rec)
	if err != nil {
		return "", err
	}

	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plain)+chacha20poly1305.Overhead)
	out[0] = CurrentSchemaVersion
	if _, err := rand.Read(out[1:]); err != nil {
		return "", fmt.Errorf("session: nonce: %w", err)
	}
	out = c.aeads[0].Seal(out, out[1:1+nonceSize], plain, out[:1])
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode opens a token produced by Encode under the primary key or any
// rotated key. With legacy decoding enabled it also accepts the old JSON
// cookie format; such records come back with Version set to LegacyVersion.
func (c *Codec) Decode(token string) (*Record, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalid("empty token")
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) == 0 || raw[0] == '{' {
		return c.decodeLegacy(token)
	}

	version := raw[0]
	if version != CurrentSchemaVersion {
		return nil, invalid(fmt.Sprintf("unsupported token version %d", version))
	}
	if len(raw) < minTokenSize {
		return nil, invalid("token too short")
	}

	nonce := raw[1 : 1+nonceSize]
	sealed := raw[1+nonceSize:]

	var plain []byte
	opened := false
	for _, aead := range c.aeads {
		plain, err = aead.Open(nil, nonce, sealed, raw[:1])
		if err == nil {
			opened = true
			break
		}
	}
	if !opened {
		return nil, invalid("authentication failed")
	}

	rec, err := UnmarshalBinary(plain)
	if err != nil {
		return nil, invalid(err.Error())
	}
	if rec.Version != version {
		return nil, invalid("payload version does not match token version")
	}
	if rec.Expired(c.now()) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, ErrSessionExpired)
	}
	return rec, nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSession, reason)
}

// legacyPayload is the cookie body written by the previous gateway. Field
// names were not consistent across its releases, hence the aliases.
type legacyPayload struct {
	SessionID       string `json:"session_id"`
	SID             string `json:"sid"`
	UserID          string `json:"user_id"`
	Sub             string `json:"sub"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	TenantID        string `json:"tenant_id"`
	TenantIDCamel   string `json:"tenantId"`
	NeedsOnboarding *bool  `json:"needs_onboarding"`
	OnboardingStep  string `json:"onboarding_step"`
	IssuedAt        int64  `json:"iat"`
	ExpiresAt       int64  `json:"exp"`
}

func (c *Codec) decodeLegacy(token string) (*Record, error) {
	if !c.allowLegacy {
		return nil, invalid("malformed token")
	}

	var raw []byte
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(token)
		if err == nil && len(b) > 0 && b[0] == '{' {
			raw = b
			break
		}
	}
	if raw == nil {
		return nil, invalid("malformed token")
	}

	var p legacyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalid("malformed legacy payload")
	}

	rec := &Record{
		ID:          firstNonEmpty(p.SessionID, p.SID),
		SubjectID:   firstNonEmpty(p.UserID, p.Sub),
		Email:       p.Email,
		DisplayName: p.Name,
		TenantID:    firstNonEmpty(p.TenantID, p.TenantIDCamel),
		Version:     LegacyVersion,
	}

	switch {
	case p.OnboardingStep != "":
		state, err := ParseOnboardingState(p.OnboardingStep)
		if err != nil {
			return nil, invalid("legacy onboarding step")
		}
		rec.OnboardingState = state
	case p.NeedsOnboarding != nil && !*p.NeedsOnboarding:
		rec.OnboardingState = StateComplete
	default:
		rec.OnboardingState = StateNotStarted
	}

	if p.ExpiresAt == 0 {
		return nil, invalid("legacy payload without expiry")
	}
	now := c.now()
	rec.ExpiresAt = time.Unix(p.ExpiresAt, 0).UTC()
	if p.IssuedAt > 0 {
		rec.IssuedAt = time.Unix(p.IssuedAt, 0).UTC()
	} else {
		rec.IssuedAt = now.UTC().Truncate(time.Second)
	}

	if err := rec.Validate(); err != nil {
		return nil, invalid(err.Error())
	}
	if rec.Expired(now) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, ErrSessionExpired)
	}

	c.logger.Warn().
		Str("session_id", rec.ID).
		Str("subject_id", rec.SubjectID).
		Msg("accepted legacy session cookie")
	return rec, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
