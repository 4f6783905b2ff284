package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// OnboardingState is the position of a session's subject in the onboarding
// flow. The zero value is StateNotStarted. States are totally ordered.
type OnboardingState uint8

const (
	StateNotStarted OnboardingState = iota
	StateBusinessInfo
	StateSubscription
	StatePayment
	StateSetup
	StateComplete
)

var stateNames = [...]string{
	StateNotStarted:   "NOT_STARTED",
	StateBusinessInfo: "BUSINESS_INFO",
	StateSubscription: "SUBSCRIPTION",
	StatePayment:      "PAYMENT",
	StateSetup:        "SETUP",
	StateComplete:     "COMPLETE",
}

// ErrUnknownState is returned when parsing an onboarding state name fails.
var ErrUnknownState = errors.New("unknown onboarding state")

// Valid reports whether s is one of the defined states.
func (s OnboardingState) Valid() bool {
	return s <= StateComplete
}

func (s OnboardingState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("OnboardingState(%d)", uint8(s))
	}
	return stateNames[s]
}

// Next returns the state following s. COMPLETE has no successor and is
// returned unchanged.
func (s OnboardingState) Next() OnboardingState {
	if s >= StateComplete {
		return StateComplete
	}
	return s + 1
}

// MarshalText implements encoding.TextMarshaler.
func (s OnboardingState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrUnknownState
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OnboardingState) UnmarshalText(text []byte) error {
	parsed, err := ParseOnboardingState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseOnboardingState accepts the canonical upper-case names as well as the
// lower-case, dash or underscore separated forms used in URLs.
func ParseOnboardingState(v string) (OnboardingState, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), "-", "_"))
	for i, name := range stateNames {
		if name == norm {
			return OnboardingState(i), nil
		}
	}
	return StateNotStarted, fmt.Errorf("%w: %q", ErrUnknownState, v)
}

// Schema versions of the binary record payload. LegacyVersion marks a record
// that was decoded from the pre-AEAD JSON cookie format and must be re-issued.
const (
	LegacyVersion        uint8 = 0
	SchemaVersionV1      uint8 = 1
	CurrentSchemaVersion uint8 = 2
)

// Record is the server-side view of one authenticated session.
//
// An empty TenantID means no tenant is bound yet. Record holds no reference
// types, so a plain assignment is a full copy.
type Record struct {
	ID          string
	SubjectID   string
	Email       string
	DisplayName string
	TenantID    string

	OnboardingState OnboardingState

	IssuedAt  time.Time
	ExpiresAt time.Time

	// Fingerprint is the hex digest bound at creation or backfilled on the
	// first validated request. Empty means absent.
	Fingerprint string

	// Version is the schema version the record was decoded from.
	Version uint8
}

// HasTenant reports whether a tenant is bound to the record.
func (r *Record) HasTenant() bool {
	return r != nil && r.TenantID != ""
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Validate checks structural invariants that every persisted or decoded
// record must satisfy.
func (r *Record) Validate() error {
	if r == nil {
		return errors.New("session: nil record")
	}
	if r.ID == "" {
		return errors.New("session: empty session id")
	}
	if r.SubjectID == "" {
		return errors.New("session: empty subject id")
	}
	if !r.OnboardingState.Valid() {
		return ErrUnknownState
	}
	if !r.ExpiresAt.After(r.IssuedAt) {
		return errors.New("session: expiresAt must be after issuedAt")
	}
	return nil
}

// SyncEqual reports whether two records agree on every field the store is
// authoritative for. Version is ignored.
func (r *Record) SyncEqual(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.ID == o.ID &&
		r.SubjectID == o.SubjectID &&
		r.Email == o.Email &&
		r.DisplayName == o.DisplayName &&
		r.TenantID == o.TenantID &&
		r.OnboardingState == o.OnboardingState &&
		r.Fingerprint == o.Fingerprint &&
		r.IssuedAt.Equal(o.IssuedAt) &&
		r.ExpiresAt.Equal(o.ExpiresAt)
}
