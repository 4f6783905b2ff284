package fingerprint

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/rs/zerolog"
)

// ErrMismatch is the error callers surface when Validate reports a mismatch.
var ErrMismatch = errors.New("fingerprint mismatch")

// Reason explains a validation outcome. Values are stable and used in logs,
// audit events and metrics.
type Reason string

const (
	ReasonMatch        Reason = "fingerprint_match"
	ReasonMissing      Reason = "fingerprint_missing"
	ReasonMismatch     Reason = "fingerprint_mismatch"
	ReasonUnverifiable Reason = "fingerprint_unverifiable"
	ReasonError        Reason = "fingerprint_error"
	ReasonDisabled     Reason = "fingerprint_disabled"
)

// Result is the outcome of one validation.
//
// Backfill is set when the record carried no fingerprint and Current holds
// the value to persist.
type Result struct {
	Valid    bool
	Reason   Reason
	Backfill bool
	Current  string
}

// Validator compares a record's bound fingerprint against the request.
// Only a definite mismatch is invalid; inability to compute fails open.
type Validator struct {
	computer *Computer
	emitter  audit.Emitter
	enabled  bool
	now      func() time.Time
	logger   zerolog.Logger
}

type ValidatorOption func(*Validator)

// WithEnabled toggles validation. A disabled validator accepts everything.
func WithEnabled(enabled bool) ValidatorOption {
	return func(v *Validator) { v.enabled = enabled }
}

func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

func WithLogger(l zerolog.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = l }
}

func NewValidator(c *Computer, emitter audit.Emitter, opts ...ValidatorOption) *Validator {
	v := &Validator{
		computer: c,
		emitter:  emitter,
		enabled:  true,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Compute exposes the underlying computer for binding at session creation.
func (v *Validator) Compute(r *http.Request, salt []byte) (string, error) {
	return v.computer.Compute(r, salt)
}

// Enabled reports whether validation is active.
func (v *Validator) Enabled() bool { return v.enabled }

// Validate checks rec against r. On mismatch it emits exactly one
// SESSION_HIJACK_SUSPECTED event; callers must not emit another.
func (v *Validator) Validate(ctx context.Context, rec *session.Record, r *http.Request, salt []byte) Result {
	if !v.enabled {
		return Result{Valid: true, Reason: ReasonDisabled}
	}
	if len(salt) == 0 {
		if rec.Fingerprint != "" {
			v.logger.Warn().
				Str("session_id", rec.ID).
				Str("reason", string(ReasonUnverifiable)).
				Msg("fingerprint salt missing, cannot verify")
		}
		return Result{Valid: true, Reason: ReasonUnverifiable}
	}

	current, err := v.computer.Compute(r, salt)
	if err != nil {
		v.logger.Warn().Err(err).Str("session_id", rec.ID).Msg("fingerprint compute failed")
		return Result{Valid: true, Reason: ReasonError}
	}

	if rec.Fingerprint == "" {
		return Result{Valid: true, Reason: ReasonMissing, Backfill: true, Current: current}
	}

	if subtle.ConstantTimeCompare([]byte(rec.Fingerprint), []byte(current)) == 1 {
		return Result{Valid: true, Reason: ReasonMatch, Current: current}
	}

	if v.emitter != nil {
		v.emitter.Emit(ctx, audit.Event{
			Timestamp: v.now(),
			Type:      audit.TypeSessionHijackSuspected,
			SubjectID: rec.SubjectID,
			TenantID:  rec.TenantID,
			SessionID: rec.ID,
			IP:        remoteIP(r),
			Reason:    string(ReasonMismatch),
			Metadata:  map[string]string{"user_agent": r.UserAgent()},
		})
	}
	v.logger.Warn().
		Str("session_id", rec.ID).
		Str("subject_id", rec.SubjectID).
		Msg("session fingerprint mismatch")
	return Result{Valid: false, Reason: ReasonMismatch, Current: current}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
