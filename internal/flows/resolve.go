package flows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/cookie"
	"github.com/KuolDimDeng/Dott-Project-sub054/fingerprint"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/rs/zerolog"
)

// ResolveFailureKind classifies resolve failures for root-level mapping.
type ResolveFailureKind int

const (
	ResolveFailureNone ResolveFailureKind = iota
	ResolveFailureNoCredential
	ResolveFailureDecode
	ResolveFailureBootstrap
	ResolveFailureRevoked
	ResolveFailureStore
	ResolveFailureFingerprint
	ResolveFailureIssue
	ResolveFailureTenantRequired
	ResolveFailureMembershipMissing
	ResolveFailureMembershipUnavailable
)

// ResolveResult carries the resolved session or failure metadata.
//
// On ResolveFailureTenantRequired Record is set and Tenant is nil; on every
// other failure both are nil.
type ResolveResult struct {
	Failure ResolveFailureKind
	Err     error

	Record *session.Record
	Tenant *tenant.Context
	Source cookie.Source

	Fingerprint fingerprint.Reason
	Reissued    bool
	Legacy      bool
	ForcedSync  bool
	Refreshed   bool
	Backfilled  bool

	DecodeFailures    int
	BootstrapAccepted bool
	BootstrapRejected int
	Revoked           int
}

// ResolveOptions tunes a single resolution.
type ResolveOptions struct {
	// ForceRefresh extends the session regardless of remaining lifetime.
	ForceRefresh bool
}

type ResolveSessionStore interface {
	Get(ctx context.Context, id string) (*session.Record, error)
	Save(ctx context.Context, rec *session.Record) error
	Delete(ctx context.Context, id string) error
}

// ResolveDeps captures request resolution dependencies.
type ResolveDeps struct {
	Now     func() time.Time
	Extract func(*http.Request) []cookie.Candidate
	Redeem  func(context.Context, cookie.Candidate) (cookie.Credential, error)
	Decode  func(string) (*session.Record, error)

	Issue func(http.ResponseWriter, *http.Request, *session.Record) (string, error)
	Clear func(http.ResponseWriter, *http.Request) error

	FingerprintEnabled  bool
	Salt                func(*http.Request) ([]byte, bool)
	NewSalt             func() ([]byte, error)
	IssueSalt           func(http.ResponseWriter, *http.Request, []byte) error
	ValidateFingerprint func(context.Context, *session.Record, *http.Request, []byte) fingerprint.Result

	ResolveTenant func(context.Context, *session.Record) (*tenant.Context, error)

	TTL              time.Duration
	RefreshThreshold time.Duration

	SessionStore ResolveSessionStore
	EmitAudit    EmitAuditFunc
	Logger       zerolog.Logger
}

// RunResolve finds the first credential on r that maps to a live session,
// enforces fingerprint binding, reconciles the cookie with the store copy
// and binds the tenant.
//
// The store copy is authoritative. A cookie whose session is gone from the
// store is treated as revoked; a cookie that disagrees with the store is
// overwritten from it.
func RunResolve(ctx context.Context, w http.ResponseWriter, r *http.Request, opts ResolveOptions, deps ResolveDeps) ResolveResult {
	var res ResolveResult

	candidates := deps.Extract(r)
	if len(candidates) == 0 {
		res.Failure = ResolveFailureNoCredential
		res.Err = cookie.ErrNoCredential
		return res
	}

	res.Failure = ResolveFailureNoCredential
	res.Err = cookie.ErrNoCredential
	staleCookie := false

	for _, c := range candidates {
		cred, err := deps.Redeem(ctx, c)
		if err != nil {
			res.BootstrapRejected++
			res.Failure = ResolveFailureBootstrap
			res.Err = fmt.Errorf("%w: %w", session.ErrInvalidSession, err)
			deps.EmitAudit(ctx, audit.TypeBootstrapRejected, nil, bootstrapReason(err), nil)
			continue
		}

		var presented *session.Record
		id := cred.SessionID
		if cred.Token != "" {
			presented, err = deps.Decode(cred.Token)
			if err != nil {
				res.DecodeFailures++
				res.Failure = ResolveFailureDecode
				res.Err = err
				staleCookie = true
				continue
			}
			id = presented.ID
		}

		stored, err := deps.SessionStore.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			res.Revoked++
			res.Failure = ResolveFailureRevoked
			res.Err = fmt.Errorf("%w: session revoked", session.ErrInvalidSession)
			staleCookie = staleCookie || cred.Token != ""
			continue
		}
		if err != nil {
			deps.Logger.Error().Err(err).Str("session_id", id).Msg("session store lookup failed")
			return ResolveResult{Failure: ResolveFailureStore, Err: err}
		}
		if presented != nil && presented.SubjectID != stored.SubjectID {
			res.Failure = ResolveFailureDecode
			res.Err = fmt.Errorf("%w: subject does not match store", session.ErrInvalidSession)
			staleCookie = true
			continue
		}
		if stored.Expired(deps.Now()) {
			res.Revoked++
			res.Failure = ResolveFailureRevoked
			res.Err = fmt.Errorf("%w: %w", session.ErrInvalidSession, session.ErrSessionExpired)
			staleCookie = staleCookie || cred.Token != ""
			continue
		}

		if c.Source == cookie.SourceBootstrap {
			res.BootstrapAccepted = true
		}
		return finishResolve(ctx, w, r, opts, deps, res, c.Source, presented, stored)
	}

	if staleCookie {
		if err := deps.Clear(w, r); err != nil {
			deps.Logger.Debug().Err(err).Msg("could not clear stale session cookies")
		}
	}
	return res
}

func finishResolve(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	opts ResolveOptions,
	deps ResolveDeps,
	res ResolveResult,
	source cookie.Source,
	presented, stored *session.Record,
) ResolveResult {
	rec := *stored
	res.Source = source
	res.Failure = ResolveFailureNone
	res.Err = nil

	dirty := stored.Version < session.CurrentSchemaVersion
	reissue := source != cookie.SourceCookie

	if presented != nil {
		if presented.Version < session.CurrentSchemaVersion {
			res.Legacy = true
			reissue = true
		}
		if !presented.SyncEqual(stored) {
			res.ForcedSync = true
			reissue = true
			if presented.OnboardingState != stored.OnboardingState || presented.TenantID != stored.TenantID {
				deps.EmitAudit(ctx, audit.TypeSessionForcedSync, &rec, "cookie_out_of_date", map[string]string{
					"cookie_state": presented.OnboardingState.String(),
					"store_state":  stored.OnboardingState.String(),
				})
			}
		}
	}
	if dirty {
		res.Legacy = true
		reissue = true
	}

	if deps.FingerprintEnabled {
		salt, ok := deps.Salt(r)
		if !ok && rec.Fingerprint == "" {
			fresh, err := deps.NewSalt()
			if err == nil {
				err = deps.IssueSalt(w, r, fresh)
			}
			switch {
			case errors.Is(err, cookie.ErrResponseCommitted):
				return ResolveResult{Failure: ResolveFailureIssue, Err: err}
			case err != nil:
				deps.Logger.Warn().Err(err).Str("session_id", rec.ID).Msg("could not issue fingerprint salt")
			default:
				salt = fresh
			}
		}

		fp := deps.ValidateFingerprint(ctx, &rec, r, salt)
		res.Fingerprint = fp.Reason
		if !fp.Valid {
			if err := deps.SessionStore.Delete(ctx, rec.ID); err != nil {
				deps.Logger.Error().Err(err).Str("session_id", rec.ID).Msg("could not delete hijacked session")
			}
			if err := deps.Clear(w, r); err != nil {
				deps.Logger.Debug().Err(err).Msg("could not clear hijacked session cookies")
			}
			return ResolveResult{
				Failure:     ResolveFailureFingerprint,
				Err:         fingerprint.ErrMismatch,
				Source:      source,
				Fingerprint: fp.Reason,
			}
		}
		if fp.Backfill {
			rec.Fingerprint = fp.Current
			res.Backfilled = true
			dirty = true
			reissue = true
			deps.Logger.Debug().Str("session_id", rec.ID).Msg("fingerprint backfilled")
		}
	}

	now := deps.Now()
	if opts.ForceRefresh || (deps.RefreshThreshold > 0 && rec.ExpiresAt.Sub(now) < deps.RefreshThreshold) {
		rec.ExpiresAt = now.Add(deps.TTL).Truncate(time.Millisecond)
		res.Refreshed = true
		dirty = true
		reissue = true
	}

	if dirty {
		rec.Version = session.CurrentSchemaVersion
		if err := deps.SessionStore.Save(ctx, &rec); err != nil {
			deps.Logger.Error().Err(err).Str("session_id", rec.ID).Msg("session store write failed")
			return ResolveResult{Failure: ResolveFailureStore, Err: err}
		}
	}

	if reissue {
		if _, err := deps.Issue(w, r, &rec); err != nil {
			return ResolveResult{Failure: ResolveFailureIssue, Err: err}
		}
		res.Reissued = true
		if res.Legacy {
			deps.EmitAudit(ctx, audit.TypeLegacySessionReissued, &rec, "legacy_format", nil)
		}
	}
	rec.Version = session.CurrentSchemaVersion

	tc, err := deps.ResolveTenant(ctx, &rec)
	switch {
	case err == nil:
		res.Record = &rec
		res.Tenant = tc
	case errors.Is(err, tenant.ErrTenantRequired):
		res.Failure = ResolveFailureTenantRequired
		res.Err = err
		res.Record = &rec
	case errors.Is(err, tenant.ErrMembershipNotFound):
		deps.Logger.Error().
			Str("session_id", rec.ID).
			Str("subject_id", rec.SubjectID).
			Str("tenant_id", rec.TenantID).
			Msg("session names a tenant without membership")
		deps.EmitAudit(ctx, audit.TypeTenantMembershipAbsent, &rec, "membership_not_found", nil)
		res.Failure = ResolveFailureMembershipMissing
		res.Err = err
	default:
		deps.Logger.Error().Err(err).Str("session_id", rec.ID).Msg("membership lookup failed")
		res.Failure = ResolveFailureMembershipUnavailable
		res.Err = err
	}
	return res
}

func bootstrapReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
