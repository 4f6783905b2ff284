package flows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/cookie"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/rs/zerolog"
)

// CreateFailureKind classifies create failures for root-level mapping.
type CreateFailureKind int

const (
	CreateFailureNone CreateFailureKind = iota
	CreateFailureInput
	CreateFailureTenantRequired
	CreateFailureStore
	CreateFailureIssue
)

// CreateInput is the caller-asserted identity of a new session.
type CreateInput struct {
	SubjectID       string
	Email           string
	DisplayName     string
	TenantID        string
	OnboardingState session.OnboardingState
}

// CreateResult carries the issued session or failure metadata.
type CreateResult struct {
	Failure CreateFailureKind
	Err     error
	Record  *session.Record
	Token   string
}

type CreateSessionStore interface {
	Save(ctx context.Context, rec *session.Record) error
}

// CreateDeps captures session creation dependencies.
type CreateDeps struct {
	Now   func() time.Time
	NewID func() (string, error)
	TTL   time.Duration

	Encode func(*session.Record) (string, error)
	Issue  func(http.ResponseWriter, *http.Request, *session.Record) (string, error)

	FingerprintEnabled bool
	NewSalt            func() ([]byte, error)
	IssueSalt          func(http.ResponseWriter, *http.Request, []byte) error
	Compute            func(*http.Request, []byte) (string, error)

	SessionStore CreateSessionStore
	EmitAudit    EmitAuditFunc
	Logger       zerolog.Logger
}

// ErrInvalidInput is wrapped by every CreateFailureInput error.
var ErrInvalidInput = errors.New("invalid session input")

// RunCreate persists a new session and, when w is non-nil, writes its
// cookies. The fingerprint is bound from r when fingerprinting is enabled;
// failure to compute it leaves the record unbound for later backfill.
func RunCreate(ctx context.Context, w http.ResponseWriter, r *http.Request, in CreateInput, deps CreateDeps) CreateResult {
	if strings.TrimSpace(in.SubjectID) == "" {
		return CreateResult{Failure: CreateFailureInput, Err: fmt.Errorf("%w: empty subject id", ErrInvalidInput)}
	}
	if !in.OnboardingState.Valid() {
		return CreateResult{Failure: CreateFailureInput, Err: fmt.Errorf("%w: %w", ErrInvalidInput, session.ErrUnknownState)}
	}
	if in.OnboardingState == session.StateComplete && in.TenantID == "" {
		return CreateResult{Failure: CreateFailureTenantRequired, Err: tenant.ErrTenantRequired}
	}

	id, err := deps.NewID()
	if err != nil {
		return CreateResult{Failure: CreateFailureStore, Err: fmt.Errorf("session id: %w", err)}
	}

	now := deps.Now().Truncate(time.Millisecond)
	rec := &session.Record{
		ID:              id,
		SubjectID:       in.SubjectID,
		Email:           in.Email,
		DisplayName:     in.DisplayName,
		TenantID:        in.TenantID,
		OnboardingState: in.OnboardingState,
		IssuedAt:        now,
		ExpiresAt:       now.Add(deps.TTL),
		Version:         session.CurrentSchemaVersion,
	}
	if err := rec.Validate(); err != nil {
		return CreateResult{Failure: CreateFailureInput, Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}
	}

	if deps.FingerprintEnabled && r != nil && w != nil {
		salt, err := deps.NewSalt()
		if err == nil {
			err = deps.IssueSalt(w, r, salt)
		}
		if errors.Is(err, cookie.ErrResponseCommitted) {
			return CreateResult{Failure: CreateFailureIssue, Err: err}
		}
		if err == nil {
			fp, cerr := deps.Compute(r, salt)
			if cerr != nil {
				deps.Logger.Warn().Err(cerr).Str("session_id", rec.ID).Msg("fingerprint compute failed at creation")
			} else {
				rec.Fingerprint = fp
			}
		} else {
			deps.Logger.Warn().Err(err).Str("session_id", rec.ID).Msg("could not issue fingerprint salt")
		}
	}

	if err := deps.SessionStore.Save(ctx, rec); err != nil {
		return CreateResult{Failure: CreateFailureStore, Err: err}
	}

	var token string
	if w != nil {
		token, err = deps.Issue(w, r, rec)
	} else {
		token, err = deps.Encode(rec)
	}
	if err != nil {
		return CreateResult{Failure: CreateFailureIssue, Err: err}
	}

	deps.EmitAudit(ctx, audit.TypeSessionCreated, rec, "", nil)
	return CreateResult{Record: rec, Token: token}
}
