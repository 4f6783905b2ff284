package middleware

import (
	"errors"
	"net"
	"net/http"

	gateway "github.com/KuolDimDeng/Dott-Project-sub054"
	"github.com/KuolDimDeng/Dott-Project-sub054/cookie"
	"github.com/rs/zerolog/hlog"
)

// Options tunes [Gate].
type Options struct {
	// RedirectStatus is the status used for gate redirects. Defaults to
	// 303 See Other.
	RedirectStatus int
	// ClientIP extracts the caller address recorded on audit events.
	// Defaults to the host part of RemoteAddr.
	ClientIP func(*http.Request) string
}

// Gate returns middleware that runs the full session pipeline for each
// request.
//
// Anonymous requests (no session, invalid session, suspected hijack) reach
// next only for public paths. Membership inconsistencies fail with 403;
// store outages and committed responses fail with 503. All other denials
// redirect to the path chosen by the onboarding gate.
func Gate(engine *gateway.Engine, opts Options) func(http.Handler) http.Handler {
	if opts.RedirectStatus == 0 {
		opts.RedirectStatus = http.StatusSeeOther
	}
	if opts.ClientIP == nil {
		opts.ClientIP = remoteHost
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tw := cookie.NewTrackingWriter(w)
			ctx := gateway.WithClientIP(r.Context(), opts.ClientIP(r))
			r = r.WithContext(ctx)

			rec, tc, err := engine.GetSessionContext(tw, r)
			switch {
			case err == nil, errors.Is(err, gateway.ErrTenantRequired):
			case gateway.IsAnonymous(err):
				rec, tc = nil, nil
			case errors.Is(err, gateway.ErrTenantMembershipNotFound):
				hlog.FromRequest(r).Error().Err(err).Msg("tenant membership missing")
				http.Error(tw, "forbidden", http.StatusForbidden)
				return
			default:
				hlog.FromRequest(r).Error().Err(err).Msg("session resolution failed")
				http.Error(tw, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			d := engine.Admit(ctx, rec, r.URL.Path)
			if !d.Allow {
				http.Redirect(tw, r, d.RedirectTo, opts.RedirectStatus)
				return
			}

			if rec != nil {
				ctx = gateway.WithSessionContext(ctx, gateway.SessionContext{Session: rec, Tenant: tc})
			}
			next.ServeHTTP(tw, r.WithContext(ctx))
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
