package commands

import (
	"context"
	"fmt"

	gateway "github.com/KuolDimDeng/Dott-Project-sub054"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/rs/zerolog"
)

type AdminCmd struct {
	ForceComplete ForceCompleteCmd `cmd:"" help:"Move a session straight to COMPLETE. The session must already have a tenant."`
	Reset         ResetCmd         `cmd:"" help:"Return a session to NOT_STARTED and unbind its tenant."`
	Revoke        RevokeCmd        `cmd:"" help:"Invalidate one session."`
	RevokeSubject RevokeSubjectCmd `cmd:"" help:"Invalidate every session of a subject."`
}

type adminTarget struct {
	Actor  string      `help:"operator recorded in the audit trail" required:"" env:"SESSIONGATE_ACTOR"`
	Engine EngineFlags `embed:""`
}

func (a *adminTarget) run(ctx context.Context, globals *Globals, fn func(context.Context, *gateway.Engine, zerolog.Logger) error) error {
	logger := setupLogger(globals.Dev)
	engine, cleanup, err := buildEngine(ctx, &a.Engine, false, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, engine, logger.With().Str("actor", a.Actor).Logger())
}

type ForceCompleteCmd struct {
	SessionID string `arg:"" help:"session id"`
	Target adminTarget `embed:""`
}

func (c *ForceCompleteCmd) Run(ctx context.Context, globals *Globals) error {
	return c.Target.run(ctx, globals, func(ctx context.Context, e *gateway.Engine, logger zerolog.Logger) error {
		rec, err := e.ForceCompleteOnboarding(ctx, c.SessionID, c.Target.Actor)
		if err != nil {
			return fmt.Errorf("force complete %s: %w", c.SessionID, err)
		}
		logStateChange(logger, rec, "onboarding force-completed")
		return nil
	})
}

type ResetCmd struct {
	SessionID string `arg:"" help:"session id"`
	Target adminTarget `embed:""`
}

func (c *ResetCmd) Run(ctx context.Context, globals *Globals) error {
	return c.Target.run(ctx, globals, func(ctx context.Context, e *gateway.Engine, logger zerolog.Logger) error {
		rec, err := e.ResetOnboarding(ctx, c.SessionID, c.Target.Actor)
		if err != nil {
			return fmt.Errorf("reset %s: %w", c.SessionID, err)
		}
		logStateChange(logger, rec, "onboarding reset")
		return nil
	})
}

type RevokeCmd struct {
	SessionID string `arg:"" help:"session id"`
	Reason    string `help:"reason recorded in the audit trail" default:"admin_revoke"`
	Target adminTarget `embed:""`
}

func (c *RevokeCmd) Run(ctx context.Context, globals *Globals) error {
	return c.Target.run(ctx, globals, func(ctx context.Context, e *gateway.Engine, logger zerolog.Logger) error {
		if err := e.InvalidateSession(ctx, c.SessionID, c.Reason); err != nil {
			return err
		}
		logger.Info().Str("session_id", c.SessionID).Msg("session revoked")
		return nil
	})
}

type RevokeSubjectCmd struct {
	SubjectID string `arg:"" help:"subject id"`
	Reason    string `help:"reason recorded in the audit trail" default:"admin_revoke"`
	Target adminTarget `embed:""`
}

func (c *RevokeSubjectCmd) Run(ctx context.Context, globals *Globals) error {
	return c.Target.run(ctx, globals, func(ctx context.Context, e *gateway.Engine, logger zerolog.Logger) error {
		n, err := e.InvalidateSubject(ctx, c.SubjectID, c.Reason)
		if err != nil {
			return err
		}
		logger.Info().Str("subject_id", c.SubjectID).Int("sessions", n).Msg("subject sessions revoked")
		return nil
	})
}

func logStateChange(logger zerolog.Logger, rec *session.Record, msg string) {
	logger.Info().
		Str("session_id", rec.ID).
		Str("tenant_id", rec.TenantID).
		Str("onboarding_state", rec.OnboardingState.String()).
		Msg(msg)
}
