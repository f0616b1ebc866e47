package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/action-ledger/internal/models"
	"github.com/noah-isme/action-ledger/internal/observability"
	"github.com/noah-isme/action-ledger/internal/repository"
)

// RevocationResult is the outcome of an approved revocation.
type RevocationResult struct {
	Action               models.Action
	BlacklistRoleRemoved bool
	Effects              []Effect
}

// RevocationService drives the revocation lifecycle of ledger actions.
type RevocationService interface {
	RequestRevocation(ctx context.Context, id, requestor, reason string) (models.Action, error)
	DenyRevocation(ctx context.Context, id, approver, reason string) (models.Action, error)
	ApproveRevocation(ctx context.Context, id, approver string, allowed AllowedTypes, reason string) (RevocationResult, error)
}

// defaultDispatchTimeout bounds how long a revocation waits on the effect brokers.
const defaultDispatchTimeout = 3 * time.Second

type revocationService struct {
	repo       repository.ActionRepository
	players    repository.PlayerRepository
	dispatcher EffectDispatcher
	activity   ActivityRecorder
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time

	dispatchTimeout time.Duration
}

// NewRevocationService constructs the revocation workflow. players, dispatcher and activity may be nil.
func NewRevocationService(
	repo repository.ActionRepository,
	players repository.PlayerRepository,
	dispatcher EffectDispatcher,
	activity ActivityRecorder,
	logger zerolog.Logger,
) RevocationService {
	return &revocationService{
		repo:       repo,
		players:    players,
		dispatcher: dispatcher,
		activity:   activity,
		logger:     logger.With().Str("component", "revocation_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/action-ledger/internal/service/revocation"),
		now:        time.Now,

		dispatchTimeout: defaultDispatchTimeout,
	}
}

func (s *revocationService) RequestRevocation(ctx context.Context, id, requestor, reason string) (models.Action, error) {
	id = strings.TrimSpace(id)
	requestor = strings.TrimSpace(requestor)
	if id == "" || requestor == "" {
		return nil, invalidArgument("action id and requestor are required")
	}
	reason = strings.TrimSpace(reason)

	ctx, span := s.tracer.Start(ctx, "revocation.request")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.action_id", id))

	updated, err := s.repo.Update(ctx, id, func(action models.Action) error {
		rev := &action.Base().Revocation
		switch {
		case rev.IsRevoked():
			return ErrAlreadyRevoked
		case rev.Status == models.RevocationPending:
			return ErrRevocationPending
		}
		rev.Status = models.RevocationPending
		rev.Requestor = &requestor
		if reason != "" {
			rev.Reason = &reason
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	observability.Revocations().WithLabelValues(string(updated.Type()), string(models.RevocationPending)).Inc()
	s.recordActivity(ctx, requestor, "revocation.requested", updated, reason)
	return updated, nil
}

func (s *revocationService) DenyRevocation(ctx context.Context, id, approver, reason string) (models.Action, error) {
	id = strings.TrimSpace(id)
	approver = strings.TrimSpace(approver)
	if id == "" || approver == "" {
		return nil, invalidArgument("action id and approver are required")
	}
	reason = strings.TrimSpace(reason)

	ctx, span := s.tracer.Start(ctx, "revocation.deny")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.action_id", id))

	updated, err := s.repo.Update(ctx, id, func(action models.Action) error {
		rev := &action.Base().Revocation
		if rev.IsRevoked() {
			return ErrAlreadyRevoked
		}
		rev.Status = models.RevocationDenied
		rev.Approver = &approver
		if reason != "" {
			rev.Reason = &reason
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	observability.Revocations().WithLabelValues(string(updated.Type()), string(models.RevocationDenied)).Inc()
	s.recordActivity(ctx, approver, "revocation.denied", updated, reason)

	effect := newEffect(EffectRevocationDenied, updated, approver, s.now())
	effect.Reason = reason
	effect.Action = updated.Clone()
	s.dispatch(ctx, []Effect{effect})

	return updated, nil
}

func (s *revocationService) ApproveRevocation(ctx context.Context, id, approver string, allowed AllowedTypes, reason string) (RevocationResult, error) {
	id = strings.TrimSpace(id)
	approver = strings.TrimSpace(approver)
	if id == "" || approver == "" {
		return RevocationResult{}, invalidArgument("action id and approver are required")
	}
	reason = strings.TrimSpace(reason)

	ctx, span := s.tracer.Start(ctx, "revocation.approve")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.action_id", id))

	now := s.now()
	updated, err := s.repo.Update(ctx, id, func(action models.Action) error {
		if !allowed.Allows(action.Type()) {
			return fmt.Errorf("cannot revoke %s: %w", action.Type(), ErrPermissionDenied)
		}
		rev := &action.Base().Revocation
		if rev.IsRevoked() {
			return ErrAlreadyRevoked
		}
		ts := now.Unix()
		rev.Timestamp = &ts
		rev.Approver = &approver
		rev.Status = models.RevocationApproved
		if reason != "" {
			rev.Reason = &reason
		}
		return nil
	})
	if err != nil {
		return RevocationResult{}, s.fail(span, err)
	}

	observability.Revocations().WithLabelValues(string(updated.Type()), string(models.RevocationApproved)).Inc()
	s.recordActivity(ctx, approver, "revocation.approved", updated, reason)

	if updated.Type() == models.ActionTypeTarget {
		s.clearTargeting(ctx, updated)
	}

	effects, removed := approvalEffects(updated, approver, reason, now, func(discordID string) bool {
		return s.hasActiveBlacklistBan(ctx, discordID)
	})
	span.SetAttributes(
		attribute.Int("revocation.effects", len(effects)),
		attribute.Bool("revocation.blacklist_role_removed", removed),
	)
	s.dispatch(ctx, effects)

	return RevocationResult{
		Action:               updated.Clone(),
		BlacklistRoleRemoved: removed,
		Effects:              effects,
	}, nil
}

func (s *revocationService) hasActiveBlacklistBan(ctx context.Context, discordID string) bool {
	bans, err := s.repo.List(ctx, repository.ActionQuery{Types: []models.ActionType{models.ActionTypeBan}})
	if err != nil {
		// keep the role when unsure
		s.logger.Error().Err(err).Msg("failed to list blacklist bans")
		return true
	}

	active := AllOf(NotRevoked(), BlacklistBans())
	for _, ban := range bans {
		if active(ban) && models.HasIdentifier(ban, discordID) {
			return true
		}
	}
	return false
}

func (s *revocationService) clearTargeting(ctx context.Context, action models.Action) {
	if s.players == nil {
		return
	}
	license, ok := models.FindIdentifier(action, licensePrefix)
	if !ok {
		return
	}

	err := s.players.SetTargeting(ctx, strings.TrimPrefix(license, licensePrefix), false, "")
	if err != nil && !errors.Is(err, repository.ErrPlayerNotFound) {
		s.logger.Warn().Err(err).Str("action_id", action.Base().ID).Msg("failed to clear player targeting")
	}
}

func (s *revocationService) dispatch(ctx context.Context, effects []Effect) {
	if s.dispatcher == nil || len(effects) == 0 {
		return
	}
	// effects outlive the request context but not the dispatch timeout
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	if err := s.dispatcher.Dispatch(ctx, effects); err != nil {
		s.logger.Error().Err(err).Int("effects", len(effects)).Msg("failed to dispatch revocation effects")
	}
}

func (s *revocationService) recordActivity(ctx context.Context, admin, name string, action models.Action, reason string) {
	if s.activity == nil {
		return
	}
	entry := ActivityEntry{
		AdminName: admin,
		Action:    name,
		ActionID:  action.Base().ID,
		Message:   fmt.Sprintf("%s revocation of %s %s.", strings.TrimPrefix(name, "revocation."), action.Type(), action.Base().ID),
		Metadata:  map[string]interface{}{"reason": reason, "type": string(action.Type())},
	}
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record revocation activity")
	}
}

func (s *revocationService) fail(span trace.Span, err error) error {
	err = translateRepoError(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
