package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/models"
	"github.com/noah-isme/action-ledger/internal/observability"
	"github.com/noah-isme/action-ledger/internal/repository"
)

const (
	pcCheckAutoLinkWindow = time.Hour
	licensePrefix         = "license:"
	discordPrefix         = "discord:"
)

// LedgerConfig tunes identifier matching in the ledger.
type LedgerConfig struct {
	// RequiredHWIDMatches is the number of shared hardware ids that make FindMany
	// treat an action as belonging to the player. Zero disables hwid matching.
	RequiredHWIDMatches int
}

// WagerBlacklistQuery filters the active wager blacklist. At most one field is used;
// PlayerName wins when both are set.
type WagerBlacklistQuery struct {
	PlayerName  string
	Identifiers []string
}

// ActionLedgerService owns the creation and narrow mutation of ledger actions.
type ActionLedgerService interface {
	RegisterBan(ctx context.Context, payload dto.BanRequest) (string, error)
	RegisterWarn(ctx context.Context, payload dto.WarnRequest) (string, error)
	RegisterMute(ctx context.Context, payload dto.MuteRequest) (string, error)
	RegisterWagerBlacklist(ctx context.Context, payload dto.WagerBlacklistRequest) (string, error)
	RegisterTarget(ctx context.Context, payload dto.TargetRequest) (string, error)
	RegisterSummon(ctx context.Context, payload dto.SummonRequest) (string, error)
	RegisterPcCheck(ctx context.Context, payload dto.PcCheckRequest) (string, error)
	FindOne(ctx context.Context, id string) (models.Action, error)
	FindMany(ctx context.Context, ids, hwids []string, predicate ActionPredicate) ([]models.Action, error)
	ModifyBanDuration(ctx context.Context, id string, expiration *int64, author string) (models.Action, error)
	ModifyBanReason(ctx context.Context, id, reason, author string) (models.Action, error)
	LinkBan(ctx context.Context, pcCheckID, banID string) (models.Action, error)
	AckWarn(ctx context.Context, id string) (models.Action, error)
	ListWagerBlacklist(ctx context.Context, query WagerBlacklistQuery) ([]models.Action, error)
}

type actionLedgerService struct {
	repo      repository.ActionRepository
	players   repository.PlayerRepository
	ids       IDGenerator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	activity  ActivityRecorder
	config    LedgerConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewActionLedgerService constructs the ledger service. players and activity may be nil.
func NewActionLedgerService(
	repo repository.ActionRepository,
	players repository.PlayerRepository,
	ids IDGenerator,
	validate *validator.Validate,
	activity ActivityRecorder,
	config LedgerConfig,
	logger zerolog.Logger,
) ActionLedgerService {
	if ids == nil {
		ids = NewIDGenerator(repo)
	}
	return &actionLedgerService{
		repo:      repo,
		players:   players,
		ids:       ids,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		activity:  activity,
		config:    config,
		logger:    logger.With().Str("component", "action_ledger_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/action-ledger/internal/service/action_ledger"),
		now:       time.Now,
	}
}

func (s *actionLedgerService) RegisterBan(ctx context.Context, payload dto.BanRequest) (string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return "", wrapInvalid(err)
	}
	reason, err := s.cleanReason(payload.Reason)
	if err != nil {
		return "", err
	}

	ban := &models.Ban{
		ActionBase:  s.newBase(payload.ActionTarget, reason),
		HWIDs:       normalizeIdentifiers(payload.HWIDs),
		Expiration:  payload.Expiration,
		BanApprover: strings.TrimSpace(payload.BanApprover),
		Blacklist:   payload.Blacklist,
		PcCheckID:   strings.TrimSpace(payload.PcCheckID),
	}

	return s.register(ctx, ban, func(store repository.ActionRepository) error {
		if ban.PcCheckID != "" {
			return nil
		}
		return s.linkRecentPcCheck(ctx, store, ban)
	})
}

func (s *actionLedgerService) RegisterWarn(ctx context.Context, payload dto.WarnRequest) (string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return "", wrapInvalid(err)
	}
	reason, err := s.cleanReason(payload.Reason)
	if err != nil {
		return "", err
	}

	return s.register(ctx, &models.Warn{ActionBase: s.newBase(payload.ActionTarget, reason)}, nil)
}

func (s *actionLedgerService) RegisterMute(ctx context.Context, payload dto.MuteRequest) (string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return "", wrapInvalid(err)
	}
	reason, err := s.cleanReason(payload.Reason)
	if err != nil {
		return "", err
	}

	mute := &models.Mute{
		ActionBase: s.newBase(payload.ActionTarget, reason),
		Expiration: payload.Expiration,
	}
	return s.register(ctx, mute, nil)
}

func (s *actionLedgerService) RegisterWagerBlacklist(ctx context.Context, payload dto.WagerBlacklistRequest) (string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return "", wrapInvalid(err)
	}
	reason, err := s.cleanReason(payload.Reason)
	if err != nil {
		return "", err
	}

	return s.register(ctx, &models.WagerBlacklist{ActionBase: s.newBase(payload.ActionTarget, reason)}, nil)
}

func (s *actionLedgerService) RegisterTarget(ctx context.Context, payload dto.TargetRequest) (string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return "", wrapInvalid(err)
	}
	reason, err := s.cleanReason(payload.Reason)
	if err != nil {
		return "", err
	}

	target := &models.Target{ActionBase: s.newBase(payload.ActionTarget, reason)}
	id, err := s.register(ctx, target, nil)
	if err != nil {
		return "", err
	}

	s.setTargeting(ctx, target, true, target.Author)
	return id, nil
}

func (s *actionLedgerService) RegisterSummon(ctx context.Context, payload dto.SummonRequest) (string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return "", wrapInvalid(err)
	}

	return s.register(ctx, &models.Summon{ActionBase: s.newBase(payload.ActionTarget, "")}, nil)
}

func (s *actionLedgerService) RegisterPcCheck(ctx context.Context, payload dto.PcCheckRequest) (string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return "", wrapInvalid(err)
	}
	reason, err := s.cleanReason(payload.Reason)
	if err != nil {
		return "", err
	}

	proofs := normalizeIdentifiers(payload.Proofs)
	if proofs == nil {
		proofs = []string{}
	}
	check := &models.PcCheck{
		ActionBase: s.newBase(payload.ActionTarget, reason),
		Caught:     payload.Caught,
		Supervisor: strings.TrimSpace(payload.Supervisor),
		Approver:   strings.TrimSpace(payload.Approver),
		Proofs:     proofs,
		BanID:      strings.TrimSpace(payload.BanID),
	}

	return s.register(ctx, check, func(store repository.ActionRepository) error {
		if !check.Caught || check.BanID != "" {
			return nil
		}
		banID, err := s.findRecentPermanentBan(ctx, store, check)
		if err != nil {
			return err
		}
		check.BanID = banID
		return nil
	})
}

// register stamps and inserts action. beforeInsert runs inside the same
// transaction and may read or update other actions through store.
func (s *actionLedgerService) register(ctx context.Context, action models.Action, beforeInsert func(store repository.ActionRepository) error) (string, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.register")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.action_type", string(action.Type())))

	base := action.Base()
	if len(base.IDs) == 0 {
		return "", invalidArgument("at least one identifier is required")
	}

	id, err := s.ids.Next(ctx, action.Type())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate_id_failed")
		return "", err
	}
	base.ID = id
	base.Timestamp = s.now().Unix()

	err = s.repo.Transaction(ctx, func(store repository.ActionRepository) error {
		if beforeInsert != nil {
			if err := beforeInsert(store); err != nil {
				return err
			}
		}
		return store.Insert(ctx, action)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert_failed")
		s.logger.Error().Err(err).Str("action_type", string(action.Type())).Msg("failed to register action")
		return "", err
	}

	span.SetAttributes(attribute.String("ledger.action_id", id))
	observability.ActionsRegistered().WithLabelValues(string(action.Type())).Inc()
	s.recordActivity(ctx, base.Author, string(action.Type())+".registered", id,
		fmt.Sprintf("Registered %s %s.", action.Type(), id),
		map[string]interface{}{"ids": base.IDs})

	return id, nil
}

// linkRecentPcCheck points the newest unclaimed caught pc check from the last
// hour that shares an identifier with ban at the new ban.
func (s *actionLedgerService) linkRecentPcCheck(ctx context.Context, store repository.ActionRepository, ban *models.Ban) error {
	checks, err := store.List(ctx, repository.ActionQuery{Types: []models.ActionType{models.ActionTypePcCheck}})
	if err != nil {
		return err
	}

	cutoff := ban.Timestamp - int64(pcCheckAutoLinkWindow/time.Second)
	var newest *models.PcCheck
	for _, action := range checks {
		check := action.(*models.PcCheck)
		if check.Timestamp <= cutoff || !check.Caught || check.BanID != "" {
			continue
		}
		if !models.SharesIdentifier(check, ban.IDs) {
			continue
		}
		if newest == nil || check.Timestamp >= newest.Timestamp {
			newest = check
		}
	}
	if newest == nil {
		return nil
	}

	_, err = store.Update(ctx, newest.ID, func(action models.Action) error {
		check := action.(*models.PcCheck)
		if check.BanID == "" {
			check.BanID = ban.ID
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("pc_check_id", newest.ID).Str("ban_id", ban.ID).Msg("linked pc check to new ban")
	return nil
}

// findRecentPermanentBan returns the newest permanent, unrevoked ban from the
// last hour that shares an identifier with check.
func (s *actionLedgerService) findRecentPermanentBan(ctx context.Context, store repository.ActionRepository, check *models.PcCheck) (string, error) {
	bans, err := store.List(ctx, repository.ActionQuery{Types: []models.ActionType{models.ActionTypeBan}})
	if err != nil {
		return "", err
	}

	cutoff := check.Timestamp - int64(pcCheckAutoLinkWindow/time.Second)
	var newest *models.Ban
	for _, action := range bans {
		ban := action.(*models.Ban)
		if ban.Expiration != nil || ban.Revocation.IsRevoked() || ban.Timestamp <= cutoff {
			continue
		}
		if !models.SharesIdentifier(ban, check.IDs) {
			continue
		}
		if newest == nil || ban.Timestamp >= newest.Timestamp {
			newest = ban
		}
	}
	if newest == nil {
		return "", nil
	}
	return newest.ID, nil
}

func (s *actionLedgerService) FindOne(ctx context.Context, id string) (models.Action, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidArgument("action id is required")
	}

	action, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return action, nil
}

func (s *actionLedgerService) FindMany(ctx context.Context, ids, hwids []string, predicate ActionPredicate) ([]models.Action, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.find_many")
	defer span.End()

	actions, err := s.repo.List(ctx, repository.ActionQuery{})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	useHWIDs := len(hwids) > 0 && s.config.RequiredHWIDMatches > 0
	matches := make([]models.Action, 0)
	for _, action := range actions {
		if predicate != nil && !predicate(action) {
			continue
		}
		if models.SharesIdentifier(action, ids) {
			matches = append(matches, action)
			continue
		}
		if useHWIDs && countHWIDMatches(action, hwids) >= s.config.RequiredHWIDMatches {
			matches = append(matches, action)
		}
	}

	span.SetAttributes(attribute.Int("ledger.matches", len(matches)))
	return matches, nil
}

func (s *actionLedgerService) ModifyBanDuration(ctx context.Context, id string, expiration *int64, author string) (models.Action, error) {
	if strings.TrimSpace(author) == "" {
		return nil, invalidArgument("author is required")
	}
	if expiration != nil && *expiration <= 0 {
		return nil, invalidArgument("expiration must be a positive timestamp")
	}

	updated, err := s.mutateBan(ctx, id, func(ban *models.Ban) {
		ban.Expiration = cloneExpiration(expiration)
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]interface{}{"expiration": nil}
	if expiration != nil {
		meta["expiration"] = *expiration
	}
	s.recordActivity(ctx, author, "ban.duration_modified", id, fmt.Sprintf("Modified duration of ban %s.", id), meta)
	return updated, nil
}

func (s *actionLedgerService) ModifyBanReason(ctx context.Context, id, reason, author string) (models.Action, error) {
	if strings.TrimSpace(author) == "" {
		return nil, invalidArgument("author is required")
	}
	clean, err := s.cleanReason(reason)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutateBan(ctx, id, func(ban *models.Ban) {
		ban.OldReason = ban.Reason
		ban.Reason = clean
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, author, "ban.reason_modified", id, fmt.Sprintf("Modified reason of ban %s.", id), nil)
	return updated, nil
}

func (s *actionLedgerService) mutateBan(ctx context.Context, id string, mutate func(ban *models.Ban)) (models.Action, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidArgument("action id is required")
	}

	updated, err := s.repo.Update(ctx, id, func(action models.Action) error {
		ban, ok := action.(*models.Ban)
		if !ok {
			return fmt.Errorf("%s is a %s: %w", id, action.Type(), ErrWrongType)
		}
		if ban.Revocation.IsRevoked() {
			return ErrAlreadyRevoked
		}
		mutate(ban)
		return nil
	})
	if err != nil {
		return nil, translateRepoError(err)
	}
	return updated, nil
}

func (s *actionLedgerService) LinkBan(ctx context.Context, pcCheckID, banID string) (models.Action, error) {
	pcCheckID = strings.TrimSpace(pcCheckID)
	banID = strings.TrimSpace(banID)
	if pcCheckID == "" || banID == "" {
		return nil, invalidArgument("pc check id and ban id are required")
	}

	var linked models.Action
	err := s.repo.Transaction(ctx, func(store repository.ActionRepository) error {
		ban, err := store.FindByID(ctx, banID)
		if err != nil {
			return err
		}
		if ban.Type() != models.ActionTypeBan {
			return fmt.Errorf("%s is a %s: %w", banID, ban.Type(), ErrWrongType)
		}

		linked, err = store.Update(ctx, pcCheckID, func(action models.Action) error {
			check, ok := action.(*models.PcCheck)
			if !ok {
				return fmt.Errorf("%s is a %s: %w", pcCheckID, action.Type(), ErrWrongType)
			}
			check.BanID = banID
			return nil
		})
		return err
	})
	if err != nil {
		return nil, translateRepoError(err)
	}

	s.recordActivity(ctx, "", "pc_check.linked", pcCheckID, fmt.Sprintf("Linked ban %s to PC check %s.", banID, pcCheckID),
		map[string]interface{}{"ban_id": banID})
	return linked, nil
}

func (s *actionLedgerService) AckWarn(ctx context.Context, id string) (models.Action, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidArgument("action id is required")
	}

	updated, err := s.repo.Update(ctx, id, func(action models.Action) error {
		warn, ok := action.(*models.Warn)
		if !ok {
			return fmt.Errorf("%s is a %s: %w", id, action.Type(), ErrWrongType)
		}
		warn.Acked = true
		return nil
	})
	if err != nil {
		return nil, translateRepoError(err)
	}
	return updated, nil
}

func (s *actionLedgerService) ListWagerBlacklist(ctx context.Context, query WagerBlacklistQuery) ([]models.Action, error) {
	actions, err := s.repo.List(ctx, repository.ActionQuery{Types: []models.ActionType{models.ActionTypeWagerBlacklist}})
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(query.PlayerName)
	result := make([]models.Action, 0)
	for _, action := range actions {
		base := action.Base()
		if base.Revocation.IsRevoked() {
			continue
		}
		switch {
		case name != "":
			if base.PlayerName == "" || !fuzzyMatchFold(base.PlayerName, name) {
				continue
			}
		case len(query.Identifiers) > 0:
			if !models.SharesIdentifier(action, query.Identifiers) {
				continue
			}
		}
		result = append(result, action)
	}

	// newest first
	slices.Reverse(result)
	return result, nil
}

func (s *actionLedgerService) newBase(target dto.ActionTarget, reason string) models.ActionBase {
	return models.ActionBase{
		IDs:        normalizeIdentifiers(target.IDs),
		PlayerName: strings.TrimSpace(target.PlayerName),
		Reason:     reason,
		Author:     strings.TrimSpace(target.Author),
	}
}

func (s *actionLedgerService) cleanReason(reason string) (string, error) {
	clean := strings.TrimSpace(s.sanitizer.Sanitize(reason))
	if clean == "" {
		return "", invalidArgument("reason is required")
	}
	return clean, nil
}

func (s *actionLedgerService) setTargeting(ctx context.Context, action models.Action, targeted bool, by string) {
	if s.players == nil {
		return
	}
	license, ok := models.FindIdentifier(action, licensePrefix)
	if !ok {
		return
	}

	err := s.players.SetTargeting(ctx, strings.TrimPrefix(license, licensePrefix), targeted, by)
	if err != nil && !errors.Is(err, repository.ErrPlayerNotFound) {
		s.logger.Warn().Err(err).Str("action_id", action.Base().ID).Msg("failed to update player targeting")
	}
}

func (s *actionLedgerService) recordActivity(ctx context.Context, admin, action, actionID, message string, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	entry := ActivityEntry{
		AdminName: admin,
		Action:    action,
		ActionID:  actionID,
		Message:   message,
		Metadata:  metadata,
	}
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record ledger activity")
	}
}

// normalizeIdentifiers trims, drops empties and de-duplicates while keeping order.
func normalizeIdentifiers(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func cloneExpiration(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func translateRepoError(err error) error {
	if errors.Is(err, repository.ErrActionNotFound) {
		return ErrNotFound
	}
	return err
}
