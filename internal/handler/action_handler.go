package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/middleware"
	"github.com/noah-isme/action-ledger/internal/models"
	"github.com/noah-isme/action-ledger/internal/service"
	"github.com/noah-isme/action-ledger/internal/utils"
)

const (
	// Bans at least this long, or permanent, need a second admin to revoke or issue.
	longBanSeconds = int64(7 * 24 * 60 * 60)
	// Only short bans may have their duration changed, and only to another short duration.
	modifiableBanSeconds = int64(4 * 24 * 60 * 60)

	permBan          = "players.ban"
	permWarn         = "players.warn"
	permMute         = "players.mute"
	permApproveBans  = "players.approve_bans"
	permManage       = "players.manage"
	permPcChecker    = "players.pc_checker"
	permWebPcChecker = "web.pc_checker"
	permWagerStaff   = "wager.staff"
	permWagerHead    = "wager.head"
)

var revokePermissions = []string{permBan, permWarn, permMute, permWagerHead, "players.target"}

// ActionHandler exposes the endpoints that issue and mutate ledger actions.
type ActionHandler struct {
	ledger     service.ActionLedgerService
	revocation service.RevocationService
	limiter    service.BanRateLimiter
	logger     zerolog.Logger
	now        func() time.Time
}

// NewActionHandler constructs the handler. limiter may be nil to disable ban throttling.
func NewActionHandler(ledger service.ActionLedgerService, revocation service.RevocationService, limiter service.BanRateLimiter, logger zerolog.Logger) *ActionHandler {
	return &ActionHandler{
		ledger:     ledger,
		revocation: revocation,
		limiter:    limiter,
		logger:     logger.With().Str("component", "action_handler").Logger(),
		now:        time.Now,
	}
}

// Register attaches action routes to the router group.
func (h *ActionHandler) Register(router fiber.Router) {
	router.Post("/ban", middleware.WithActor(h.ban, middleware.AuthOptions{Permissions: []string{permBan}}))
	router.Post("/warn", middleware.WithActor(h.warn, middleware.AuthOptions{Permissions: []string{permWarn}}))
	router.Post("/mute", middleware.WithActor(h.mute, middleware.AuthOptions{Permissions: []string{permMute}}))
	router.Post("/wagerblacklist", middleware.WithActor(h.wagerBlacklist, middleware.AuthOptions{Permissions: []string{permWagerStaff, permWagerHead}}))
	router.Post("/target", middleware.WithActor(h.target, middleware.AuthOptions{Permissions: []string{permManage}}))
	router.Post("/summon", middleware.WithActor(h.summon, middleware.AuthOptions{Permissions: []string{permPcChecker, permWebPcChecker}}))
	router.Post("/pc-check", middleware.WithActor(h.pcCheck, middleware.AuthOptions{Permissions: []string{permPcChecker, permWebPcChecker}}))

	router.Get("/:id", middleware.WithActor(h.get, middleware.AuthOptions{}))
	router.Post("/:id/ack", middleware.WithActor(h.ack, middleware.AuthOptions{}))
	router.Patch("/:id/duration", middleware.WithActor(h.modifyDuration, middleware.AuthOptions{Permissions: []string{permBan}}))
	router.Patch("/:id/reason", middleware.WithActor(h.modifyReason, middleware.AuthOptions{Permissions: []string{permBan}}))

	router.Post("/:id/revoke", middleware.WithActor(h.revoke, middleware.AuthOptions{Permissions: revokePermissions}))
	router.Post("/:id/revocation/approve", middleware.WithActor(h.approveRevocation, middleware.AuthOptions{Permissions: []string{permApproveBans}}))
	router.Post("/:id/revocation/deny", middleware.WithActor(h.denyRevocation, middleware.AuthOptions{Permissions: []string{permApproveBans}}))
}

// RegisterPcChecks attaches the PC check routes that live outside the actions group.
func (h *ActionHandler) RegisterPcChecks(router fiber.Router) {
	router.Post("/:id/link-ban", middleware.WithActor(h.linkBan, middleware.AuthOptions{Permissions: []string{permPcChecker, permWebPcChecker}}))
}

func (h *ActionHandler) ban(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.BanRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Author = actor.Name

	if payload.Expiration == nil || *payload.Expiration-h.now().Unix() >= longBanSeconds {
		if actor.HasPermission(permApproveBans) {
			payload.BanApprover = ""
		} else if strings.TrimSpace(payload.BanApprover) == "" {
			return utils.SendError(c, fiber.StatusBadRequest, "an approver is required for bans longer than 1 week")
		}
	} else {
		payload.BanApprover = ""
	}

	if h.limiter != nil && !h.limiter.Allow(c.UserContext(), actor.Name) {
		return utils.SendError(c, fiber.StatusTooManyRequests, "ban rate limit reached, try again later")
	}

	id, err := h.ledger.RegisterBan(c.UserContext(), payload)
	return h.created(c, id, models.ActionTypeBan, err)
}

func (h *ActionHandler) warn(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.WarnRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Author = actor.Name

	id, err := h.ledger.RegisterWarn(c.UserContext(), payload)
	return h.created(c, id, models.ActionTypeWarn, err)
}

func (h *ActionHandler) mute(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.MuteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Author = actor.Name

	id, err := h.ledger.RegisterMute(c.UserContext(), payload)
	return h.created(c, id, models.ActionTypeMute, err)
}

func (h *ActionHandler) wagerBlacklist(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.WagerBlacklistRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Author = actor.Name

	id, err := h.ledger.RegisterWagerBlacklist(c.UserContext(), payload)
	return h.created(c, id, models.ActionTypeWagerBlacklist, err)
}

func (h *ActionHandler) target(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.TargetRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Author = actor.Name

	id, err := h.ledger.RegisterTarget(c.UserContext(), payload)
	return h.created(c, id, models.ActionTypeTarget, err)
}

func (h *ActionHandler) summon(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.SummonRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Author = actor.Name

	id, err := h.ledger.RegisterSummon(c.UserContext(), payload)
	return h.created(c, id, models.ActionTypeSummon, err)
}

func (h *ActionHandler) pcCheck(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.PcCheckRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Author = actor.Name
	if payload.Proofs == nil {
		payload.Proofs = []string{}
	}

	id, err := h.ledger.RegisterPcCheck(c.UserContext(), payload)
	return h.created(c, id, models.ActionTypePcCheck, err)
}

func (h *ActionHandler) created(c *fiber.Ctx, id string, actionType models.ActionType, err error) error {
	if err != nil {
		if errors.Is(err, service.ErrIDSpaceExhausted) {
			requestLogger(h.logger, c).Error().Err(err).Str("type", string(actionType)).Msg("action id space exhausted")
			return utils.SendError(c, fiber.StatusServiceUnavailable, "unable to allocate an action id")
		}
		return respondError(c, h.logger, err, fmt.Sprintf("failed to register %s", actionType))
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, fmt.Sprintf("%s registered", actionType), dto.ActionCreatedResponse{
		ID:   id,
		Type: actionType,
	})
}

func (h *ActionHandler) get(c *fiber.Ctx, _ service.Actor) error {
	action, err := h.ledger.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load action")
	}

	return utils.SendSuccess(c, "action", dto.NewActionResponse(action))
}

func (h *ActionHandler) ack(c *fiber.Ctx, _ service.Actor) error {
	action, err := h.ledger.AckWarn(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to acknowledge warning")
	}

	return utils.SendSuccess(c, "warning acknowledged", dto.NewActionResponse(action))
}

func (h *ActionHandler) modifyDuration(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.ModifyDurationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	current, err := h.ledger.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to modify ban")
	}
	ban, ok := current.(*models.Ban)
	if !ok {
		return utils.SendError(c, fiber.StatusConflict, "this action is not a ban")
	}
	if ban.Revocation.IsRevoked() {
		return utils.SendError(c, fiber.StatusConflict, "this ban is revoked")
	}
	if ban.Expiration == nil {
		return utils.SendError(c, fiber.StatusConflict, "this ban is permanent")
	}
	if *ban.Expiration-ban.Timestamp > modifiableBanSeconds {
		return utils.SendError(c, fiber.StatusConflict, "this ban is longer than 4 days and cannot be modified")
	}
	if payload.Expiration == nil || *payload.Expiration-ban.Timestamp > modifiableBanSeconds {
		return utils.SendError(c, fiber.StatusBadRequest, "the new duration cannot be longer than 4 days")
	}
	if *payload.Expiration <= ban.Timestamp {
		return utils.SendError(c, fiber.StatusBadRequest, "the new expiration must be after the ban was issued")
	}

	updated, err := h.ledger.ModifyBanDuration(c.UserContext(), ban.ID, payload.Expiration, actor.Name)
	if err != nil {
		return respondError(c, h.logger, err, "failed to modify ban")
	}

	return utils.SendSuccess(c, "ban duration modified", dto.NewActionResponse(updated))
}

func (h *ActionHandler) modifyReason(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.ModifyReasonRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	updated, err := h.ledger.ModifyBanReason(c.UserContext(), c.Params("id"), payload.Reason, actor.Name)
	if err != nil {
		return respondError(c, h.logger, err, "failed to modify ban")
	}

	return utils.SendSuccess(c, "ban reason modified", dto.NewActionResponse(updated))
}

func (h *ActionHandler) linkBan(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.LinkBanRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	updated, err := h.ledger.LinkBan(c.UserContext(), c.Params("id"), payload.BanID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to link ban")
	}

	requestLogger(h.logger, c).Info().
		Str("admin", actor.Name).
		Str("pc_check_id", updated.Base().ID).
		Str("ban_id", payload.BanID).
		Msg("pc check linked to ban")
	return utils.SendSuccess(c, "ban linked", dto.NewActionResponse(updated))
}

func (h *ActionHandler) revoke(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.RevocationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	current, err := h.ledger.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to revoke action")
	}
	allowed := actor.RevocableTypes()
	if !allowed.Allows(current.Type()) {
		return utils.SendError(c, fiber.StatusForbidden, service.ErrPermissionDenied.Error())
	}

	if isLongBan(current) {
		pending, err := h.revocation.RequestRevocation(c.UserContext(), current.Base().ID, actor.Name, payload.Reason)
		if err != nil {
			return respondError(c, h.logger, err, "failed to request revocation")
		}
		return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "revocation approval requested", dto.RevocationResponse{
			Action:  dto.NewActionResponse(pending),
			Pending: true,
		})
	}

	if current.Base().Revocation.Status == models.RevocationPending {
		return utils.SendError(c, fiber.StatusConflict, service.ErrRevocationPending.Error())
	}

	result, err := h.revocation.ApproveRevocation(c.UserContext(), current.Base().ID, actor.Name, allowed, payload.Reason)
	if err != nil {
		return respondError(c, h.logger, err, "failed to revoke action")
	}

	return utils.SendSuccess(c, "action revoked", newRevocationResponse(result))
}

func (h *ActionHandler) approveRevocation(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.RevocationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	current, err := h.ledger.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to approve revocation")
	}
	if current.Base().Revocation.Status != models.RevocationPending {
		return utils.SendError(c, fiber.StatusConflict, "this action has no pending revocation")
	}

	result, err := h.revocation.ApproveRevocation(c.UserContext(), current.Base().ID, actor.Name, service.AnyType(), payload.Reason)
	if err != nil {
		return respondError(c, h.logger, err, "failed to approve revocation")
	}

	return utils.SendSuccess(c, "revocation approved", newRevocationResponse(result))
}

func (h *ActionHandler) denyRevocation(c *fiber.Ctx, actor service.Actor) error {
	var payload dto.RevocationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	denied, err := h.revocation.DenyRevocation(c.UserContext(), c.Params("id"), actor.Name, payload.Reason)
	if err != nil {
		return respondError(c, h.logger, err, "failed to deny revocation")
	}

	return utils.SendSuccess(c, "revocation denied", dto.RevocationResponse{Action: dto.NewActionResponse(denied)})
}

func isLongBan(action models.Action) bool {
	ban, ok := action.(*models.Ban)
	if !ok {
		return false
	}
	return ban.Expiration == nil || *ban.Expiration-ban.Timestamp >= longBanSeconds
}

func newRevocationResponse(result service.RevocationResult) dto.RevocationResponse {
	effects := make([]string, 0, len(result.Effects))
	for _, effect := range result.Effects {
		effects = append(effects, string(effect.Kind))
	}
	return dto.RevocationResponse{
		Action:               dto.NewActionResponse(result.Action),
		BlacklistRoleRemoved: result.BlacklistRoleRemoved,
		Effects:              effects,
	}
}
