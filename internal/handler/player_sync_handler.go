package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/service"
	"github.com/noah-isme/action-ledger/internal/utils"
)

// SyncTokenHeader carries the shared secret of the game server.
const SyncTokenHeader = "X-Sync-Token"

// PlayerSyncHandler accepts roster pushes from the game server.
type PlayerSyncHandler struct {
	service service.PlayerSyncService
	logger  zerolog.Logger
}

// NewPlayerSyncHandler constructs a player sync handler.
func NewPlayerSyncHandler(service service.PlayerSyncService, logger zerolog.Logger) *PlayerSyncHandler {
	return &PlayerSyncHandler{
		service: service,
		logger:  logger.With().Str("component", "player_sync_handler").Logger(),
	}
}

// Register wires player sync routes.
func (h *PlayerSyncHandler) Register(router fiber.Router) {
	router.Post("/sync", h.sync)
}

func (h *PlayerSyncHandler) sync(c *fiber.Ctx) error {
	var payload dto.PlayerSyncRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.SyncPlayers(c.UserContext(), c.Get(SyncTokenHeader), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSyncDisabled):
			return utils.SendError(c, fiber.StatusForbidden, "player sync disabled")
		case errors.Is(err, service.ErrSyncUnauthorized):
			return utils.SendError(c, fiber.StatusForbidden, "invalid token")
		}
		return respondError(c, h.logger, err, "player sync failed")
	}

	return utils.SendSuccess(c, "players synced", resp)
}
