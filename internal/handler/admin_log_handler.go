package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/middleware"
	"github.com/noah-isme/action-ledger/internal/service"
	"github.com/noah-isme/action-ledger/internal/utils"
)

// AdminLogHandler exposes the admin audit trail.
type AdminLogHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewAdminLogHandler constructs the handler.
func NewAdminLogHandler(service service.ActivityService, logger zerolog.Logger) *AdminLogHandler {
	return &AdminLogHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_log_handler").Logger(),
	}
}

// Register attaches audit trail routes to the router group.
func (h *AdminLogHandler) Register(router fiber.Router) {
	router.Get("", middleware.RequirePermission(permManageAdmins), middleware.WithActor(h.list, middleware.AuthOptions{}))
}

func (h *AdminLogHandler) list(c *fiber.Ctx, _ service.Actor) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if page <= 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	if pageSize <= 0 {
		pageSize = 25
	} else if pageSize > 200 {
		pageSize = 200
	}

	response, err := h.service.List(c.UserContext(), dto.AdminLogListRequest{
		Page:      page,
		PageSize:  pageSize,
		AdminName: c.Query("admin"),
		Action:    c.Query("action"),
		ActionID:  c.Query("action_id"),
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list admin logs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list admin logs")
	}

	return utils.OK(c, response.Items, "admin logs", response.Pagination)
}
