package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/action-ledger/internal/middleware"
	"github.com/noah-isme/action-ledger/internal/service"
	"github.com/noah-isme/action-ledger/internal/utils"
)

const (
	permManageAdmins  = "manage.admins"
	permAll           = "all_permissions"
	permPcManager     = "pc.manager"
	maxLeaderboardDay = 90
)

// StatsHandler exposes ledger statistics.
type StatsHandler struct {
	service service.ActionStatsService
	logger  zerolog.Logger
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(service service.ActionStatsService, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger.With().Str("component", "stats_handler").Logger(),
	}
}

// Register attaches statistics routes to the router group.
func (h *StatsHandler) Register(router fiber.Router) {
	managers := middleware.AuthOptions{Permissions: []string{permManageAdmins}}

	router.Get("/actions", middleware.WithActor(h.actions, managers))
	router.Get("/players", middleware.WithActor(h.players, managers))
	router.Get("/dashboard", middleware.WithActor(h.dashboard, managers))
	router.Get("/wager-blacklist", middleware.WithActor(h.wagerBlacklist, middleware.AuthOptions{Permissions: []string{permManageAdmins, permWagerHead}}))
	router.Get("/pc-checkers", middleware.WithActor(h.pcCheckers, middleware.AuthOptions{Permissions: []string{permManageAdmins, permPcManager}}))
	router.Get("/admins/:name", middleware.WithActor(h.admin, middleware.AuthOptions{}))
}

func (h *StatsHandler) actions(c *fiber.Ctx, _ service.Actor) error {
	stats, err := h.service.ActionStats(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute action statistics")
	}
	return utils.SendSuccess(c, "action statistics", stats)
}

func (h *StatsHandler) players(c *fiber.Ctx, _ service.Actor) error {
	stats, err := h.service.PlayerStats(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute player statistics")
	}
	return utils.SendSuccess(c, "player statistics", stats)
}

func (h *StatsHandler) dashboard(c *fiber.Ctx, _ service.Actor) error {
	stats, err := h.service.Dashboard(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute dashboard")
	}
	return utils.SendSuccess(c, "dashboard statistics", stats)
}

func (h *StatsHandler) wagerBlacklist(c *fiber.Ctx, _ service.Actor) error {
	stats, err := h.service.WagerBlacklistStats(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute wager blacklist statistics")
	}
	return utils.SendSuccess(c, "wager blacklist statistics", stats)
}

func (h *StatsHandler) pcCheckers(c *fiber.Ctx, _ service.Actor) error {
	days, err := parseQueryInt(c, "days")
	if err != nil || days < 0 || days > maxLeaderboardDay {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
	}

	stats, err := h.service.PcCheckLeaderboard(c.UserContext(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute pc checker leaderboard")
	}
	return utils.SendSuccess(c, "pc checker leaderboard", stats)
}

// admin returns the stats of a single admin. Admins may always read their own.
func (h *StatsHandler) admin(c *fiber.Ctx, actor service.Actor) error {
	name := strings.TrimSpace(c.Params("name"))
	if !strings.EqualFold(name, actor.Name) && !actor.HasPermission(permAll) {
		return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required": []string{permAll}})
	}

	stats, err := h.service.AdminStats(c.UserContext(), name)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute admin statistics")
	}
	return utils.SendSuccess(c, "admin statistics", stats)
}
