package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/middleware"
	"github.com/noah-isme/action-ledger/internal/service"
	"github.com/noah-isme/action-ledger/internal/utils"
)

// HistoryHandler serves the ledger history table and the wager blacklist view.
type HistoryHandler struct {
	search    service.ActionSearchService
	ledger    service.ActionLedgerService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewHistoryHandler constructs the handler.
func NewHistoryHandler(search service.ActionSearchService, ledger service.ActionLedgerService, validate *validator.Validate, logger zerolog.Logger) *HistoryHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &HistoryHandler{
		search:    search,
		ledger:    ledger,
		validator: validate,
		logger:    logger.With().Str("component", "history_handler").Logger(),
	}
}

// Register attaches history routes to the router group. Extra handlers run before
// the search endpoint, typically a rate limiter.
func (h *HistoryHandler) Register(router fiber.Router, searchMiddleware ...fiber.Handler) {
	search := append(searchMiddleware, middleware.WithActor(h.searchHistory, middleware.AuthOptions{}))
	router.Get("/search", search...)
	router.Get("/actions/:id", middleware.WithActor(h.getAction, middleware.AuthOptions{}))
}

// RegisterWagerBlacklist attaches the wager blacklist listing to the router group.
func (h *HistoryHandler) RegisterWagerBlacklist(router fiber.Router) {
	router.Get("", middleware.WithActor(h.listWagerBlacklist, middleware.AuthOptions{Permissions: []string{permWagerStaff, permWagerHead}}))
}

func (h *HistoryHandler) searchHistory(c *fiber.Ctx, _ service.Actor) error {
	var req dto.HistorySearchRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.search.Search(c.UserContext(), service.SearchQuery{
		SortKey:     req.SortKey,
		SortDesc:    req.SortDesc,
		OffsetValue: req.OffsetValue,
		OffsetID:    req.OffsetID,
		FilterType:  req.Type,
		FilterAdmin: req.Admin,
		SearchType:  req.SearchType,
		SearchValue: req.SearchValue,
		Limit:       req.Limit,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to search history")
	}

	return utils.SendSuccess(c, "history", response)
}

func (h *HistoryHandler) getAction(c *fiber.Ctx, _ service.Actor) error {
	action, err := h.ledger.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load action")
	}

	return utils.SendSuccess(c, "action", dto.NewActionResponse(action))
}

func (h *HistoryHandler) listWagerBlacklist(c *fiber.Ctx, _ service.Actor) error {
	var req dto.WagerBlacklistListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	query := service.WagerBlacklistQuery{PlayerName: strings.TrimSpace(req.PlayerName)}
	if query.PlayerName == "" && strings.TrimSpace(req.Identifiers) != "" {
		parsed := utils.ParseIdentifiers(req.Identifiers)
		if len(parsed.Invalids) > 0 {
			return utils.Fail(c, fiber.StatusBadRequest, "invalid identifiers", fiber.Map{"invalid": parsed.Invalids})
		}
		query.Identifiers = parsed.IDs
	}

	actions, err := h.ledger.ListWagerBlacklist(c.UserContext(), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list wager blacklist")
	}

	return utils.OK(c, dto.NewActionResponses(actions), "wager blacklist", fiber.Map{"total": len(actions)})
}
