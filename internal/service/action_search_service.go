package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/models"
	"github.com/noah-isme/action-ledger/internal/observability"
	"github.com/noah-isme/action-ledger/internal/repository"
	"github.com/noah-isme/action-ledger/internal/utils"
)

// Search types accepted by ActionSearchService.
const (
	SearchByActionID    = "actionId"
	SearchByReason      = "reason"
	SearchByIdentifiers = "identifiers"
)

const (
	sortKeyTimestamp      = "timestamp"
	defaultSearchLimit    = 100
	linkedPcCheckMaxDelta = 7 * 24 * time.Hour
)

// SearchQuery describes one page request against the ledger history.
type SearchQuery struct {
	SortKey     string
	SortDesc    bool
	OffsetValue *int64
	OffsetID    string
	FilterType  string
	FilterAdmin string
	SearchType  string
	SearchValue string
	Limit       int
}

// SearchConfig bounds page sizes.
type SearchConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// ActionSearchService answers history table queries.
type ActionSearchService interface {
	Search(ctx context.Context, query SearchQuery) (dto.HistorySearchResponse, error)
}

type actionSearchService struct {
	repo   repository.ActionRepository
	config SearchConfig
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewActionSearchService constructs the history search service.
func NewActionSearchService(repo repository.ActionRepository, config SearchConfig, logger zerolog.Logger) ActionSearchService {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaultSearchLimit
	}
	if config.MaxLimit < config.DefaultLimit {
		config.MaxLimit = config.DefaultLimit
	}
	return &actionSearchService{
		repo:   repo,
		config: config,
		logger: logger.With().Str("component", "action_search_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/action-ledger/internal/service/action_search"),
		now:    time.Now,
	}
}

func (s *actionSearchService) Search(ctx context.Context, query SearchQuery) (dto.HistorySearchResponse, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "history.search")
	defer span.End()

	matcher, err := s.prepare(&query)
	if err != nil {
		span.RecordError(err)
		return dto.HistorySearchResponse{}, err
	}
	span.SetAttributes(
		attribute.String("search.type", query.SearchType),
		attribute.Bool("search.desc", query.SortDesc),
		attribute.Int("search.limit", query.Limit),
	)

	all, err := s.repo.List(ctx, repository.ActionQuery{})
	if err != nil {
		span.RecordError(err)
		return dto.HistorySearchResponse{}, err
	}

	ordered := all
	if query.SortDesc {
		ordered = slices.Clone(all)
		slices.Reverse(ordered)
	}
	ordered = ordered[cursorStart(ordered, query):]

	page := make([]models.Action, 0, query.Limit+1)
	for _, action := range ordered {
		if query.FilterType != "" && string(action.Type()) != query.FilterType {
			continue
		}
		if query.FilterAdmin != "" && action.Base().Author != query.FilterAdmin {
			continue
		}
		if matcher != nil && !matcher(action) {
			continue
		}
		page = append(page, action)
		if len(page) > query.Limit {
			break
		}
	}

	hasReachedEnd := len(page) <= query.Limit
	if !hasReachedEnd {
		page = page[:query.Limit]
	}

	checks := make([]*models.PcCheck, 0)
	for _, action := range all {
		if check, ok := action.(*models.PcCheck); ok {
			checks = append(checks, check)
		}
	}

	now := s.now().Unix()
	history := make([]dto.HistoryItem, 0, len(page))
	for _, action := range page {
		history = append(history, postProcess(action, checks, now))
	}

	label := query.SearchType
	if label == "" {
		label = "none"
	}
	observability.SearchDuration().WithLabelValues(label).Observe(time.Since(started).Seconds())
	span.SetAttributes(attribute.Int("search.results", len(history)))

	return dto.HistorySearchResponse{History: history, HasReachedEnd: hasReachedEnd}, nil
}

// prepare validates and normalizes query and returns the search matcher, if any.
func (s *actionSearchService) prepare(query *SearchQuery) (func(models.Action) bool, error) {
	if query.SortKey == "" {
		query.SortKey = sortKeyTimestamp
	}
	if query.SortKey != sortKeyTimestamp {
		return nil, invalidArgument("invalid sorting key %q", query.SortKey)
	}

	query.OffsetID = strings.TrimSpace(query.OffsetID)
	if (query.OffsetValue == nil) != (query.OffsetID == "") {
		return nil, invalidArgument("offset value and offset id must be provided together")
	}

	query.FilterType = strings.TrimSpace(query.FilterType)
	if query.FilterType != "" && !models.ActionType(query.FilterType).Valid() {
		return nil, invalidArgument("unknown action type %q", query.FilterType)
	}
	query.FilterAdmin = strings.TrimSpace(query.FilterAdmin)

	switch {
	case query.Limit <= 0:
		query.Limit = s.config.DefaultLimit
	case query.Limit > s.config.MaxLimit:
		query.Limit = s.config.MaxLimit
	}

	if query.SearchType == "" {
		return nil, nil
	}
	if strings.TrimSpace(query.SearchValue) == "" {
		return nil, invalidArgument("search value is required")
	}

	switch query.SearchType {
	case SearchByActionID:
		needle := strings.ToUpper(strings.TrimSpace(query.SearchValue))
		return func(a models.Action) bool {
			return fuzzyMatch(a.Base().ID, needle)
		}, nil
	case SearchByReason:
		needle := strings.TrimSpace(query.SearchValue)
		return func(a models.Action) bool {
			reason := a.Base().Reason
			return reason != "" && fuzzyMatchFold(reason, needle)
		}, nil
	case SearchByIdentifiers:
		parsed := utils.ParseIdentifiers(query.SearchValue)
		if len(parsed.Invalids) > 0 {
			return nil, invalidArgument("invalid identifiers (%s). Prefix any identifier with their type, like 'fivem:123456' instead of just '123456'",
				strings.Join(parsed.Invalids, ","))
		}
		if len(parsed.IDs) == 0 && len(parsed.HWIDs) == 0 {
			return nil, invalidArgument("no valid identifiers found")
		}
		return func(a models.Action) bool {
			if models.SharesIdentifier(a, parsed.IDs) {
				return true
			}
			hwids := models.HWIDs(a)
			for _, hwid := range parsed.HWIDs {
				if slices.Contains(hwids, hwid) {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, invalidArgument("unknown search type %q", query.SearchType)
	}
}

// cursorStart returns the index of the first action strictly after the cursor
// in the (timestamp, id) order of ordered.
func cursorStart(ordered []models.Action, query SearchQuery) int {
	if query.OffsetValue == nil {
		return 0
	}
	value, id := *query.OffsetValue, query.OffsetID

	return sort.Search(len(ordered), func(i int) bool {
		base := ordered[i].Base()
		if query.SortDesc {
			return base.Timestamp < value || (base.Timestamp == value && base.ID < id)
		}
		return base.Timestamp > value || (base.Timestamp == value && base.ID > id)
	})
}

func postProcess(action models.Action, checks []*models.PcCheck, now int64) dto.HistoryItem {
	item := dto.HistoryItem{ActionResponse: dto.NewActionResponse(action)}

	switch v := action.(type) {
	case *models.Ban:
		switch {
		case v.Expiration == nil:
			item.BanExpiration = dto.BanExpirationPermanent
			if v.Blacklist {
				item.LinkedPcCheckID = linkedPcCheck(v, checks)
			}
		case *v.Expiration < now:
			item.BanExpiration = dto.BanExpirationExpired
		default:
			item.BanExpiration = dto.BanExpirationActive
		}
	case *models.WagerBlacklist:
		item.BanExpiration = dto.BanExpirationPermanent
	case *models.Warn:
		acked := v.Acked
		item.WarnAcked = &acked
	}

	return item
}

// linkedPcCheck finds the pc check belonging to a permanent blacklist ban: an
// explicit link wins, otherwise the newest check on the same player within a week.
func linkedPcCheck(ban *models.Ban, checks []*models.PcCheck) string {
	maxDelta := int64(linkedPcCheckMaxDelta / time.Second)
	var newest *models.PcCheck
	for _, check := range checks {
		delta := check.Timestamp - ban.Timestamp
		if delta < 0 {
			delta = -delta
		}
		if delta >= maxDelta || !models.SharesIdentifier(check, ban.IDs) {
			continue
		}
		if check.BanID == ban.ID || check.ID == ban.PcCheckID {
			return check.ID
		}
		if newest == nil || check.Timestamp >= newest.Timestamp {
			newest = check
		}
	}
	if newest == nil {
		return ""
	}
	return newest.ID
}
