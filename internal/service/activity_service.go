package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/models"
	"github.com/noah-isme/action-ledger/internal/repository"
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	AdminName string
	Action    string
	ActionID  string
	Message   string
	Metadata  map[string]interface{}
}

// ActivityRecorder defines behaviour for recording admin audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.AdminLogResponse, error)
}

// ActivityService exposes methods to query and persist the admin audit trail.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.AdminLogListRequest) (dto.AdminLogListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.AdminLogResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.AdminLogResponse{}, fmt.Errorf("action is required")
	}

	model := models.ActivityLog{
		AdminName: normalizeAdminName(entry.AdminName),
		Action:    strings.ToLower(strings.TrimSpace(entry.Action)),
		ActionID:  strings.TrimSpace(entry.ActionID),
		Message:   strings.TrimSpace(entry.Message),
		Metadata:  sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist activity log")
		return dto.AdminLogResponse{}, err
	}

	return dto.NewAdminLogResponse(model), nil
}

func (s *activityService) List(ctx context.Context, req dto.AdminLogListRequest) (dto.AdminLogListResponse, error) {
	filter := repository.ActivityLogFilter{
		Page:      req.Page,
		PageSize:  req.PageSize,
		AdminName: strings.TrimSpace(req.AdminName),
		Action:    strings.ToLower(strings.TrimSpace(req.Action)),
		ActionID:  strings.TrimSpace(req.ActionID),
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AdminLogListResponse{}, err
	}

	responses := make([]dto.AdminLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewAdminLogResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.AdminLogListResponse{Items: responses, Pagination: pagination}, nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "token") || strings.Contains(lower, "secret") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeAdminName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return "system"
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
