package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/action-ledger/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// AdminLogListRequest defines filters for retrieving the admin audit trail.
type AdminLogListRequest struct {
	Page      int
	PageSize  int
	AdminName string
	Action    string
	ActionID  string
}

// AdminLogResponse serializes audit trail entries.
type AdminLogResponse struct {
	ID        uint                   `json:"id"`
	AdminName string                 `json:"admin_name"`
	Action    string                 `json:"action"`
	ActionID  string                 `json:"action_id,omitempty"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
}

// AdminLogListResponse wraps paginated audit trail entries.
type AdminLogListResponse struct {
	Items      []AdminLogResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewAdminLogResponse converts a model into an audit trail DTO.
func NewAdminLogResponse(entry models.ActivityLog) AdminLogResponse {
	return AdminLogResponse{
		ID:        entry.ID,
		AdminName: entry.AdminName,
		Action:    entry.Action,
		ActionID:  entry.ActionID,
		Message:   entry.Message,
		Metadata:  metadataFromJSON(entry.Metadata),
		CreatedAt: entry.CreatedAt,
	}
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}
