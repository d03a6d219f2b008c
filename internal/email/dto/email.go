package dto

import emaildomain "welcome-agent/internal/email/domain"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListQuery filters a workspace's email history. Cursor is the opaque nextCursor of the previous page.
type ListQuery struct {
	WorkspaceID string             `form:"-"`
	AgentID     string             `form:"agentId"`
	Status      emaildomain.Status `form:"status"`
	Cursor      string             `form:"cursor"`
	Limit       int                `form:"limit"`
}

type ListResponse struct {
	Items      []emaildomain.Record `json:"items"`
	NextCursor string               `json:"nextCursor,omitempty"`
	Total      int64                `json:"total"`
}

// UpdateRecordRequest edits a draft awaiting review. Nil fields are left unchanged.
type UpdateRecordRequest struct {
	Subject        *string `json:"subject" validate:"omitempty,max=300"`
	Body           *string `json:"body"`
	RecipientEmail *string `json:"recipientEmail" validate:"omitempty,email"`
}
