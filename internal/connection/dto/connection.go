package dto

import (
	"time"

	"welcome-agent/internal/connection/domain"
)

// SaveInput carries freshly granted OAuth tokens for a mailbox.
type SaveInput struct {
	WorkspaceID string
	UserID      string
	Tokens      domain.Tokens
}

type SendInput struct {
	ConnectionID string
	To           string
	Subject      string
	Body         string
	// Test sends do not count against the monthly email quota.
	Test bool
}

type SendResult struct {
	MessageID string    `json:"messageId"`
	From      string    `json:"from"`
	SentAt    time.Time `json:"sentAt"`
}

type CheckResult struct {
	Checked     int `json:"checked"`
	Reactivated int `json:"reactivated"`
}

type AuthURLResponse struct {
	URL string `json:"url"`
}
