package dto

import agentdomain "welcome-agent/internal/agent/domain"

// GenerateEmailRequest is the body of POST /api/generate-email.
// Email, when set, wins over an address parsed out of SignupInfo.
type GenerateEmailRequest struct {
	SignupInfo      string                      `json:"signupInfo" validate:"required"`
	Email           string                      `json:"email" validate:"omitempty,email"`
	Directive       string                      `json:"directive"`
	BusinessContext agentdomain.BusinessContext `json:"businessContext"`
	WorkspaceID     string                      `json:"workspaceId" validate:"required"`
	AgentID         string                      `json:"agentId" validate:"required"`
}

type GeneratedEmail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type RecordRef struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type GenerateEmailResponse struct {
	Success bool            `json:"success"`
	Email   *GeneratedEmail `json:"email,omitempty"`
	Record  *RecordRef      `json:"record,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SignupMessage is the Pub/Sub payload announcing a new signup for an agent.
type SignupMessage struct {
	AgentID    string `json:"agentId"`
	SignupInfo string `json:"signupInfo"`
	Email      string `json:"email,omitempty"`
}

type WebsiteSummaryResponse struct {
	Summary string `json:"websiteSummary"`
}
