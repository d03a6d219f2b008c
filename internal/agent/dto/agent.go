package dto

import agentdomain "welcome-agent/internal/agent/domain"

type CreateAgentRequest struct {
	Name            string                      `json:"name" validate:"required,max=100"`
	Status          agentdomain.Status          `json:"status"`
	EmailPurpose    agentdomain.EmailPurpose    `json:"emailPurpose"`
	BusinessContext agentdomain.BusinessContext `json:"businessContext"`
	Configuration   agentdomain.Configuration   `json:"configuration"`
}

// UpdateAgentRequest is a partial update: nil fields keep their stored value.
type UpdateAgentRequest struct {
	Name            *string               `json:"name" validate:"omitempty,max=100"`
	Status          *agentdomain.Status   `json:"status"`
	EmailPurpose    *EmailPurposePatch    `json:"emailPurpose"`
	BusinessContext *BusinessContextPatch `json:"businessContext"`
	Configuration   *ConfigurationPatch   `json:"configuration"`
}

type EmailPurposePatch struct {
	Preset    *string `json:"preset"`
	Directive *string `json:"directive"`
}

type BusinessContextPatch struct {
	Website           *string `json:"website" validate:"omitempty,url"`
	Purpose           *string `json:"purpose"`
	AdditionalContext *string `json:"additionalContext"`
	WebsiteSummary    *string `json:"websiteSummary"`
}

type ConfigurationPatch struct {
	EmailAccount      *string        `json:"emailAccount"`
	NotificationEmail *string        `json:"notificationEmail" validate:"omitempty,email"`
	Settings          *SettingsPatch `json:"settings"`
}

type SettingsPatch struct {
	SendOnlyWhenConfident *bool `json:"sendOnlyWhenConfident"`
	ReviewBeforeSending   *bool `json:"reviewBeforeSending"`
}

// TestAgentRequest optionally overrides the sample signup used for a test email.
type TestAgentRequest struct {
	SignupInfo string `json:"signupInfo"`
	Email      string `json:"email" validate:"omitempty,email"`
}
