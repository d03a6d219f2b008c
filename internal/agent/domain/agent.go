package domain

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

type EmailPurpose struct {
	Preset    string `json:"preset"`
	Directive string `json:"directive" gorm:"type:text"`
}

type BusinessContext struct {
	Website           string `json:"website"`
	Purpose           string `json:"purpose" gorm:"type:text"`
	AdditionalContext string `json:"additionalContext,omitempty" gorm:"type:text"`
	WebsiteSummary    string `json:"websiteSummary,omitempty" gorm:"type:text"`
}

type Settings struct {
	SendOnlyWhenConfident bool `json:"sendOnlyWhenConfident"`
	ReviewBeforeSending   bool `json:"reviewBeforeSending"`
}

type Configuration struct {
	// EmailAccount is the id of the GmailConnection used to send.
	EmailAccount      string   `json:"emailAccount,omitempty"`
	NotificationEmail string   `json:"notificationEmail,omitempty"`
	Settings          Settings `json:"settings" gorm:"embedded;embeddedPrefix:settings_"`
}

// TestEmail is the last preview generated through the agent test action.
type TestEmail struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Sent    bool      `json:"sent"`
	Error   string    `json:"error,omitempty"`
	SentAt  time.Time `json:"sentAt"`
}

type Agent struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WorkspaceID     string          `json:"workspaceId" gorm:"index;not null"`
	Name            string          `json:"name" gorm:"not null"`
	Status          Status          `json:"status" gorm:"type:varchar(16);not null"`
	CreatedBy       string          `json:"createdBy" gorm:"index"`
	EmailPurpose    EmailPurpose    `json:"emailPurpose" gorm:"embedded;embeddedPrefix:purpose_"`
	BusinessContext BusinessContext `json:"businessContext" gorm:"embedded;embeddedPrefix:business_"`
	Configuration   Configuration   `json:"configuration" gorm:"embedded;embeddedPrefix:config_"`
	LastTestEmail   *TestEmail      `json:"lastTestEmail,omitempty" gorm:"type:text;serializer:json"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (Agent) TableName() string {
	return "welcome_agents"
}
