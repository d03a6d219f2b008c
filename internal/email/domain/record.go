package domain

import "time"

type Status string

const (
	StatusUnderReview Status = "under_review"
	StatusSent        Status = "sent"
	StatusDenied      Status = "denied"
	StatusFailed      Status = "failed"
)

var transitions = map[Status][]Status{
	StatusUnderReview: {StatusSent, StatusDenied, StatusFailed},
}

// CanTransition reports whether a record in state from may move to state to.
// sent, denied and failed are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnderReview, StatusSent, StatusDenied, StatusFailed:
		return true
	}
	return false
}

// Initial reports whether a freshly generated record may be stored in state s.
func (s Status) Initial() bool {
	return s == StatusUnderReview || s == StatusSent || s == StatusFailed
}

// Record is a generated welcome email and its review/delivery outcome.
type Record struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RecipientEmail    string     `json:"recipientEmail" gorm:"not null"`
	AgentID           string     `json:"agentId" gorm:"index"`
	AgentName         string     `json:"agentName"`
	WorkspaceID       string     `json:"workspaceId" gorm:"index:idx_email_workspace_created,priority:1;not null"`
	Subject           string     `json:"subject"`
	Body              string     `json:"body" gorm:"type:text"`
	Status            Status     `json:"status" gorm:"type:varchar(16);index;not null"`
	GmailConnectionID string     `json:"gmailConnectionId,omitempty"`
	UserInfo          string     `json:"userInfo,omitempty" gorm:"type:text"`
	BusinessInfo      string     `json:"businessInfo,omitempty" gorm:"type:text"`
	Error             string     `json:"error,omitempty" gorm:"type:text"`
	SourceMessageID   *string    `json:"-" gorm:"uniqueIndex"`
	SendingAt         *time.Time `json:"sendingAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt" gorm:"index:idx_email_workspace_created,priority:2"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
}

func (Record) TableName() string {
	return "email_records"
}
