package domain

import "time"

// Tokens stores the OAuth credentials of a mailbox. ExpiresAt is an absolute instant.
type Tokens struct {
	AccessToken  string    `json:"access_token" gorm:"type:text"`
	RefreshToken string    `json:"refresh_token" gorm:"type:text"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is no longer usable at now.
func (t Tokens) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Connection is a Gmail mailbox connected to a workspace.
type Connection struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WorkspaceID string    `json:"workspaceId" gorm:"uniqueIndex:idx_connection_workspace_email;not null"`
	Email       string    `json:"email" gorm:"uniqueIndex:idx_connection_workspace_email;not null"`
	Name        string    `json:"name"`
	UserID      string    `json:"userId" gorm:"index;not null"`
	Tokens      Tokens    `json:"-" gorm:"embedded;embeddedPrefix:token_"`
	IsActive    bool      `json:"isActive" gorm:"index"`
	ConnectedAt time.Time `json:"connectedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Connection) TableName() string {
	return "gmail_connections"
}

// SenderName is the display name used in From headers and sign-offs.
func (c *Connection) SenderName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Email
}
