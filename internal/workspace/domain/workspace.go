package domain

import "time"

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

type Workspace struct {
	ID      string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name    string `json:"name" gorm:"not null"`
	OwnerID string `json:"ownerId" gorm:"index;not null"`
	// DefaultFor is set on the workspace auto-provisioned for a user; at most one per user.
	DefaultFor *string   `json:"-" gorm:"uniqueIndex"`
	Members    []Member  `json:"members" gorm:"foreignKey:WorkspaceID"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsOwner reports whether userID owns the workspace.
func (w *Workspace) IsOwner(userID string) bool {
	return w != nil && w.OwnerID == userID
}

type Member struct {
	WorkspaceID string    `json:"workspaceId" gorm:"primaryKey;type:varchar(36)"`
	UserID      string    `json:"userId" gorm:"primaryKey;type:varchar(36);index"`
	Email       string    `json:"email,omitempty" gorm:"-"`
	Name        string    `json:"name,omitempty" gorm:"-"`
	Role        Role      `json:"role" gorm:"type:varchar(16);not null"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func (Member) TableName() string {
	return "workspace_members"
}

// Stats aggregates the dashboard counters of a workspace.
type Stats struct {
	Agents            int64            `json:"agents"`
	PublishedAgents   int64            `json:"publishedAgents"`
	ActiveConnections int64            `json:"activeConnections"`
	Emails            map[string]int64 `json:"emails"`
	EmailsSent        int              `json:"emailsSent"`
	EmailLimit        int              `json:"emailLimit"`
}
