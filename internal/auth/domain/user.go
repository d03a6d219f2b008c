package domain

import "time"

const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// Counters is shared by usage and limits so each resource has a matching pair of columns.
type Counters struct {
	EmailSent              int `json:"emailSent" gorm:"not null;default:0"`
	Agents                 int `json:"agents" gorm:"not null;default:0"`
	ConnectedGmailAccounts int `json:"connectedGmailAccounts" gorm:"not null;default:0"`
	Workspaces             int `json:"workspaces" gorm:"not null;default:0"`
}

var planLimits = map[Plan]Counters{
	PlanFree:     {EmailSent: 100, Agents: 1, ConnectedGmailAccounts: 1, Workspaces: 1},
	PlanPro:      {EmailSent: 2000, Agents: 10, ConnectedGmailAccounts: 5, Workspaces: 3},
	PlanBusiness: {EmailSent: 10000, Agents: 50, ConnectedGmailAccounts: 25, Workspaces: 10},
}

// LimitsFor returns the quota table of a plan, falling back to the free plan.
func LimitsFor(plan Plan) Counters {
	if limits, ok := planLimits[plan]; ok {
		return limits
	}
	return planLimits[PlanFree]
}

type User struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email            string    `json:"email" gorm:"uniqueIndex;not null"`
	Password         string    `json:"-"` // Never return password in JSON
	Name             string    `json:"name"`
	AvatarURL        string    `json:"avatarUrl,omitempty"`
	Provider         string    `json:"provider"` // "email" or "google"
	Plan             Plan      `json:"plan" gorm:"type:varchar(16);not null;default:free"`
	Usage            Counters  `json:"usage" gorm:"embedded;embeddedPrefix:usage_"`
	Limits           Counters  `json:"limits" gorm:"embedded;embeddedPrefix:limit_"`
	StripeCustomerID *string   `json:"stripeCustomerId,omitempty"`
	LastUsageReset   time.Time `json:"lastUsageReset"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DisplayName is the name used in greetings and default workspace names.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	for i, r := range u.Email {
		if r == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

// Session backs the signed session cookie so logout can revoke it server-side.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"userId" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index"`
	CreatedAt time.Time `json:"createdAt"`
}
