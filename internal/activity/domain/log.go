package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Type string

const (
	TypeAPI   Type = "api"
	TypeCrawl Type = "crawl"
	TypeEmail Type = "email"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Log is an append-only audit entry.
type Log struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Type        Type           `json:"type" gorm:"type:varchar(16);not null"`
	Status      Status         `json:"status" gorm:"type:varchar(16);not null"`
	Details     datatypes.JSON `json:"details"`
	Response    datatypes.JSON `json:"response,omitempty"`
	WorkspaceID string         `json:"workspaceId,omitempty" gorm:"index"`
	AgentID     string         `json:"agentId,omitempty" gorm:"index"`
	Timestamp   time.Time      `json:"timestamp" gorm:"index"`
}

func (Log) TableName() string {
	return "logs"
}
