package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"welcome-agent/internal/activity/domain"
)

// LogRepository is append-only: there is no update or delete.
type LogRepository interface {
	Create(entry *domain.Log) error
	List(workspaceID, agentID string, limit, offset int) ([]domain.Log, int64, error)
}

type logRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Create(entry *domain.Log) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return r.db.Create(entry).Error
}

func (r *logRepository) List(workspaceID, agentID string, limit, offset int) ([]domain.Log, int64, error) {
	q := r.db.Model(&domain.Log{}).Where("workspace_id = ?", workspaceID)
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []domain.Log
	err := q.Order("timestamp DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&logs).Error
	return logs, total, err
}
