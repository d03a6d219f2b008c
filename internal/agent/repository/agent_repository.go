package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"welcome-agent/internal/agent/domain"
)

type AgentRepository interface {
	WithTx(tx *gorm.DB) AgentRepository

	Create(agent *domain.Agent) error
	FindByID(id string) (*domain.Agent, error)
	ListByWorkspace(workspaceID string) ([]domain.Agent, error)
	// Update writes every mutable column. It reports false when the agent no longer exists.
	Update(agent *domain.Agent) (bool, error)
	SetLastTestEmail(id string, test *domain.TestEmail) error
	SetWebsiteSummary(id, summary string) error
	Delete(id string) (bool, error)
}

type agentRepository struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepository{db: db}
}

func (r *agentRepository) WithTx(tx *gorm.DB) AgentRepository {
	return &agentRepository{db: tx}
}

func (r *agentRepository) Create(agent *domain.Agent) error {
	now := time.Now().UTC()
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	agent.CreatedAt = now
	agent.UpdatedAt = now
	return r.db.Create(agent).Error
}

func (r *agentRepository) FindByID(id string) (*domain.Agent, error) {
	var agent domain.Agent
	if err := r.db.Where("id = ?", id).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) ListByWorkspace(workspaceID string) ([]domain.Agent, error) {
	var agents []domain.Agent
	err := r.db.Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Find(&agents).Error
	return agents, err
}

func (r *agentRepository) Update(agent *domain.Agent) (bool, error) {
	agent.UpdatedAt = time.Now().UTC()
	res := r.db.Model(agent).
		Select("*").
		Omit("ID", "WorkspaceID", "CreatedBy", "CreatedAt").
		Updates(agent)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *agentRepository) SetLastTestEmail(id string, test *domain.TestEmail) error {
	agent := &domain.Agent{ID: id, LastTestEmail: test, UpdatedAt: time.Now().UTC()}
	return r.db.Model(agent).Select("LastTestEmail", "UpdatedAt").Updates(agent).Error
}

func (r *agentRepository) SetWebsiteSummary(id, summary string) error {
	return r.db.Model(&domain.Agent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"business_website_summary": summary,
			"updated_at":               time.Now().UTC(),
		}).Error
}

func (r *agentRepository) Delete(id string) (bool, error) {
	res := r.db.Where("id = ?", id).Delete(&domain.Agent{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
