package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	agentdomain "welcome-agent/internal/agent/domain"
	"welcome-agent/internal/connection/domain"
)

type ConnectionRepository interface {
	WithTx(tx *gorm.DB) ConnectionRepository

	Create(conn *domain.Connection) error
	FindByID(id string) (*domain.Connection, error)
	FindByWorkspaceEmail(workspaceID, email string) (*domain.Connection, error)
	ListByWorkspace(workspaceID string) ([]domain.Connection, error)
	ListInactive(workspaceID string) ([]domain.Connection, error)
	// SaveTokens writes tokens, display name and active flag in place.
	SaveTokens(conn *domain.Connection) error
	SetActive(id string, active bool) error
	Delete(id string) error
	// DetachAgents clears configuration.emailAccount on agents that send through the connection.
	DetachAgents(connectionID string) (int64, error)
}

type connectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) WithTx(tx *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: tx}
}

func (r *connectionRepository) Create(conn *domain.Connection) error {
	now := time.Now().UTC()
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	conn.ConnectedAt = now
	conn.UpdatedAt = now
	conn.Tokens.ExpiresAt = conn.Tokens.ExpiresAt.UTC()
	return r.db.Create(conn).Error
}

func (r *connectionRepository) FindByID(id string) (*domain.Connection, error) {
	var conn domain.Connection
	if err := r.db.Where("id = ?", id).First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindByWorkspaceEmail(workspaceID, email string) (*domain.Connection, error) {
	var conn domain.Connection
	err := r.db.Where("workspace_id = ? AND email = ?", workspaceID, email).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) ListByWorkspace(workspaceID string) ([]domain.Connection, error) {
	var conns []domain.Connection
	err := r.db.Where("workspace_id = ?", workspaceID).
		Order("connected_at ASC").
		Find(&conns).Error
	return conns, err
}

func (r *connectionRepository) ListInactive(workspaceID string) ([]domain.Connection, error) {
	var conns []domain.Connection
	err := r.db.Where("workspace_id = ? AND is_active = ?", workspaceID, false).
		Find(&conns).Error
	return conns, err
}

func (r *connectionRepository) SaveTokens(conn *domain.Connection) error {
	conn.UpdatedAt = time.Now().UTC()
	conn.Tokens.ExpiresAt = conn.Tokens.ExpiresAt.UTC()
	return r.db.Model(&domain.Connection{}).
		Where("id = ?", conn.ID).
		Updates(map[string]interface{}{
			"name":                conn.Name,
			"token_access_token":  conn.Tokens.AccessToken,
			"token_refresh_token": conn.Tokens.RefreshToken,
			"token_token_type":    conn.Tokens.TokenType,
			"token_expires_at":    conn.Tokens.ExpiresAt,
			"is_active":           conn.IsActive,
			"updated_at":          conn.UpdatedAt,
		}).Error
}

func (r *connectionRepository) SetActive(id string, active bool) error {
	return r.db.Model(&domain.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *connectionRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&domain.Connection{}).Error
}

func (r *connectionRepository) DetachAgents(connectionID string) (int64, error) {
	res := r.db.Model(&agentdomain.Agent{}).
		Where("config_email_account = ?", connectionID).
		Updates(map[string]interface{}{
			"config_email_account": "",
			"updated_at":           time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
