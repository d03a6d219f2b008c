package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	agentdomain "welcome-agent/internal/agent/domain"
	connectiondomain "welcome-agent/internal/connection/domain"
	emaildomain "welcome-agent/internal/email/domain"
	workspacedomain "welcome-agent/internal/workspace/domain"
)

// OwnedCounts reports, per user, how many counted resources a workspace delete removes.
type OwnedCounts struct {
	Agents      map[string]int
	Connections map[string]int
}

type WorkspaceRepository interface {
	WithTx(tx *gorm.DB) WorkspaceRepository

	Create(ws *workspacedomain.Workspace) error
	CreateDefault(ws *workspacedomain.Workspace) (bool, error)
	FindByID(id string) (*workspacedomain.Workspace, error)
	FindDefault(userID string) (*workspacedomain.Workspace, error)
	ListForUser(userID string) ([]workspacedomain.Workspace, error)
	CountMemberships(userID string) (int64, error)
	FindMember(workspaceID, userID string) (*workspacedomain.Member, error)
	MemberIDs(workspaceID string) ([]string, error)
	UpdateName(id, name string) error
	AddMember(member *workspacedomain.Member) error
	RemoveMember(workspaceID, userID string) error
	Delete(id string) (*OwnedCounts, error)
	IDsWithInactiveConnections() ([]string, error)
	AgentCounts(workspaceID string) (total, published int64, err error)
	ActiveConnectionCount(workspaceID string) (int64, error)
	EmailCountsByStatus(workspaceID string) (map[string]int64, error)
}

type workspaceRepository struct {
	db *gorm.DB
}

func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

func (r *workspaceRepository) WithTx(tx *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: tx}
}

// Create inserts the workspace together with its owner membership.
func (r *workspaceRepository) Create(ws *workspacedomain.Workspace) error {
	prepare(ws)
	if err := r.db.Omit("Members").Create(ws).Error; err != nil {
		return err
	}
	return r.addOwner(ws)
}

// CreateDefault inserts the auto-provisioned workspace unless the user already has one.
// It reports whether a row was inserted.
func (r *workspaceRepository) CreateDefault(ws *workspacedomain.Workspace) (bool, error) {
	prepare(ws)
	res := r.db.Omit("Members").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "default_for"}},
		DoNothing: true,
	}).Create(ws)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, r.addOwner(ws)
}

func prepare(ws *workspacedomain.Workspace) {
	now := time.Now().UTC()
	if ws.ID == "" {
		ws.ID = uuid.New().String()
	}
	ws.CreatedAt = now
	ws.UpdatedAt = now
}

func (r *workspaceRepository) addOwner(ws *workspacedomain.Workspace) error {
	owner := workspacedomain.Member{
		WorkspaceID: ws.ID,
		UserID:      ws.OwnerID,
		Role:        workspacedomain.RoleOwner,
		JoinedAt:    ws.CreatedAt,
	}
	if err := r.db.Create(&owner).Error; err != nil {
		return err
	}
	ws.Members = []workspacedomain.Member{owner}
	return nil
}

func (r *workspaceRepository) FindByID(id string) (*workspacedomain.Workspace, error) {
	var ws workspacedomain.Workspace
	err := r.db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("joined_at ASC")
	}).Where("id = ?", id).First(&ws).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ws, nil
}

func (r *workspaceRepository) FindDefault(userID string) (*workspacedomain.Workspace, error) {
	var ws workspacedomain.Workspace
	err := r.db.Preload("Members").Where("default_for = ?", userID).First(&ws).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ws, nil
}

func (r *workspaceRepository) ListForUser(userID string) ([]workspacedomain.Workspace, error) {
	var list []workspacedomain.Workspace
	err := r.db.Preload("Members").
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ?", userID).
		Order("workspaces.created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *workspaceRepository) CountMemberships(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&workspacedomain.Member{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *workspaceRepository) FindMember(workspaceID, userID string) (*workspacedomain.Member, error) {
	var member workspacedomain.Member
	err := r.db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *workspaceRepository) MemberIDs(workspaceID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&workspacedomain.Member{}).Where("workspace_id = ?", workspaceID).Pluck("user_id", &ids).Error
	return ids, err
}

func (r *workspaceRepository) UpdateName(id, name string) error {
	return r.db.Model(&workspacedomain.Workspace{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":       name,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *workspaceRepository) AddMember(member *workspacedomain.Member) error {
	member.JoinedAt = time.Now().UTC()
	return r.db.Create(member).Error
}

func (r *workspaceRepository) RemoveMember(workspaceID, userID string) error {
	return r.db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).Delete(&workspacedomain.Member{}).Error
}

// Delete removes the workspace and everything scoped to it. Activity logs are kept.
func (r *workspaceRepository) Delete(id string) (*OwnedCounts, error) {
	counts := &OwnedCounts{Agents: map[string]int{}, Connections: map[string]int{}}

	type owned struct {
		Owner string
		N     int
	}
	var agents []owned
	if err := r.db.Model(&agentdomain.Agent{}).Select("created_by AS owner, COUNT(*) AS n").
		Where("workspace_id = ?", id).Group("created_by").Scan(&agents).Error; err != nil {
		return nil, err
	}
	for _, a := range agents {
		counts.Agents[a.Owner] = a.N
	}

	var conns []owned
	if err := r.db.Model(&connectiondomain.Connection{}).Select("user_id AS owner, COUNT(*) AS n").
		Where("workspace_id = ?", id).Group("user_id").Scan(&conns).Error; err != nil {
		return nil, err
	}
	for _, c := range conns {
		counts.Connections[c.Owner] = c.N
	}

	for _, model := range []interface{}{&agentdomain.Agent{}, &connectiondomain.Connection{}, &emaildomain.Record{}, &workspacedomain.Member{}} {
		if err := r.db.Where("workspace_id = ?", id).Delete(model).Error; err != nil {
			return nil, err
		}
	}
	if err := r.db.Where("id = ?", id).Delete(&workspacedomain.Workspace{}).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *workspaceRepository) IDsWithInactiveConnections() ([]string, error) {
	var ids []string
	err := r.db.Model(&connectiondomain.Connection{}).
		Where("is_active = ?", false).
		Distinct().Pluck("workspace_id", &ids).Error
	return ids, err
}

// AgentCounts returns the total and published agent counts of a workspace.
func (r *workspaceRepository) AgentCounts(workspaceID string) (total, published int64, err error) {
	if err = r.db.Model(&agentdomain.Agent{}).Where("workspace_id = ?", workspaceID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.Model(&agentdomain.Agent{}).
		Where("workspace_id = ? AND status = ?", workspaceID, agentdomain.StatusPublished).
		Count(&published).Error
	return total, published, err
}

func (r *workspaceRepository) ActiveConnectionCount(workspaceID string) (int64, error) {
	var count int64
	err := r.db.Model(&connectiondomain.Connection{}).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Count(&count).Error
	return count, err
}

// EmailCountsByStatus returns a count for every record status, including zeroes.
func (r *workspaceRepository) EmailCountsByStatus(workspaceID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	if err := r.db.Model(&emaildomain.Record{}).Select("status, COUNT(*) AS n").
		Where("workspace_id = ?", workspaceID).Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[string]int64{}
	for _, s := range []emaildomain.Status{emaildomain.StatusUnderReview, emaildomain.StatusSent, emaildomain.StatusDenied, emaildomain.StatusFailed} {
		counts[string(s)] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}
