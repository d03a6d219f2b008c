package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"welcome-agent/internal/agent/domain"
	"welcome-agent/internal/agent/dto"
	"welcome-agent/internal/agent/repository"
	authdomain "welcome-agent/internal/auth/domain"
	connectiondomain "welcome-agent/internal/connection/domain"
	"welcome-agent/internal/quota"
	workspacedomain "welcome-agent/internal/workspace/domain"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/logger"
	"welcome-agent/pkg/validator"
)

type WorkspaceAccess interface {
	Authorize(ctx context.Context, userID, workspaceID string) (*workspacedomain.Workspace, error)
}

// ConnectionLookup resolves the Gmail connection an agent sends through.
type ConnectionLookup interface {
	Get(ctx context.Context, id string) (*connectiondomain.Connection, error)
}

type AgentUsecase interface {
	Create(ctx context.Context, actor *authdomain.User, workspaceID string, req dto.CreateAgentRequest) (*domain.Agent, error)
	Get(ctx context.Context, actor *authdomain.User, id string) (*domain.Agent, error)
	List(ctx context.Context, actor *authdomain.User, workspaceID string) ([]domain.Agent, error)
	Update(ctx context.Context, actor *authdomain.User, id string, req dto.UpdateAgentRequest) (*domain.Agent, error)
	Delete(ctx context.Context, actor *authdomain.User, id string) error

	// Find loads an agent without a membership check, for background callers.
	Find(ctx context.Context, id string) (*domain.Agent, error)
	RecordTestEmail(ctx context.Context, id string, test *domain.TestEmail) error
	SetWebsiteSummary(ctx context.Context, id, summary string) error
}

type agentUsecase struct {
	db          *gorm.DB
	repo        repository.AgentRepository
	workspaces  WorkspaceAccess
	connections ConnectionLookup
	log         *zap.Logger
}

func NewAgentUsecase(db *gorm.DB, repo repository.AgentRepository, workspaces WorkspaceAccess, connections ConnectionLookup) AgentUsecase {
	return &agentUsecase{
		db:          db,
		repo:        repo,
		workspaces:  workspaces,
		connections: connections,
		log:         logger.WithModule("agent"),
	}
}

// Create stores a new agent and consumes one unit of the actor's agent quota in the same transaction.
func (u *agentUsecase) Create(ctx context.Context, actor *authdomain.User, workspaceID string, req dto.CreateAgentRequest) (*domain.Agent, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if _, err := u.workspaces.Authorize(ctx, actor.ID, workspaceID); err != nil {
		return nil, err
	}

	agent := &domain.Agent{
		WorkspaceID:     workspaceID,
		Name:            req.Name,
		Status:          req.Status,
		CreatedBy:       actor.ID,
		EmailPurpose:    req.EmailPurpose,
		BusinessContext: req.BusinessContext,
		Configuration:   req.Configuration,
	}
	if agent.Status == "" {
		agent.Status = domain.StatusDraft
	}
	if err := u.validate(ctx, agent); err != nil {
		return nil, err
	}

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := quota.Reserve(tx, actor.ID, quota.Agents); err != nil {
			return err
		}
		return u.repo.WithTx(tx).Create(agent)
	})
	if err != nil {
		return nil, err
	}

	u.log.Info("agent created", zap.String("agent_id", agent.ID), zap.String("workspace_id", workspaceID))
	return agent, nil
}

func (u *agentUsecase) Get(ctx context.Context, actor *authdomain.User, id string) (*domain.Agent, error) {
	agent, err := u.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := u.workspaces.Authorize(ctx, actor.ID, agent.WorkspaceID); err != nil {
		return nil, err
	}
	return agent, nil
}

func (u *agentUsecase) List(ctx context.Context, actor *authdomain.User, workspaceID string) ([]domain.Agent, error) {
	if _, err := u.workspaces.Authorize(ctx, actor.ID, workspaceID); err != nil {
		return nil, err
	}
	return u.repo.ListByWorkspace(workspaceID)
}

// Update merges the provided fields into the stored agent. Concurrent updates are last write wins.
func (u *agentUsecase) Update(ctx context.Context, actor *authdomain.User, id string, req dto.UpdateAgentRequest) (*domain.Agent, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	agent, err := u.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	merge(agent, req)
	if err := u.validate(ctx, agent); err != nil {
		return nil, err
	}

	ok, err := u.repo.Update(agent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.ErrNotFound.WithMessage("agent not found")
	}
	return u.repo.FindByID(id)
}

func merge(agent *domain.Agent, req dto.UpdateAgentRequest) {
	if req.Name != nil {
		agent.Name = strings.TrimSpace(*req.Name)
	}
	if req.Status != nil {
		agent.Status = *req.Status
	}
	if p := req.EmailPurpose; p != nil {
		setString(&agent.EmailPurpose.Preset, p.Preset)
		setString(&agent.EmailPurpose.Directive, p.Directive)
	}
	if b := req.BusinessContext; b != nil {
		setString(&agent.BusinessContext.Website, b.Website)
		setString(&agent.BusinessContext.Purpose, b.Purpose)
		setString(&agent.BusinessContext.AdditionalContext, b.AdditionalContext)
		setString(&agent.BusinessContext.WebsiteSummary, b.WebsiteSummary)
	}
	if c := req.Configuration; c != nil {
		setString(&agent.Configuration.EmailAccount, c.EmailAccount)
		setString(&agent.Configuration.NotificationEmail, c.NotificationEmail)
		if s := c.Settings; s != nil {
			if s.SendOnlyWhenConfident != nil {
				agent.Configuration.Settings.SendOnlyWhenConfident = *s.SendOnlyWhenConfident
			}
			if s.ReviewBeforeSending != nil {
				agent.Configuration.Settings.ReviewBeforeSending = *s.ReviewBeforeSending
			}
		}
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (u *agentUsecase) validate(ctx context.Context, agent *domain.Agent) error {
	if agent.Name == "" {
		return appErrors.NewBadRequest("name is required")
	}
	if !agent.Status.Valid() {
		return appErrors.NewBadRequest("status must be draft or published")
	}
	if email := agent.Configuration.NotificationEmail; email != "" {
		if err := validator.Var(email, "email"); err != nil {
			return appErrors.NewBadRequest("notificationEmail must be a valid email")
		}
	}

	accountID := agent.Configuration.EmailAccount
	if accountID == "" {
		return nil
	}
	conn, err := u.connections.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return appErrors.NewBadRequest("emailAccount does not reference a connected Gmail account")
		}
		return err
	}
	if conn.WorkspaceID != agent.WorkspaceID {
		return appErrors.NewBadRequest("emailAccount belongs to another workspace")
	}
	if !conn.IsActive {
		return appErrors.NewBadRequest("emailAccount is disconnected, reconnect it first")
	}
	return nil
}

// Delete removes the agent and returns its quota unit to the user who created it.
func (u *agentUsecase) Delete(ctx context.Context, actor *authdomain.User, id string) error {
	agent, err := u.Get(ctx, actor, id)
	if err != nil {
		return err
	}

	err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := u.repo.WithTx(tx).Delete(agent.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return appErrors.ErrNotFound.WithMessage("agent not found")
		}
		owner := agent.CreatedBy
		if owner == "" {
			owner = actor.ID
		}
		return quota.Release(tx, owner, quota.Agents, 1)
	})
	if err != nil {
		return err
	}

	u.log.Info("agent deleted", zap.String("agent_id", agent.ID))
	return nil
}

func (u *agentUsecase) Find(ctx context.Context, id string) (*domain.Agent, error) {
	agent, err := u.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, appErrors.ErrNotFound.WithMessage("agent not found")
	}
	return agent, nil
}

func (u *agentUsecase) RecordTestEmail(ctx context.Context, id string, test *domain.TestEmail) error {
	return u.repo.SetLastTestEmail(id, test)
}

func (u *agentUsecase) SetWebsiteSummary(ctx context.Context, id, summary string) error {
	return u.repo.SetWebsiteSummary(id, summary)
}
