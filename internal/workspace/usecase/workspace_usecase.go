package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	authdomain "welcome-agent/internal/auth/domain"
	authrepo "welcome-agent/internal/auth/repository"
	"welcome-agent/internal/quota"
	workspacedomain "welcome-agent/internal/workspace/domain"
	"welcome-agent/internal/workspace/repository"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/logger"
	"welcome-agent/pkg/validator"
)

// WorkspaceUsecase is the multi-tenant grouping of agents and mailboxes.
type WorkspaceUsecase interface {
	Create(ctx context.Context, actor *authdomain.User, name string) (*workspacedomain.Workspace, error)
	EnsureDefault(ctx context.Context, user *authdomain.User) (*workspacedomain.Workspace, error)
	List(ctx context.Context, actor *authdomain.User) ([]workspacedomain.Workspace, error)
	Get(ctx context.Context, actor *authdomain.User, id string) (*workspacedomain.Workspace, error)
	Rename(ctx context.Context, actor *authdomain.User, id, name string) (*workspacedomain.Workspace, error)
	Invite(ctx context.Context, actor *authdomain.User, id, email string) (*workspacedomain.Member, error)
	RemoveMember(ctx context.Context, actor *authdomain.User, id, userID string) error
	Delete(ctx context.Context, actor *authdomain.User, id string) error
	Stats(ctx context.Context, actor *authdomain.User, id string) (*workspacedomain.Stats, error)

	// Authorize returns the workspace when userID is one of its members.
	Authorize(ctx context.Context, userID, workspaceID string) (*workspacedomain.Workspace, error)
	// Find loads a workspace without a membership check, for background callers.
	Find(ctx context.Context, workspaceID string) (*workspacedomain.Workspace, error)
	MemberIDs(ctx context.Context, workspaceID string) ([]string, error)
	WithInactiveConnections(ctx context.Context) ([]string, error)
}

type workspaceUsecase struct {
	db       *gorm.DB
	repo     repository.WorkspaceRepository
	userRepo authrepo.UserRepository
	log      *zap.Logger
}

func NewWorkspaceUsecase(db *gorm.DB, repo repository.WorkspaceRepository, userRepo authrepo.UserRepository) WorkspaceUsecase {
	return &workspaceUsecase{
		db:       db,
		repo:     repo,
		userRepo: userRepo,
		log:      logger.WithModule("workspace"),
	}
}

type nameInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (u *workspaceUsecase) Create(ctx context.Context, actor *authdomain.User, name string) (*workspacedomain.Workspace, error) {
	in := nameInput{Name: strings.TrimSpace(name)}
	if err := validator.Check(in); err != nil {
		return nil, err
	}

	ws := &workspacedomain.Workspace{Name: in.Name, OwnerID: actor.ID}
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := quota.Reserve(tx, actor.ID, quota.Workspaces); err != nil {
			return err
		}
		return u.repo.WithTx(tx).Create(ws)
	})
	if err != nil {
		return nil, err
	}

	u.log.Info("workspace created", zap.String("workspace_id", ws.ID), zap.String("owner_id", actor.ID))
	return ws, nil
}

// EnsureDefault provisions "{displayName}'s Workspace" for a user who belongs to no workspace.
// Concurrent calls converge on a single row through the unique default_for column.
func (u *workspaceUsecase) EnsureDefault(ctx context.Context, user *authdomain.User) (*workspacedomain.Workspace, error) {
	existing, err := u.repo.ListForUser(user.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	owner := user.ID
	ws := &workspacedomain.Workspace{
		Name:       fmt.Sprintf("%s's Workspace", user.DisplayName()),
		OwnerID:    user.ID,
		DefaultFor: &owner,
	}

	var created bool
	err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = u.repo.WithTx(tx).CreateDefault(ws)
		if err != nil || !created {
			return err
		}
		return quota.Reserve(tx, user.ID, quota.Workspaces)
	})
	if err != nil {
		return nil, err
	}

	if !created {
		return u.repo.FindDefault(user.ID)
	}
	u.log.Info("default workspace provisioned", zap.String("workspace_id", ws.ID), zap.String("user_id", user.ID))
	return ws, nil
}

func (u *workspaceUsecase) List(ctx context.Context, actor *authdomain.User) ([]workspacedomain.Workspace, error) {
	return u.repo.ListForUser(actor.ID)
}

func (u *workspaceUsecase) Get(ctx context.Context, actor *authdomain.User, id string) (*workspacedomain.Workspace, error) {
	ws, err := u.Authorize(ctx, actor.ID, id)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(ws.Members))
	for _, m := range ws.Members {
		ids = append(ids, m.UserID)
	}
	users, err := u.userRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]authdomain.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	for i := range ws.Members {
		if user, ok := byID[ws.Members[i].UserID]; ok {
			ws.Members[i].Email = user.Email
			ws.Members[i].Name = user.Name
		}
	}
	return ws, nil
}

func (u *workspaceUsecase) Rename(ctx context.Context, actor *authdomain.User, id, name string) (*workspacedomain.Workspace, error) {
	ws, err := u.requireOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	in := nameInput{Name: strings.TrimSpace(name)}
	if err := validator.Check(in); err != nil {
		return nil, err
	}
	if err := u.repo.UpdateName(ws.ID, in.Name); err != nil {
		return nil, err
	}
	return u.repo.FindByID(ws.ID)
}

func (u *workspaceUsecase) Invite(ctx context.Context, actor *authdomain.User, id, email string) (*workspacedomain.Member, error) {
	ws, err := u.requireOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	invitee, err := u.userRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if invitee == nil {
		return nil, appErrors.ErrNotFound.WithMessage("no account exists for that email")
	}

	existing, err := u.repo.FindMember(ws.ID, invitee.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, appErrors.ErrConflict.WithMessage("user is already a member")
	}

	member := &workspacedomain.Member{
		WorkspaceID: ws.ID,
		UserID:      invitee.ID,
		Role:        workspacedomain.RoleMember,
	}
	if err := u.repo.AddMember(member); err != nil {
		return nil, err
	}
	member.Email = invitee.Email
	member.Name = invitee.Name
	return member, nil
}

func (u *workspaceUsecase) RemoveMember(ctx context.Context, actor *authdomain.User, id, userID string) error {
	ws, err := u.requireOwner(ctx, actor, id)
	if err != nil {
		return err
	}
	if userID == ws.OwnerID {
		return appErrors.NewBadRequest("the owner cannot be removed from a workspace")
	}

	member, err := u.repo.FindMember(ws.ID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return appErrors.ErrNotFound.WithMessage("member not found")
	}
	return u.repo.RemoveMember(ws.ID, userID)
}

// Delete removes a workspace with its agents, connections and records, and returns
// the matching usage to the users who created them.
func (u *workspaceUsecase) Delete(ctx context.Context, actor *authdomain.User, id string) error {
	ws, err := u.requireOwner(ctx, actor, id)
	if err != nil {
		return err
	}

	count, err := u.repo.CountMemberships(actor.ID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return appErrors.NewBadRequest("you cannot delete your only workspace")
	}

	err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := u.repo.WithTx(tx).Delete(ws.ID)
		if err != nil {
			return err
		}
		if err := quota.Release(tx, ws.OwnerID, quota.Workspaces, 1); err != nil {
			return err
		}
		for userID, n := range owned.Agents {
			if err := quota.Release(tx, userID, quota.Agents, n); err != nil {
				return err
			}
		}
		for userID, n := range owned.Connections {
			if err := quota.Release(tx, userID, quota.ConnectedGmailAccounts, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.log.Info("workspace deleted", zap.String("workspace_id", ws.ID))
	return nil
}

func (u *workspaceUsecase) Stats(ctx context.Context, actor *authdomain.User, id string) (*workspacedomain.Stats, error) {
	ws, err := u.Authorize(ctx, actor.ID, id)
	if err != nil {
		return nil, err
	}

	stats := &workspacedomain.Stats{}
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.Agents, stats.PublishedAgents, err = u.repo.AgentCounts(ws.ID)
		return err
	})
	g.Go(func() error {
		var err error
		stats.ActiveConnections, err = u.repo.ActiveConnectionCount(ws.ID)
		return err
	})
	g.Go(func() error {
		var err error
		stats.Emails, err = u.repo.EmailCountsByStatus(ws.ID)
		return err
	})
	g.Go(func() error {
		owner, err := u.userRepo.FindByID(ws.OwnerID)
		if err != nil || owner == nil {
			return err
		}
		stats.EmailsSent = owner.Usage.EmailSent
		stats.EmailLimit = owner.Limits.EmailSent
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (u *workspaceUsecase) Authorize(ctx context.Context, userID, workspaceID string) (*workspacedomain.Workspace, error) {
	ws, err := u.Find(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for _, m := range ws.Members {
		if m.UserID == userID {
			return ws, nil
		}
	}
	return nil, appErrors.ErrForbidden.WithMessage("you are not a member of this workspace")
}

func (u *workspaceUsecase) Find(ctx context.Context, workspaceID string) (*workspacedomain.Workspace, error) {
	ws, err := u.repo.FindByID(workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, appErrors.ErrNotFound.WithMessage("workspace not found")
	}
	return ws, nil
}

func (u *workspaceUsecase) MemberIDs(ctx context.Context, workspaceID string) ([]string, error) {
	return u.repo.MemberIDs(workspaceID)
}

func (u *workspaceUsecase) WithInactiveConnections(ctx context.Context) ([]string, error) {
	return u.repo.IDsWithInactiveConnections()
}

func (u *workspaceUsecase) requireOwner(ctx context.Context, actor *authdomain.User, id string) (*workspacedomain.Workspace, error) {
	ws, err := u.Authorize(ctx, actor.ID, id)
	if err != nil {
		return nil, err
	}
	if !ws.IsOwner(actor.ID) {
		return nil, appErrors.ErrForbidden.WithMessage("only the workspace owner can do this")
	}
	return ws, nil
}
