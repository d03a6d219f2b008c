package usecase

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"welcome-agent/internal/activity/domain"
	"welcome-agent/internal/activity/dto"
	"welcome-agent/internal/activity/repository"
	authdomain "welcome-agent/internal/auth/domain"
	workspacedomain "welcome-agent/internal/workspace/domain"
	"welcome-agent/pkg/logger"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry describes an audit event. Details and Response are stored as JSON.
type Entry struct {
	Type        domain.Type
	Status      domain.Status
	Details     interface{}
	Response    interface{}
	WorkspaceID string
	AgentID     string
}

type WorkspaceAccess interface {
	Authorize(ctx context.Context, userID, workspaceID string) (*workspacedomain.Workspace, error)
}

type ActivityUsecase interface {
	// Record appends an entry. Failures are logged and never returned to the caller.
	Record(ctx context.Context, entry Entry)
	List(ctx context.Context, actor *authdomain.User, workspaceID string, q dto.ListLogsQuery) ([]domain.Log, int64, error)
}

type activityUsecase struct {
	repo       repository.LogRepository
	workspaces WorkspaceAccess
	now        func() time.Time
	log        *zap.Logger
}

func NewActivityUsecase(repo repository.LogRepository, workspaces WorkspaceAccess) ActivityUsecase {
	return &activityUsecase{
		repo:       repo,
		workspaces: workspaces,
		now:        time.Now,
		log:        logger.WithModule("activity"),
	}
}

func (u *activityUsecase) Record(ctx context.Context, entry Entry) {
	row := &domain.Log{
		Type:        entry.Type,
		Status:      entry.Status,
		Details:     toJSON(entry.Details),
		Response:    toJSON(entry.Response),
		WorkspaceID: entry.WorkspaceID,
		AgentID:     entry.AgentID,
		Timestamp:   u.now().UTC(),
	}
	if err := u.repo.Create(row); err != nil {
		u.log.Error("failed to write activity log",
			zap.String("type", string(entry.Type)),
			zap.String("workspace_id", entry.WorkspaceID),
			zap.Error(err),
		)
	}
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return datatypes.JSON(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return datatypes.JSON(b)
}

func (u *activityUsecase) List(ctx context.Context, actor *authdomain.User, workspaceID string, q dto.ListLogsQuery) ([]domain.Log, int64, error) {
	if _, err := u.workspaces.Authorize(ctx, actor.ID, workspaceID); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	return u.repo.List(workspaceID, q.AgentID, limit, offset)
}
