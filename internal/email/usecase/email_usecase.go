package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	authdomain "welcome-agent/internal/auth/domain"
	connectiondto "welcome-agent/internal/connection/dto"
	"welcome-agent/internal/email/domain"
	"welcome-agent/internal/email/dto"
	"welcome-agent/internal/email/repository"
	workspacedomain "welcome-agent/internal/workspace/domain"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/logger"
	"welcome-agent/pkg/validator"
)

// A send claim older than this is treated as abandoned by a crashed process.
const sendClaimTTL = 10 * time.Minute

// Mailer delivers a message through a connected Gmail account.
type Mailer interface {
	SendEmail(ctx context.Context, in connectiondto.SendInput) (*connectiondto.SendResult, error)
}

type WorkspaceAccess interface {
	Authorize(ctx context.Context, userID, workspaceID string) (*workspacedomain.Workspace, error)
}

// EmailUsecase stores generated welcome emails and drives their review.
type EmailUsecase interface {
	Create(ctx context.Context, rec *domain.Record) error
	FindBySourceMessageID(ctx context.Context, sourceID string) (*domain.Record, error)
	CompleteSend(ctx context.Context, id string, sentAt *time.Time, sendErr error) (*domain.Record, error)

	List(ctx context.Context, actor *authdomain.User, q dto.ListQuery) (*dto.ListResponse, error)
	Get(ctx context.Context, actor *authdomain.User, id string) (*domain.Record, error)
	Update(ctx context.Context, actor *authdomain.User, id string, req dto.UpdateRecordRequest) (*domain.Record, error)
	Approve(ctx context.Context, actor *authdomain.User, id string) (*domain.Record, error)
	Deny(ctx context.Context, actor *authdomain.User, id string) (*domain.Record, error)
}

type emailUsecase struct {
	repo       repository.RecordRepository
	mailer     Mailer
	workspaces WorkspaceAccess
	now        func() time.Time
	log        *zap.Logger
}

func NewEmailUsecase(repo repository.RecordRepository, mailer Mailer, workspaces WorkspaceAccess) EmailUsecase {
	return &emailUsecase{
		repo:       repo,
		mailer:     mailer,
		workspaces: workspaces,
		now:        time.Now,
		log:        logger.WithModule("email"),
	}
}

// Create stores a freshly generated record. Only under_review, sent and failed are valid initial states.
func (u *emailUsecase) Create(ctx context.Context, rec *domain.Record) error {
	if !rec.Status.Initial() {
		return appErrors.NewBadRequest("invalid initial status " + string(rec.Status))
	}
	if rec.WorkspaceID == "" {
		return appErrors.NewBadRequest("workspaceId is required")
	}
	return u.repo.Create(rec)
}

func (u *emailUsecase) FindBySourceMessageID(ctx context.Context, sourceID string) (*domain.Record, error) {
	return u.repo.FindBySourceMessageID(sourceID)
}

// List pages through a workspace's history newest first. It fetches one extra row to know
// whether another page exists.
func (u *emailUsecase) List(ctx context.Context, actor *authdomain.User, q dto.ListQuery) (*dto.ListResponse, error) {
	if _, err := u.workspaces.Authorize(ctx, actor.ID, q.WorkspaceID); err != nil {
		return nil, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, appErrors.NewBadRequest("unknown status " + string(q.Status))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = dto.DefaultPageSize
	}
	if limit > dto.MaxPageSize {
		limit = dto.MaxPageSize
	}

	after, err := decodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	filter := repository.ListFilter{
		WorkspaceID: q.WorkspaceID,
		AgentID:     q.AgentID,
		Status:      q.Status,
		After:       after,
		Limit:       limit + 1,
	}
	items, err := u.repo.List(filter)
	if err != nil {
		return nil, err
	}
	total, err := u.repo.Count(filter)
	if err != nil {
		return nil, err
	}

	res := &dto.ListResponse{Items: items, Total: total}
	if len(items) > limit {
		res.Items = items[:limit]
		last := res.Items[limit-1]
		res.NextCursor = encodeCursor(repository.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	if res.Items == nil {
		res.Items = []domain.Record{}
	}
	return res, nil
}

func (u *emailUsecase) Get(ctx context.Context, actor *authdomain.User, id string) (*domain.Record, error) {
	rec, err := u.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, appErrors.ErrNotFound.WithMessage("email not found")
	}
	if _, err := u.workspaces.Authorize(ctx, actor.ID, rec.WorkspaceID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (u *emailUsecase) Update(ctx context.Context, actor *authdomain.User, id string, req dto.UpdateRecordRequest) (*domain.Record, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	rec, err := u.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.StatusUnderReview {
		return nil, appErrors.ErrInvalidTransition.WithMessage("only emails under review can be edited")
	}

	fields := map[string]interface{}{}
	if req.Subject != nil {
		fields["subject"] = strings.TrimSpace(*req.Subject)
	}
	if req.Body != nil {
		fields["body"] = *req.Body
	}
	if req.RecipientEmail != nil {
		fields["recipient_email"] = strings.ToLower(strings.TrimSpace(*req.RecipientEmail))
	}

	ok, err := u.repo.UpdateDraft(rec.ID, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, u.heldError(rec.ID)
	}
	return u.repo.FindByID(rec.ID)
}

// Approve sends a record under review. The record is claimed before the send so a concurrent
// deny or edit cannot slip in while Gmail is being called. A failed send leaves the record failed
// with the provider error. Running out of email quota releases the claim and leaves it untouched.
func (u *emailUsecase) Approve(ctx context.Context, actor *authdomain.User, id string) (*domain.Record, error) {
	rec, err := u.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(rec.Status, domain.StatusSent) {
		return nil, appErrors.ErrInvalidTransition.WithMessage("email is " + string(rec.Status) + " and cannot be approved")
	}
	if rec.GmailConnectionID == "" {
		return nil, appErrors.NewBadRequest("no Gmail account is linked to this email")
	}

	claimedAt := u.now().UTC()
	ok, err := u.repo.Claim(rec.ID, claimedAt, claimedAt.Add(-sendClaimTTL))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, u.heldError(rec.ID)
	}

	res, sendErr := u.mailer.SendEmail(ctx, connectiondto.SendInput{
		ConnectionID: rec.GmailConnectionID,
		To:           rec.RecipientEmail,
		Subject:      rec.Subject,
		Body:         rec.Body,
	})
	if sendErr != nil && errors.Is(sendErr, appErrors.ErrQuotaExceeded) {
		if err := u.repo.ReleaseClaim(rec.ID); err != nil {
			u.log.Error("failed to release send claim", zap.String("email_id", rec.ID), zap.Error(err))
		}
		return nil, sendErr
	}

	var sentAt *time.Time
	if sendErr == nil {
		at := res.SentAt
		if at.IsZero() {
			at = u.now()
		}
		sentAt = &at
	}
	updated, err := u.CompleteSend(ctx, rec.ID, sentAt, sendErr)
	if err != nil {
		return nil, err
	}

	u.log.Info("email reviewed",
		zap.String("email_id", rec.ID),
		zap.String("status", string(updated.Status)),
		zap.String("actor_id", actor.ID),
	)
	if sendErr != nil {
		return nil, sendErr
	}
	return updated, nil
}

// CompleteSend records the outcome of a send on a claimed record: sent with sentAt, or failed
// with the provider error.
func (u *emailUsecase) CompleteSend(ctx context.Context, id string, sentAt *time.Time, sendErr error) (*domain.Record, error) {
	to := domain.StatusSent
	fields := map[string]interface{}{}
	if sendErr != nil {
		to = domain.StatusFailed
		fields["error"] = sendErr.Error()
	} else {
		if sentAt == nil {
			now := u.now()
			sentAt = &now
		}
		fields["sent_at"] = sentAt.UTC()
		fields["error"] = ""
	}

	ok, err := u.repo.Finish(id, to, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.ErrInvalidTransition.WithMessage("email is not being sent")
	}
	return u.repo.FindByID(id)
}

func (u *emailUsecase) Deny(ctx context.Context, actor *authdomain.User, id string) (*domain.Record, error) {
	rec, err := u.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(rec.Status, domain.StatusDenied) {
		return nil, appErrors.ErrInvalidTransition.WithMessage("email is " + string(rec.Status) + " and cannot be denied")
	}

	ok, err := u.repo.Transition(rec.ID, domain.StatusUnderReview, domain.StatusDenied, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, u.heldError(rec.ID)
	}

	u.log.Info("email denied", zap.String("email_id", rec.ID), zap.String("actor_id", actor.ID))
	return u.repo.FindByID(rec.ID)
}

// heldError explains why a conditional write on an under_review record matched nothing.
func (u *emailUsecase) heldError(id string) error {
	current, err := u.repo.FindByID(id)
	if err != nil {
		return err
	}
	if current != nil && current.Status == domain.StatusUnderReview {
		return appErrors.ErrConflict.WithMessage("email is being sent")
	}
	return appErrors.ErrInvalidTransition.WithMessage("email is no longer under review")
}
