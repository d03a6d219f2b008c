package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	activitydomain "welcome-agent/internal/activity/domain"
	activityusecase "welcome-agent/internal/activity/usecase"
	agentdomain "welcome-agent/internal/agent/domain"
	authdomain "welcome-agent/internal/auth/domain"
	connectiondomain "welcome-agent/internal/connection/domain"
	connectiondto "welcome-agent/internal/connection/dto"
	emaildomain "welcome-agent/internal/email/domain"
	"welcome-agent/internal/generation/dto"
	workspacedomain "welcome-agent/internal/workspace/domain"
	"welcome-agent/pkg/ai"
	"welcome-agent/pkg/crawler"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/logger"
	"welcome-agent/pkg/metrics"
	"welcome-agent/pkg/validator"
)

const sampleSignup = "Name: Alex Sample\nEmail: alex@example.com\nCompany: Example Co\nRole: Head of Operations"

type AgentStore interface {
	Get(ctx context.Context, actor *authdomain.User, id string) (*agentdomain.Agent, error)
	Find(ctx context.Context, id string) (*agentdomain.Agent, error)
	RecordTestEmail(ctx context.Context, id string, test *agentdomain.TestEmail) error
	SetWebsiteSummary(ctx context.Context, id, summary string) error
}

type WorkspaceAccess interface {
	Authorize(ctx context.Context, userID, workspaceID string) (*workspacedomain.Workspace, error)
	Find(ctx context.Context, workspaceID string) (*workspacedomain.Workspace, error)
}

type RecordStore interface {
	Create(ctx context.Context, rec *emaildomain.Record) error
	FindBySourceMessageID(ctx context.Context, sourceID string) (*emaildomain.Record, error)
	CompleteSend(ctx context.Context, id string, sentAt *time.Time, sendErr error) (*emaildomain.Record, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, in connectiondto.SendInput) (*connectiondto.SendResult, error)
}

type ConnectionLookup interface {
	Get(ctx context.Context, id string) (*connectiondomain.Connection, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, entry activityusecase.Entry)
}

// ReviewNotifier is told about every record that lands in under_review.
type ReviewNotifier interface {
	NotifyReview(ctx context.Context, agent *agentdomain.Agent, rec *emaildomain.Record)
}

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*crawler.Page, error)
}

type ModelSource interface {
	ResearchModel() string
	WriterModel() string
}

type Deps struct {
	Chat        ai.ChatClient
	Models      ModelSource
	Agents      AgentStore
	Workspaces  WorkspaceAccess
	Records     RecordStore
	Mailer      Mailer
	Connections ConnectionLookup
	Activity    ActivityRecorder
	Crawler     PageFetcher
}

type GenerationUsecase interface {
	Generate(ctx context.Context, actor *authdomain.User, in dto.GenerateEmailRequest) (*dto.GenerateEmailResponse, error)
	// GenerateForAgent runs the pipeline for a signup delivered by Pub/Sub. A sourceMessageID that
	// already produced a record returns that record without running again.
	GenerateForAgent(ctx context.Context, agentID, signupInfo, email, sourceMessageID string) (*emaildomain.Record, error)
	TestAgent(ctx context.Context, actor *authdomain.User, agentID string, signupInfo, email string) (*agentdomain.TestEmail, error)
	SummarizeWebsite(ctx context.Context, actor *authdomain.User, agentID string) (string, error)
	SetNotifier(n ReviewNotifier)
}

type generationUsecase struct {
	Deps
	notifier ReviewNotifier
	now      func() time.Time
	log      *zap.Logger
}

func NewGenerationUsecase(deps Deps) GenerationUsecase {
	return &generationUsecase{
		Deps: deps,
		now:  time.Now,
		log:  logger.WithModule("pipeline"),
	}
}

// SetNotifier is separate from the constructor because the notifier itself depends on services built later.
func (u *generationUsecase) SetNotifier(n ReviewNotifier) {
	u.notifier = n
}

func (u *generationUsecase) Generate(ctx context.Context, actor *authdomain.User, in dto.GenerateEmailRequest) (*dto.GenerateEmailResponse, error) {
	if err := validator.Check(in); err != nil {
		return nil, err
	}
	ws, err := u.Workspaces.Authorize(ctx, actor.ID, in.WorkspaceID)
	if err != nil {
		return nil, err
	}
	agent, err := u.Agents.Find(ctx, in.AgentID)
	if err != nil {
		return nil, err
	}
	if agent.WorkspaceID != ws.ID {
		return nil, appErrors.ErrNotFound.WithMessage("agent not found")
	}

	job := jobFromAgent(agent, ws)
	if strings.TrimSpace(in.Directive) != "" {
		job.directive = in.Directive
	}
	mergeContext(&job.business, in.BusinessContext)
	job.signupInfo = in.SignupInfo
	job.recipient = recipientFrom(in.Email, in.SignupInfo)
	if job.recipient == "" {
		return nil, appErrors.NewBadRequest("signup info has no email address")
	}

	rec, out, err := u.run(ctx, job)
	if err != nil && rec == nil {
		return nil, err
	}
	resp := &dto.GenerateEmailResponse{
		Success: err == nil,
		Email:   &dto.GeneratedEmail{To: rec.RecipientEmail, Subject: out.subject, Body: out.body},
		Record:  &dto.RecordRef{ID: rec.ID, Status: string(rec.Status), Error: rec.Error},
	}
	if err != nil {
		resp.Error = appErrors.FromError(err).Message
		return resp, err
	}
	return resp, nil
}

func (u *generationUsecase) GenerateForAgent(ctx context.Context, agentID, signupInfo, email, sourceMessageID string) (*emaildomain.Record, error) {
	if sourceMessageID != "" {
		existing, err := u.Records.FindBySourceMessageID(ctx, sourceMessageID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			metrics.PipelineRuns.WithLabelValues("duplicate").Inc()
			return existing, nil
		}
	}
	if strings.TrimSpace(signupInfo) == "" {
		return nil, appErrors.NewBadRequest("signupInfo is required")
	}

	agent, err := u.Agents.Find(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.Status != agentdomain.StatusPublished {
		return nil, appErrors.NewBadRequest("agent " + agentID + " is not published")
	}
	ws, err := u.Workspaces.Find(ctx, agent.WorkspaceID)
	if err != nil {
		return nil, err
	}

	job := jobFromAgent(agent, ws)
	job.signupInfo = signupInfo
	job.recipient = recipientFrom(email, signupInfo)
	if job.recipient == "" {
		return nil, appErrors.NewBadRequest("signup info has no email address")
	}
	if sourceMessageID != "" {
		id := sourceMessageID
		job.sourceMessageID = &id
	}

	rec, _, err := u.run(ctx, job)
	if rec != nil {
		return rec, err
	}
	return nil, err
}

// TestAgent generates an email for a sample signup and sends it as a test to email, the agent's
// notification address or the actor. Test sends do not count toward the monthly quota.
func (u *generationUsecase) TestAgent(ctx context.Context, actor *authdomain.User, agentID string, signupInfo, email string) (*agentdomain.TestEmail, error) {
	agent, err := u.Agents.Get(ctx, actor, agentID)
	if err != nil {
		return nil, err
	}
	ws, err := u.Workspaces.Find(ctx, agent.WorkspaceID)
	if err != nil {
		return nil, err
	}

	to := strings.TrimSpace(email)
	if to == "" {
		to = agent.Configuration.NotificationEmail
	}
	if to == "" {
		to = actor.Email
	}
	if strings.TrimSpace(signupInfo) == "" {
		signupInfo = sampleSignup
	}

	job := jobFromAgent(agent, ws)
	job.signupInfo = signupInfo
	job.recipient = to

	out, err := u.compose(ctx, job)
	if err != nil {
		return nil, err
	}

	test := &agentdomain.TestEmail{To: to, Subject: out.subject, Body: out.body, SentAt: u.now().UTC()}
	if agent.Configuration.EmailAccount == "" {
		test.Error = errNoAccount
	} else if _, err := u.Mailer.SendEmail(ctx, connectiondto.SendInput{
		ConnectionID: agent.Configuration.EmailAccount,
		To:           to,
		Subject:      out.subject,
		Body:         out.body,
		Test:         true,
	}); err != nil {
		test.Error = err.Error()
	} else {
		test.Sent = true
	}

	if err := u.Agents.RecordTestEmail(ctx, agent.ID, test); err != nil {
		return nil, err
	}
	return test, nil
}

func (u *generationUsecase) SummarizeWebsite(ctx context.Context, actor *authdomain.User, agentID string) (string, error) {
	agent, err := u.Agents.Get(ctx, actor, agentID)
	if err != nil {
		return "", err
	}
	site := strings.TrimSpace(agent.BusinessContext.Website)
	if site == "" {
		return "", appErrors.NewBadRequest("agent has no website configured")
	}

	entry := activityusecase.Entry{
		Type:        activitydomain.TypeCrawl,
		WorkspaceID: agent.WorkspaceID,
		AgentID:     agent.ID,
		Details:     map[string]string{"url": site},
	}
	entry.Status = activitydomain.StatusPending
	u.Activity.Record(ctx, entry)

	summary, err := u.summarize(ctx, site)
	if err != nil {
		entry.Status = activitydomain.StatusFailed
		entry.Response = map[string]string{"error": err.Error()}
		u.Activity.Record(ctx, entry)
		return "", err
	}

	if err := u.Agents.SetWebsiteSummary(ctx, agent.ID, summary); err != nil {
		return "", err
	}
	entry.Status = activitydomain.StatusSuccess
	entry.Response = map[string]int{"summaryChars": len(summary)}
	u.Activity.Record(ctx, entry)
	return summary, nil
}

func (u *generationUsecase) summarize(ctx context.Context, site string) (string, error) {
	page, err := u.Crawler.Fetch(ctx, site)
	if err != nil {
		return "", appErrors.NewBadRequest("could not read website: " + err.Error())
	}
	if strings.TrimSpace(page.Text) == "" && page.Title == "" {
		return "", appErrors.NewBadRequest("website has no readable content")
	}
	summary, err := u.Chat.Chat(ctx, u.Models.ResearchModel(), websitePrompt(page.Prompt()))
	if err != nil {
		metrics.LLMCalls.WithLabelValues("website_summary", "failure").Inc()
		return "", appErrors.Upstream("llm", err)
	}
	metrics.LLMCalls.WithLabelValues("website_summary", "success").Inc()
	return strings.TrimSpace(summary), nil
}

func jobFromAgent(agent *agentdomain.Agent, ws *workspacedomain.Workspace) *job {
	return &job{
		agent:     agent,
		workspace: ws,
		directive: agent.EmailPurpose.Directive,
		business:  agent.BusinessContext,
	}
}

func mergeContext(dst *agentdomain.BusinessContext, src agentdomain.BusinessContext) {
	if src.Website != "" {
		dst.Website = src.Website
	}
	if src.Purpose != "" {
		dst.Purpose = src.Purpose
	}
	if src.AdditionalContext != "" {
		dst.AdditionalContext = src.AdditionalContext
	}
	if src.WebsiteSummary != "" {
		dst.WebsiteSummary = src.WebsiteSummary
	}
}
