package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	activitydomain "welcome-agent/internal/activity/domain"
	activityusecase "welcome-agent/internal/activity/usecase"
	agentdomain "welcome-agent/internal/agent/domain"
	connectiondto "welcome-agent/internal/connection/dto"
	emaildomain "welcome-agent/internal/email/domain"
	workspacedomain "welcome-agent/internal/workspace/domain"
	"welcome-agent/pkg/ai"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/metrics"
)

const errNoAccount = "no Gmail account configured"

type job struct {
	agent           *agentdomain.Agent
	workspace       *workspacedomain.Workspace
	signupInfo      string
	recipient       string
	directive       string
	business        agentdomain.BusinessContext
	sourceMessageID *string
}

type output struct {
	userInfo     string
	businessInfo string
	confidence   string
	subject      string
	body         string
}

// run executes research, composition and delivery for one signup and persists exactly one record.
// The record is returned whenever it was stored, even alongside an error.
func (u *generationUsecase) run(ctx context.Context, j *job) (*emaildomain.Record, *output, error) {
	rec := &emaildomain.Record{
		RecipientEmail:    j.recipient,
		AgentID:           j.agent.ID,
		AgentName:         j.agent.Name,
		WorkspaceID:       j.workspace.ID,
		GmailConnectionID: j.agent.Configuration.EmailAccount,
		SourceMessageID:   j.sourceMessageID,
	}

	out, err := u.compose(ctx, j)
	if err != nil {
		out = &output{subject: fallbackSubject, body: fallbackBody(u.signOff(ctx, j))}
		rec.Subject = out.subject
		rec.Body = out.body
		rec.Status = emaildomain.StatusFailed
		rec.Error = err.Error()
		if cerr := u.Records.Create(ctx, rec); cerr != nil {
			u.log.Error("failed to store fallback record", zap.String("agent_id", j.agent.ID), zap.Error(cerr))
			return nil, out, err
		}
		metrics.PipelineRuns.WithLabelValues(string(rec.Status)).Inc()
		return rec, out, err
	}

	rec.Subject = out.subject
	rec.Body = out.body
	rec.UserInfo = out.userInfo
	rec.BusinessInfo = out.businessInfo

	settings := j.agent.Configuration.Settings
	review := settings.ReviewBeforeSending ||
		(settings.SendOnlyWhenConfident && out.confidence != ConfidenceHigh)

	switch {
	case review:
		rec.Status = emaildomain.StatusUnderReview
	case rec.GmailConnectionID == "":
		rec.Status = emaildomain.StatusFailed
		rec.Error = errNoAccount
		u.stage(ctx, j, "delivery", activitydomain.StatusFailed, map[string]string{"error": errNoAccount})
	default:
		// Stored claimed for sending so a redelivered signup finds it before anything goes out.
		claimedAt := u.now().UTC()
		rec.Status = emaildomain.StatusUnderReview
		rec.SendingAt = &claimedAt
	}

	if err := u.Records.Create(ctx, rec); err != nil {
		if existing := u.storedFor(ctx, j); existing != nil {
			metrics.PipelineRuns.WithLabelValues("duplicate").Inc()
			return existing, out, nil
		}
		return nil, out, err
	}

	var sendErr error
	if rec.SendingAt != nil {
		sendErr = u.deliver(ctx, j, rec)
	}

	metrics.PipelineRuns.WithLabelValues(string(rec.Status)).Inc()
	u.log.Info("welcome email generated",
		zap.String("record_id", rec.ID),
		zap.String("agent_id", j.agent.ID),
		zap.String("status", string(rec.Status)),
		zap.String("confidence", out.confidence),
	)

	if rec.Status == emaildomain.StatusUnderReview && rec.SendingAt == nil && u.notifier != nil {
		go u.notifier.NotifyReview(context.WithoutCancel(ctx), j.agent, rec)
	}
	return rec, out, sendErr
}

// storedFor returns the record another delivery of the same signup already stored.
func (u *generationUsecase) storedFor(ctx context.Context, j *job) *emaildomain.Record {
	if j.sourceMessageID == nil {
		return nil
	}
	existing, err := u.Records.FindBySourceMessageID(ctx, *j.sourceMessageID)
	if err != nil {
		return nil
	}
	return existing
}

// deliver sends a claimed record and stores the outcome on it. rec reflects the outcome even when
// storing it fails.
func (u *generationUsecase) deliver(ctx context.Context, j *job, rec *emaildomain.Record) error {
	u.stage(ctx, j, "delivery", activitydomain.StatusPending, map[string]string{"to": rec.RecipientEmail})

	res, err := u.Mailer.SendEmail(ctx, connectiondto.SendInput{
		ConnectionID: rec.GmailConnectionID,
		To:           rec.RecipientEmail,
		Subject:      rec.Subject,
		Body:         rec.Body,
	})

	var sentAt *time.Time
	if err != nil {
		rec.Status = emaildomain.StatusFailed
		rec.Error = err.Error()
		u.stage(ctx, j, "delivery", activitydomain.StatusFailed, map[string]string{"error": err.Error()})
	} else {
		at := res.SentAt
		sentAt = &at
		rec.Status = emaildomain.StatusSent
		rec.SentAt = sentAt
		u.stage(ctx, j, "delivery", activitydomain.StatusSuccess, map[string]string{"messageId": res.MessageID})
	}

	stored, ferr := u.Records.CompleteSend(context.WithoutCancel(ctx), rec.ID, sentAt, err)
	if ferr != nil {
		u.log.Error("failed to store delivery outcome",
			zap.String("record_id", rec.ID),
			zap.String("status", string(rec.Status)),
			zap.Error(ferr),
		)
		rec.SendingAt = nil
		return err
	}
	*rec = *stored
	return err
}

// compose runs the two research calls and then the body and subject calls. Calls inside a stage
// run concurrently and the first failure cancels its sibling.
func (u *generationUsecase) compose(ctx context.Context, j *job) (*output, error) {
	out := &output{}

	u.stage(ctx, j, "research", activitydomain.StatusPending, nil)
	research := u.Models.ResearchModel()
	g, gctx := errgroup.WithContext(ctx)
	var rawUser string
	g.Go(func() error {
		var err error
		rawUser, err = u.call(gctx, "user_research", research, userResearchPrompt(j.signupInfo, j.business.Purpose))
		return err
	})
	g.Go(func() error {
		var err error
		out.businessInfo, err = u.call(gctx, "business_research", research, businessResearchPrompt(
			j.signupInfo, j.business.Website, j.business.Purpose, j.business.WebsiteSummary, j.business.AdditionalContext))
		return err
	})
	if err := g.Wait(); err != nil {
		u.stage(ctx, j, "research", activitydomain.StatusFailed, map[string]string{"error": err.Error()})
		return nil, err
	}
	out.userInfo, out.confidence = splitConfidence(rawUser)
	out.businessInfo = strings.TrimSpace(out.businessInfo)
	u.stage(ctx, j, "research", activitydomain.StatusSuccess, map[string]string{"confidence": out.confidence})

	u.stage(ctx, j, "compose", activitydomain.StatusPending, nil)
	writer := u.Models.WriterModel()
	signOff := u.signOff(ctx, j)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := u.call(gctx, "body", writer, bodyPrompt(j.directive, out.userInfo, out.businessInfo, signOff))
		out.body = cleanBody(body)
		return err
	})
	g.Go(func() error {
		subject, err := u.call(gctx, "subject", writer, subjectPrompt(out.userInfo))
		out.subject = cleanSubject(subject)
		return err
	})
	if err := g.Wait(); err != nil {
		u.stage(ctx, j, "compose", activitydomain.StatusFailed, map[string]string{"error": err.Error()})
		return nil, err
	}
	if out.subject == "" {
		out.subject = fallbackSubject
	}
	u.stage(ctx, j, "compose", activitydomain.StatusSuccess, map[string]string{"subject": out.subject})
	return out, nil
}

func (u *generationUsecase) call(ctx context.Context, stage, model string, msgs []ai.Message) (string, error) {
	text, err := u.Chat.Chat(ctx, model, msgs)
	if err != nil {
		metrics.LLMCalls.WithLabelValues(stage, "failure").Inc()
		u.log.Warn("llm call failed", zap.String("stage", stage), zap.String("model", model), zap.Error(err))
		return "", appErrors.Upstream("llm", err)
	}
	metrics.LLMCalls.WithLabelValues(stage, "success").Inc()
	return text, nil
}

// signOff prefers the display name of the sending mailbox and falls back to the workspace name.
func (u *generationUsecase) signOff(ctx context.Context, j *job) string {
	if id := j.agent.Configuration.EmailAccount; id != "" && u.Connections != nil {
		conn, err := u.Connections.Get(ctx, id)
		if err == nil && conn.Name != "" {
			return conn.Name
		}
		if err != nil {
			u.log.Warn("sign-off connection lookup failed", zap.String("connection_id", id), zap.Error(err))
		}
	}
	return j.workspace.Name
}

func (u *generationUsecase) stage(ctx context.Context, j *job, name string, status activitydomain.Status, extra map[string]string) {
	details := map[string]string{"stage": name, "recipient": j.recipient}
	entry := activityusecase.Entry{
		Type:        activitydomain.TypeAPI,
		Status:      status,
		Details:     details,
		WorkspaceID: j.workspace.ID,
		AgentID:     j.agent.ID,
	}
	if status == activitydomain.StatusPending {
		for k, v := range extra {
			details[k] = v
		}
	} else if extra != nil {
		entry.Response = extra
	}
	u.Activity.Record(ctx, entry)
}
