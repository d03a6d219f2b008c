package notification

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	agentdomain "welcome-agent/internal/agent/domain"
	authdomain "welcome-agent/internal/auth/domain"
	connectiondto "welcome-agent/internal/connection/dto"
	emaildomain "welcome-agent/internal/email/domain"
	"welcome-agent/pkg/fcm"
	"welcome-agent/pkg/logger"
)

type MemberLister interface {
	MemberIDs(ctx context.Context, workspaceID string) ([]string, error)
}

type TokenStore interface {
	GetTokensByUserIDs(userIDs []string) ([]authdomain.FCMToken, error)
	DeleteTokens(tokens []string) error
}

// Pusher delivers a push notification and returns the tokens that are no longer valid.
type Pusher interface {
	SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, in connectiondto.SendInput) (*connectiondto.SendResult, error)
}

// ReviewNotifier tells a workspace that a generated email is waiting for approval.
type ReviewNotifier struct {
	members     MemberLister
	tokens      TokenStore
	pusher      Pusher
	mailer      Mailer
	frontendURL string
	log         *zap.Logger
}

// NewReviewNotifier builds a notifier. pusher may be nil when FCM is not configured.
func NewReviewNotifier(members MemberLister, tokens TokenStore, pusher Pusher, mailer Mailer, frontendURL string) *ReviewNotifier {
	return &ReviewNotifier{
		members:     members,
		tokens:      tokens,
		pusher:      pusher,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         logger.WithModule("notification"),
	}
}

func (n *ReviewNotifier) NotifyReview(ctx context.Context, agent *agentdomain.Agent, rec *emaildomain.Record) {
	log := n.log.With(zap.String("record_id", rec.ID), zap.String("agent_id", agent.ID))
	link := n.frontendURL + "/emails/" + rec.ID

	if n.pusher != nil {
		if err := n.push(ctx, rec, link); err != nil {
			log.Warn("review push failed", zap.Error(err))
		}
	}

	to := agent.Configuration.NotificationEmail
	if to == "" || agent.Configuration.EmailAccount == "" {
		return
	}
	_, err := n.mailer.SendEmail(ctx, connectiondto.SendInput{
		ConnectionID: agent.Configuration.EmailAccount,
		To:           to,
		Subject:      "Review needed: " + rec.Subject,
		Body:         reviewBody(agent.Name, rec, link),
		Test:         true,
	})
	if err != nil {
		log.Warn("review email failed", zap.Error(err))
	}
}

func (n *ReviewNotifier) push(ctx context.Context, rec *emaildomain.Record, link string) error {
	userIDs, err := n.members.MemberIDs(ctx, rec.WorkspaceID)
	if err != nil {
		return err
	}
	devices, err := n.tokens.GetTokensByUserIDs(userIDs)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.Token)
	}

	invalid, err := n.pusher.SendToDevices(ctx, tokens, fcm.NotificationData{
		Title: "Welcome email awaiting review",
		Body:  fmt.Sprintf("%s: %s", rec.RecipientEmail, rec.Subject),
		Data: map[string]string{
			"type":        "email_review",
			"recordId":    rec.ID,
			"workspaceId": rec.WorkspaceID,
		},
		Link: link,
	})
	if err != nil {
		return err
	}
	if len(invalid) > 0 {
		n.log.Info("pruning invalid device tokens", zap.Int("count", len(invalid)))
		return n.tokens.DeleteTokens(invalid)
	}
	return nil
}

func reviewBody(agentName string, rec *emaildomain.Record, link string) string {
	return fmt.Sprintf(
		`<p>%s generated a welcome email for <strong>%s</strong> that is waiting for your review.</p>`+
			`<p><strong>Subject:</strong> %s</p><p><a href="%s">Review it in the dashboard</a></p>`,
		html.EscapeString(agentName),
		html.EscapeString(rec.RecipientEmail),
		html.EscapeString(rec.Subject),
		html.EscapeString(link),
	)
}
