package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	activityusecase "welcome-agent/internal/activity/usecase"
	agentdomain "welcome-agent/internal/agent/domain"
	authdomain "welcome-agent/internal/auth/domain"
	connectiondomain "welcome-agent/internal/connection/domain"
	connectiondto "welcome-agent/internal/connection/dto"
	emaildomain "welcome-agent/internal/email/domain"
	workspacedomain "welcome-agent/internal/workspace/domain"
	"welcome-agent/pkg/ai"
	"welcome-agent/pkg/crawler"
	appErrors "welcome-agent/pkg/errors"
)

var sentAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeChat answers by looking at the system prompt of each call.
type fakeChat struct {
	mu         sync.Mutex
	confidence string
	failOn     string
	calls      map[string][]ai.Message
}

func (f *fakeChat) Chat(ctx context.Context, model string, msgs []ai.Message) (string, error) {
	stage := "unknown"
	switch msgs[0].Content {
	case userResearchSystem:
		stage = "user"
	case businessResearchSystem:
		stage = "business"
	case bodySystem:
		stage = "body"
	case subjectSystem:
		stage = "subject"
	}

	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string][]ai.Message{}
	}
	f.calls[stage] = msgs
	f.mu.Unlock()

	if stage == f.failOn {
		return "", errors.New("openrouter API error (500): upstream exploded")
	}
	switch stage {
	case "user":
		conf := f.confidence
		if conf == "" {
			conf = "high"
		}
		return "Jane Doe is a product manager at Acme.\nCONFIDENCE: " + conf, nil
	case "business":
		return "Acme sells project planning software.", nil
	case "body":
		return "```html\n<p>Hi Jane, welcome aboard!</p>\n```", nil
	case "subject":
		return `Subject: "Welcome to Acme, Jane!"`, nil
	}
	return "", nil
}

func (f *fakeChat) prompt(stage string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.calls[stage]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

type staticModels struct{}

func (staticModels) ResearchModel() string { return "perplexity/sonar" }
func (staticModels) WriterModel() string   { return "anthropic/claude-3.5-sonnet" }

type fakeAgents struct {
	mu      sync.Mutex
	agents  map[string]*agentdomain.Agent
	members map[string]bool
}

func (f *fakeAgents) Get(ctx context.Context, actor *authdomain.User, id string) (*agentdomain.Agent, error) {
	agent, err := f.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.members[actor.ID] {
		return nil, appErrors.ErrForbidden
	}
	return agent, nil
}

func (f *fakeAgents) Find(ctx context.Context, id string) (*agentdomain.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[id]
	if !ok {
		return nil, appErrors.ErrNotFound.WithMessage("agent not found")
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAgents) RecordTestEmail(ctx context.Context, id string, test *agentdomain.TestEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents[id].LastTestEmail = test
	return nil
}

func (f *fakeAgents) SetWebsiteSummary(ctx context.Context, id, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents[id].BusinessContext.WebsiteSummary = summary
	return nil
}

type fakeWorkspaces struct {
	ws      *workspacedomain.Workspace
	members map[string]bool
}

func (f *fakeWorkspaces) Authorize(ctx context.Context, userID, workspaceID string) (*workspacedomain.Workspace, error) {
	ws, err := f.Find(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !f.members[userID] {
		return nil, appErrors.ErrForbidden
	}
	return ws, nil
}

func (f *fakeWorkspaces) Find(ctx context.Context, workspaceID string) (*workspacedomain.Workspace, error) {
	if workspaceID != f.ws.ID {
		return nil, appErrors.ErrNotFound.WithMessage("workspace not found")
	}
	return f.ws, nil
}

type fakeRecords struct {
	mu      sync.Mutex
	records []*emaildomain.Record
	// onCreate runs under the lock before a record is stored. A non-nil error rejects the insert.
	onCreate func(f *fakeRecords, rec *emaildomain.Record) error
}

func (f *fakeRecords) Create(ctx context.Context, rec *emaildomain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCreate != nil {
		if err := f.onCreate(f, rec); err != nil {
			return err
		}
	}
	rec.ID = uuid.NewString()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecords) CompleteSend(ctx context.Context, id string, at *time.Time, sendErr error) (*emaildomain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID != id {
			continue
		}
		if r.SendingAt == nil {
			return nil, appErrors.ErrInvalidTransition.WithMessage("email is not being sent")
		}
		stored := *r
		stored.SendingAt = nil
		if sendErr != nil {
			stored.Status = emaildomain.StatusFailed
			stored.Error = sendErr.Error()
		} else {
			stored.Status = emaildomain.StatusSent
			stored.SentAt = at
		}
		*r = stored
		return &stored, nil
	}
	return nil, appErrors.ErrNotFound.WithMessage("email not found")
}

func (f *fakeRecords) FindBySourceMessageID(ctx context.Context, sourceID string) (*emaildomain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.SourceMessageID != nil && *r.SourceMessageID == sourceID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRecords) all() []*emaildomain.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*emaildomain.Record(nil), f.records...)
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []connectiondto.SendInput
}

func (f *fakeMailer) SendEmail(ctx context.Context, in connectiondto.SendInput) (*connectiondto.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	if f.err != nil {
		return nil, f.err
	}
	return &connectiondto.SendResult{MessageID: "gmail-1", From: "team@acme.com", SentAt: sentAt}, nil
}

type fakeConnections struct{}

func (fakeConnections) Get(ctx context.Context, id string) (*connectiondomain.Connection, error) {
	if id != "conn-1" {
		return nil, appErrors.ErrNotFound.WithMessage("connection not found")
	}
	return &connectiondomain.Connection{ID: id, Email: "team@acme.com", Name: "Acme Team", IsActive: true}, nil
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []activityusecase.Entry
}

func (f *fakeActivity) Record(ctx context.Context, e activityusecase.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

// trail renders entries as "stage:status" pairs in insertion order.
func (f *fakeActivity) trail() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		stage := string(e.Type)
		if d, ok := e.Details.(map[string]string); ok && d["stage"] != "" {
			stage = d["stage"]
		}
		out = append(out, stage+":"+string(e.Status))
	}
	return out
}

type fakeNotifier struct {
	ch chan string
}

func (f *fakeNotifier) NotifyReview(ctx context.Context, agent *agentdomain.Agent, rec *emaildomain.Record) {
	f.ch <- rec.ID
}

type fakeCrawler struct {
	page *crawler.Page
	err  error
	url  string
}

func (f *fakeCrawler) Fetch(ctx context.Context, rawURL string) (*crawler.Page, error) {
	f.url = rawURL
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
