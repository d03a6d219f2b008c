package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"welcome-agent/internal/agent/domain"
	"welcome-agent/internal/agent/dto"
	"welcome-agent/internal/agent/repository"
	authdomain "welcome-agent/internal/auth/domain"
	authrepo "welcome-agent/internal/auth/repository"
	connectiondomain "welcome-agent/internal/connection/domain"
	workspacedomain "welcome-agent/internal/workspace/domain"
	workspacerepo "welcome-agent/internal/workspace/repository"
	workspaceusecase "welcome-agent/internal/workspace/usecase"
	"welcome-agent/pkg/database/testutil"
	appErrors "welcome-agent/pkg/errors"
)

type fakeConnections map[string]*connectiondomain.Connection

func (f fakeConnections) Get(ctx context.Context, id string) (*connectiondomain.Connection, error) {
	conn, ok := f[id]
	if !ok {
		return nil, appErrors.ErrNotFound.WithMessage("gmail connection not found")
	}
	return conn, nil
}

type fixture struct {
	users authrepo.UserRepository
	conns fakeConnections
	uc    AgentUsecase
	owner *authdomain.User
	ws    *workspacedomain.Workspace
}

func newFixture(t *testing.T, plan authdomain.Plan) *fixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t)
	users := authrepo.NewUserRepository(db)
	workspaces := workspaceusecase.NewWorkspaceUsecase(db, workspacerepo.NewWorkspaceRepository(db), users)

	owner := &authdomain.User{Email: "owner@acme.com", Name: "Owner", Provider: authdomain.ProviderEmail, Plan: plan}
	require.NoError(t, users.Create(owner))
	ws, err := workspaces.Create(context.Background(), owner, "Acme")
	require.NoError(t, err)

	conns := fakeConnections{
		"conn-active":   {ID: "conn-active", WorkspaceID: ws.ID, Email: "team@acme.com", IsActive: true},
		"conn-inactive": {ID: "conn-inactive", WorkspaceID: ws.ID, Email: "old@acme.com"},
		"conn-foreign":  {ID: "conn-foreign", WorkspaceID: "other-ws", Email: "x@other.com", IsActive: true},
	}
	return &fixture{
		users: users,
		conns: conns,
		uc:    NewAgentUsecase(db, repository.NewAgentRepository(db), workspaces, conns),
		owner: owner,
		ws:    ws,
	}
}

func (f *fixture) agentUsage(t *testing.T) int {
	t.Helper()
	u, err := f.users.FindByID(f.owner.ID)
	require.NoError(t, err)
	return u.Usage.Agents
}

func sampleRequest() dto.CreateAgentRequest {
	return dto.CreateAgentRequest{
		Name:   "Onboarding",
		Status: domain.StatusPublished,
		EmailPurpose: domain.EmailPurpose{
			Preset:    "welcome",
			Directive: "Welcome warmly",
		},
		BusinessContext: domain.BusinessContext{
			Website:           "https://acme.com",
			Purpose:           "newsletter signup",
			AdditionalContext: "We ship weekly",
		},
		Configuration: domain.Configuration{
			EmailAccount:      "conn-active",
			NotificationEmail: "alerts@acme.com",
			Settings: domain.Settings{
				SendOnlyWhenConfident: true,
				ReviewBeforeSending:   true,
			},
		},
	}
}

func TestCreateThenGetRoundTrips(t *testing.T) {
	f := newFixture(t, authdomain.PlanPro)
	ctx := context.Background()
	req := sampleRequest()

	created, err := f.uc.Create(ctx, f.owner, f.ws.ID, req)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := f.uc.Get(ctx, f.owner, created.ID)
	require.NoError(t, err)
	require.True(t, got.CreatedAt.Equal(created.CreatedAt))
	require.True(t, got.UpdatedAt.Equal(created.UpdatedAt))

	want := domain.Agent{
		ID:              created.ID,
		WorkspaceID:     f.ws.ID,
		Name:            req.Name,
		Status:          req.Status,
		CreatedBy:       f.owner.ID,
		EmailPurpose:    req.EmailPurpose,
		BusinessContext: req.BusinessContext,
		Configuration:   req.Configuration,
	}
	got.CreatedAt, got.UpdatedAt = time.Time{}, time.Time{}
	require.Equal(t, want, *got)
}

func TestAgentQuotaAcrossCreateAndDelete(t *testing.T) {
	f := newFixture(t, authdomain.PlanFree)
	ctx := context.Background()
	limit := authdomain.LimitsFor(authdomain.PlanFree).Agents

	first, err := f.uc.Create(ctx, f.owner, f.ws.ID, dto.CreateAgentRequest{Name: "One"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, first.Status)
	require.Equal(t, 1, f.agentUsage(t))

	_, err = f.uc.Create(ctx, f.owner, f.ws.ID, dto.CreateAgentRequest{Name: "Two"})
	require.ErrorIs(t, err, appErrors.ErrQuotaExceeded)
	require.LessOrEqual(t, f.agentUsage(t), limit)

	require.NoError(t, f.uc.Delete(ctx, f.owner, first.ID))
	require.Zero(t, f.agentUsage(t))

	_, err = f.uc.Create(ctx, f.owner, f.ws.ID, dto.CreateAgentRequest{Name: "Three"})
	require.NoError(t, err)
	require.Equal(t, 1, f.agentUsage(t))

	require.ErrorIs(t, f.uc.Delete(ctx, f.owner, first.ID), appErrors.ErrNotFound)
	require.Equal(t, 1, f.agentUsage(t))
}

func TestUpdateMergesOnlyProvidedFields(t *testing.T) {
	f := newFixture(t, authdomain.PlanPro)
	ctx := context.Background()
	created, err := f.uc.Create(ctx, f.owner, f.ws.ID, sampleRequest())
	require.NoError(t, err)

	directive := "Be brief"
	review := false
	updated, err := f.uc.Update(ctx, f.owner, created.ID, dto.UpdateAgentRequest{
		EmailPurpose: &dto.EmailPurposePatch{Directive: &directive},
		Configuration: &dto.ConfigurationPatch{
			Settings: &dto.SettingsPatch{ReviewBeforeSending: &review},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Be brief", updated.EmailPurpose.Directive)
	require.Equal(t, "welcome", updated.EmailPurpose.Preset)
	require.False(t, updated.Configuration.Settings.ReviewBeforeSending)
	require.True(t, updated.Configuration.Settings.SendOnlyWhenConfident)
	require.Equal(t, "conn-active", updated.Configuration.EmailAccount)
	require.Equal(t, "newsletter signup", updated.BusinessContext.Purpose)
	require.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	bogus := domain.Status("archived")
	_, err = f.uc.Update(ctx, f.owner, created.ID, dto.UpdateAgentRequest{Status: &bogus})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)
}

func TestEmailAccountMustBeActiveConnectionOfWorkspace(t *testing.T) {
	f := newFixture(t, authdomain.PlanPro)
	ctx := context.Background()

	for _, account := range []string{"conn-missing", "conn-inactive", "conn-foreign"} {
		req := sampleRequest()
		req.Configuration.EmailAccount = account
		_, err := f.uc.Create(ctx, f.owner, f.ws.ID, req)
		require.ErrorIs(t, err, appErrors.ErrBadRequest, account)
	}
	require.Zero(t, f.agentUsage(t))

	req := sampleRequest()
	req.Configuration.EmailAccount = ""
	created, err := f.uc.Create(ctx, f.owner, f.ws.ID, req)
	require.NoError(t, err)
	require.Empty(t, created.Configuration.EmailAccount)
}

func TestNonMembersCannotTouchAgents(t *testing.T) {
	f := newFixture(t, authdomain.PlanPro)
	ctx := context.Background()
	created, err := f.uc.Create(ctx, f.owner, f.ws.ID, sampleRequest())
	require.NoError(t, err)

	stranger := &authdomain.User{Email: "x@example.com", Provider: authdomain.ProviderEmail}
	require.NoError(t, f.users.Create(stranger))

	_, err = f.uc.Get(ctx, stranger, created.ID)
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = f.uc.Create(ctx, stranger, f.ws.ID, sampleRequest())
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	require.ErrorIs(t, f.uc.Delete(ctx, stranger, created.ID), appErrors.ErrForbidden)
}

func TestRecordTestEmailIsStored(t *testing.T) {
	f := newFixture(t, authdomain.PlanPro)
	ctx := context.Background()
	created, err := f.uc.Create(ctx, f.owner, f.ws.ID, sampleRequest())
	require.NoError(t, err)

	sentAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.uc.RecordTestEmail(ctx, created.ID, &domain.TestEmail{
		To: "owner@acme.com", Subject: "Hi", Body: "<p>Hi</p>", Sent: true, SentAt: sentAt,
	}))
	require.NoError(t, f.uc.SetWebsiteSummary(ctx, created.ID, "Acme sells anvils."))

	got, err := f.uc.Find(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastTestEmail)
	require.Equal(t, "Hi", got.LastTestEmail.Subject)
	require.True(t, got.LastTestEmail.SentAt.Equal(sentAt))
	require.Equal(t, "Acme sells anvils.", got.BusinessContext.WebsiteSummary)
	require.Equal(t, "Welcome warmly", got.EmailPurpose.Directive)
}
