package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	agentdomain "welcome-agent/internal/agent/domain"
	authdomain "welcome-agent/internal/auth/domain"
	authrepo "welcome-agent/internal/auth/repository"
	connectiondomain "welcome-agent/internal/connection/domain"
	emaildomain "welcome-agent/internal/email/domain"
	"welcome-agent/internal/quota"
	workspacedomain "welcome-agent/internal/workspace/domain"
	"welcome-agent/internal/workspace/repository"
	"welcome-agent/pkg/database/testutil"
	appErrors "welcome-agent/pkg/errors"
)

type fixture struct {
	db    *gorm.DB
	users authrepo.UserRepository
	uc    WorkspaceUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t)
	users := authrepo.NewUserRepository(db)
	return &fixture{
		db:    db,
		users: users,
		uc:    NewWorkspaceUsecase(db, repository.NewWorkspaceRepository(db), users),
	}
}

func (f *fixture) user(t *testing.T, email string, plan authdomain.Plan) *authdomain.User {
	t.Helper()
	u := &authdomain.User{Email: email, Name: "User " + email, Provider: authdomain.ProviderEmail, Plan: plan}
	require.NoError(t, f.users.Create(u))
	return u
}

func (f *fixture) usage(t *testing.T, id string) authdomain.Counters {
	t.Helper()
	u, err := f.users.FindByID(id)
	require.NoError(t, err)
	return u.Usage
}

func TestCreateFailsAtWorkspaceLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "free@example.com", authdomain.PlanFree)

	ws, err := f.uc.Create(ctx, owner, "Acme")
	require.NoError(t, err)
	require.Equal(t, owner.ID, ws.OwnerID)
	require.Len(t, ws.Members, 1)

	_, err = f.uc.Create(ctx, owner, "Second")
	require.ErrorIs(t, err, appErrors.ErrQuotaExceeded)
	require.Equal(t, 1, f.usage(t, owner.ID).Workspaces)

	list, err := f.uc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCreateValidatesName(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "a@example.com", authdomain.PlanPro)

	_, err := f.uc.Create(context.Background(), owner, "   ")
	require.ErrorIs(t, err, appErrors.ErrBadRequest)
	require.Zero(t, f.usage(t, owner.ID).Workspaces)
}

func TestDeleteOnlyWorkspaceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "pro@example.com", authdomain.PlanPro)

	first, err := f.uc.Create(ctx, owner, "One")
	require.NoError(t, err)

	err = f.uc.Delete(ctx, owner, first.ID)
	require.ErrorIs(t, err, appErrors.ErrBadRequest)

	second, err := f.uc.Create(ctx, owner, "Two")
	require.NoError(t, err)
	require.NoError(t, f.uc.Delete(ctx, owner, second.ID))
	require.Equal(t, 1, f.usage(t, owner.ID).Workspaces)

	_, err = f.uc.Get(ctx, owner, second.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDeleteCascadesAndReleasesUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", authdomain.PlanPro)
	member := f.user(t, "member@example.com", authdomain.PlanPro)

	keep, err := f.uc.Create(ctx, owner, "Keep")
	require.NoError(t, err)
	doomed, err := f.uc.Create(ctx, owner, "Doomed")
	require.NoError(t, err)
	_, err = f.uc.Invite(ctx, owner, doomed.ID, member.Email)
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, creator := range []string{owner.ID, member.ID, member.ID} {
		require.NoError(t, quota.Reserve(f.db, creator, quota.Agents))
		require.NoError(t, f.db.Create(&agentdomain.Agent{
			ID: "agent-" + string(rune('a'+i)), WorkspaceID: doomed.ID, Name: "A", Status: agentdomain.StatusDraft, CreatedBy: creator,
		}).Error)
	}
	require.NoError(t, quota.Reserve(f.db, owner.ID, quota.ConnectedGmailAccounts))
	require.NoError(t, f.db.Create(&connectiondomain.Connection{
		ID: "conn-1", WorkspaceID: doomed.ID, Email: "team@acme.com", UserID: owner.ID, IsActive: true, ConnectedAt: now,
	}).Error)
	require.NoError(t, f.db.Create(&emaildomain.Record{
		ID: "rec-1", WorkspaceID: doomed.ID, RecipientEmail: "x@y.z", Status: emaildomain.StatusSent, CreatedAt: now,
	}).Error)

	require.NoError(t, f.uc.Delete(ctx, owner, doomed.ID))

	ownerUsage := f.usage(t, owner.ID)
	require.Equal(t, 1, ownerUsage.Workspaces)
	require.Zero(t, ownerUsage.Agents)
	require.Zero(t, ownerUsage.ConnectedGmailAccounts)
	require.Zero(t, f.usage(t, member.ID).Agents)

	for _, model := range []interface{}{&agentdomain.Agent{}, &connectiondomain.Connection{}, &emaildomain.Record{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Where("workspace_id = ?", doomed.ID).Count(&count).Error)
		require.Zero(t, count)
	}

	_, err = f.uc.Get(ctx, owner, keep.ID)
	require.NoError(t, err)
}

func TestOwnershipChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", authdomain.PlanPro)
	member := f.user(t, "member@example.com", authdomain.PlanPro)
	stranger := f.user(t, "stranger@example.com", authdomain.PlanPro)

	ws, err := f.uc.Create(ctx, owner, "Acme")
	require.NoError(t, err)
	_, err = f.uc.Invite(ctx, owner, ws.ID, "MEMBER@example.com")
	require.NoError(t, err)

	_, err = f.uc.Invite(ctx, owner, ws.ID, member.Email)
	require.ErrorIs(t, err, appErrors.ErrConflict)
	_, err = f.uc.Invite(ctx, owner, ws.ID, "nobody@example.com")
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.uc.Rename(ctx, member, ws.ID, "Hijacked")
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	require.ErrorIs(t, f.uc.Delete(ctx, member, ws.ID), appErrors.ErrForbidden)
	_, err = f.uc.Get(ctx, stranger, ws.ID)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	renamed, err := f.uc.Rename(ctx, owner, ws.ID, "Acme Inc")
	require.NoError(t, err)
	require.Equal(t, "Acme Inc", renamed.Name)

	got, err := f.uc.Get(ctx, member, ws.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 2)
	require.Equal(t, owner.Email, got.Members[0].Email)

	require.ErrorIs(t, f.uc.RemoveMember(ctx, owner, ws.ID, owner.ID), appErrors.ErrBadRequest)
	require.NoError(t, f.uc.RemoveMember(ctx, owner, ws.ID, member.ID))
	_, err = f.uc.Get(ctx, member, ws.ID)
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestEnsureDefaultIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, "jane@acme.com", authdomain.PlanFree)
	user.Name = "Jane"

	first, err := f.uc.EnsureDefault(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "Jane's Workspace", first.Name)

	var wg sync.WaitGroup
	ids := make([]string, 4)
	errs := make([]error, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, err := f.uc.EnsureDefault(ctx, user)
			errs[i] = err
			if ws != nil {
				ids[i] = ws.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, first.ID, ids[i])
	}

	list, err := f.uc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, f.usage(t, user.ID).Workspaces)
}

func TestEnsureDefaultConvergesWhenRowAlreadyExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, "sam@example.com", authdomain.PlanFree)

	repo := repository.NewWorkspaceRepository(f.db)
	owner := user.ID
	created, err := repo.CreateDefault(&workspacedomain.Workspace{Name: "Existing", OwnerID: user.ID, DefaultFor: &owner})
	require.NoError(t, err)
	require.True(t, created)
	// Simulate the member row of a concurrent provisioning not being visible yet.
	require.NoError(t, f.db.Exec("DELETE FROM workspace_members WHERE user_id = ?", user.ID).Error)

	ws, err := f.uc.EnsureDefault(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "Existing", ws.Name)
	require.Zero(t, f.usage(t, user.ID).Workspaces)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", authdomain.PlanPro)

	ws, err := f.uc.Create(ctx, owner, "Acme")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&agentdomain.Agent{ID: "a1", WorkspaceID: ws.ID, Name: "A", Status: agentdomain.StatusPublished}).Error)
	require.NoError(t, f.db.Create(&agentdomain.Agent{ID: "a2", WorkspaceID: ws.ID, Name: "B", Status: agentdomain.StatusDraft}).Error)
	require.NoError(t, f.db.Create(&connectiondomain.Connection{ID: "c1", WorkspaceID: ws.ID, Email: "a@acme.com", UserID: owner.ID, IsActive: true, ConnectedAt: now}).Error)
	require.NoError(t, f.db.Create(&connectiondomain.Connection{ID: "c2", WorkspaceID: ws.ID, Email: "b@acme.com", UserID: owner.ID, IsActive: false, ConnectedAt: now}).Error)
	for i, status := range []emaildomain.Status{emaildomain.StatusSent, emaildomain.StatusSent, emaildomain.StatusUnderReview} {
		require.NoError(t, f.db.Create(&emaildomain.Record{
			ID: "r" + string(rune('0'+i)), WorkspaceID: ws.ID, RecipientEmail: "x@y.z", Status: status, CreatedAt: now,
		}).Error)
	}

	stats, err := f.uc.Stats(ctx, owner, ws.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Agents)
	require.EqualValues(t, 1, stats.PublishedAgents)
	require.EqualValues(t, 1, stats.ActiveConnections)
	require.EqualValues(t, 2, stats.Emails["sent"])
	require.EqualValues(t, 1, stats.Emails["under_review"])
	require.EqualValues(t, 0, stats.Emails["denied"])
	require.Equal(t, 2000, stats.EmailLimit)

	inactive, err := f.uc.WithInactiveConnections(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{ws.ID}, inactive)
}
