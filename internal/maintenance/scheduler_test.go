package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	authdomain "welcome-agent/internal/auth/domain"
	authrepo "welcome-agent/internal/auth/repository"
	connectiondto "welcome-agent/internal/connection/dto"
	"welcome-agent/pkg/database/testutil"
)

type staticWorkspaces []string

func (w staticWorkspaces) WithInactiveConnections(ctx context.Context) ([]string, error) {
	return w, nil
}

type fakeChecker struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeChecker) CheckAndFixInactiveConnections(ctx context.Context, workspaceID string) (*connectiondto.CheckResult, error) {
	f.calls = append(f.calls, workspaceID)
	if f.fail[workspaceID] {
		return nil, errors.New("workspace " + workspaceID + " unavailable")
	}
	return &connectiondto.CheckResult{Checked: 2, Reactivated: 1}, nil
}

func TestSweepConnectionsContinuesPastFailures(t *testing.T) {
	checker := &fakeChecker{fail: map[string]bool{"ws-2": true}}
	s := NewScheduler(nil, staticWorkspaces{"ws-1", "ws-2", "ws-3"}, checker, nil)

	total, err := s.SweepConnections(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ws-2")
	require.Equal(t, []string{"ws-1", "ws-2", "ws-3"}, checker.calls)
	require.Equal(t, connectiondto.CheckResult{Checked: 4, Reactivated: 2}, total)
}

func TestRunOnceResetsUsageAndPurgesSessions(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	due := &authdomain.User{
		ID: "user-due", Email: "due@example.com", Provider: authdomain.ProviderEmail, Plan: authdomain.PlanFree,
		Limits: authdomain.LimitsFor(authdomain.PlanFree), LastUsageReset: now.AddDate(0, 0, -31),
	}
	due.Usage.EmailSent = 80
	fresh := &authdomain.User{
		ID: "user-fresh", Email: "fresh@example.com", Provider: authdomain.ProviderEmail, Plan: authdomain.PlanFree,
		Limits: authdomain.LimitsFor(authdomain.PlanFree), LastUsageReset: now.AddDate(0, 0, -3),
	}
	fresh.Usage.EmailSent = 12
	require.NoError(t, db.Create(due).Error)
	require.NoError(t, db.Create(fresh).Error)

	users := authrepo.NewUserRepository(db)
	require.NoError(t, users.CreateSession(&authdomain.Session{ID: "old", UserID: due.ID, ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, users.CreateSession(&authdomain.Session{ID: "live", UserID: due.ID, ExpiresAt: now.Add(time.Hour)}))

	s := NewScheduler(db, nil, nil, users, WithNow(func() time.Time { return now }))
	require.NoError(t, s.RunOnce(context.Background()))

	var reset, untouched authdomain.User
	require.NoError(t, db.First(&reset, "id = ?", due.ID).Error)
	require.Equal(t, 0, reset.Usage.EmailSent)
	require.NoError(t, db.First(&untouched, "id = ?", fresh.ID).Error)
	require.Equal(t, 12, untouched.Usage.EmailSent)

	session, err := users.FindSession("old")
	require.NoError(t, err)
	require.Nil(t, session)
	session, err = users.FindSession("live")
	require.NoError(t, err)
	require.NotNil(t, session)
}

func TestStartRegistersEnabledJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	c := cron.New(cron.WithLogger(cron.DiscardLogger))

	s := NewScheduler(db, staticWorkspaces{}, &fakeChecker{}, authrepo.NewUserRepository(db), WithCron(c))
	require.NoError(t, s.Start())
	<-s.Stop().Done()
	require.Len(t, c.Entries(), 3)

	c = cron.New(cron.WithLogger(cron.DiscardLogger))
	s = NewScheduler(db, staticWorkspaces{}, &fakeChecker{}, nil, WithCron(c), WithSweepSchedule(""))
	require.NoError(t, s.Start())
	<-s.Stop().Done()
	require.Len(t, c.Entries(), 1)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil, staticWorkspaces{}, &fakeChecker{}, nil, WithSweepSchedule("every tuesday"))
	require.Error(t, s.Start())
}
