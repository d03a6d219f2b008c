package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	authdomain "welcome-agent/internal/auth/domain"
	"welcome-agent/pkg/database/testutil"
	appErrors "welcome-agent/pkg/errors"
)

func seedUser(t *testing.T, db *gorm.DB, plan authdomain.Plan) *authdomain.User {
	t.Helper()
	user := &authdomain.User{
		ID:             "user-" + string(plan),
		Email:          string(plan) + "@example.com",
		Provider:       authdomain.ProviderEmail,
		Plan:           plan,
		Limits:         authdomain.LimitsFor(plan),
		LastUsageReset: time.Now().UTC(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func usage(t *testing.T, db *gorm.DB, id string) authdomain.Counters {
	t.Helper()
	var user authdomain.User
	require.NoError(t, db.First(&user, "id = ?", id).Error)
	return user.Usage
}

func TestReserveStopsAtLimit(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedUser(t, db, authdomain.PlanPro)

	for i := 0; i < user.Limits.Workspaces; i++ {
		require.NoError(t, Reserve(db, user.ID, Workspaces))
	}

	err := Reserve(db, user.ID, Workspaces)
	require.ErrorIs(t, err, appErrors.ErrQuotaExceeded)
	require.Equal(t, user.Limits.Workspaces, usage(t, db, user.ID).Workspaces)
}

func TestReserveUnknownUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	require.ErrorIs(t, Reserve(db, "ghost", Agents), appErrors.ErrNotFound)
}

func TestReserveRollsBackWithTransaction(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedUser(t, db, authdomain.PlanFree)

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, Reserve(tx, user.ID, Agents))
		return appErrors.ErrConflict
	})
	require.Error(t, err)
	require.Zero(t, usage(t, db, user.ID).Agents)
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedUser(t, db, authdomain.PlanPro)

	require.NoError(t, Reserve(db, user.ID, Agents))
	require.NoError(t, Reserve(db, user.ID, Agents))
	require.NoError(t, Release(db, user.ID, Agents, 1))
	require.Equal(t, 1, usage(t, db, user.ID).Agents)

	require.NoError(t, Release(db, user.ID, Agents, 5))
	require.Zero(t, usage(t, db, user.ID).Agents)
}

func TestUsageNeverExceedsLimitAcrossSequences(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedUser(t, db, authdomain.PlanPro)

	ops := []bool{true, true, true, false, true, true, true, true, true, true, true, true, false, false, true, true}
	for _, reserve := range ops {
		if reserve {
			_ = Reserve(db, user.ID, Agents)
		} else {
			require.NoError(t, Release(db, user.ID, Agents, 1))
		}
		current := usage(t, db, user.ID).Agents
		require.LessOrEqual(t, current, user.Limits.Agents)
		require.GreaterOrEqual(t, current, 0)
	}
}

func TestUnknownResource(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	require.Error(t, Reserve(db, "u", Resource("usage_agents; DROP TABLE users")))
}

func TestResetExpiredUsage(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	stale := seedUser(t, db, authdomain.PlanFree)
	fresh := seedUser(t, db, authdomain.PlanPro)
	require.NoError(t, db.Model(&authdomain.User{}).Where("id = ?", stale.ID).
		UpdateColumns(map[string]interface{}{"usage_email_sent": 42, "last_usage_reset": now.Add(-31 * 24 * time.Hour)}).Error)
	require.NoError(t, db.Model(&authdomain.User{}).Where("id = ?", fresh.ID).
		UpdateColumns(map[string]interface{}{"usage_email_sent": 7, "last_usage_reset": now.Add(-2 * 24 * time.Hour)}).Error)

	n, err := ResetExpiredUsage(db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Zero(t, usage(t, db, stale.ID).EmailSent)
	require.Equal(t, 7, usage(t, db, fresh.ID).EmailSent)

	var reloaded authdomain.User
	require.NoError(t, db.First(&reloaded, "id = ?", stale.ID).Error)
	require.True(t, reloaded.LastUsageReset.Equal(now))
}
