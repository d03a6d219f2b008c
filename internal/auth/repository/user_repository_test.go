package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authdomain "welcome-agent/internal/auth/domain"
	"welcome-agent/pkg/database/testutil"
)

func TestUserCreateCopiesPlanLimits(t *testing.T) {
	repo := NewUserRepository(testutil.MustOpenTestDB(t))

	user := &authdomain.User{Email: "jane@acme.com", Name: "Jane", Provider: authdomain.ProviderEmail}
	require.NoError(t, repo.Create(user))
	require.NotEmpty(t, user.ID)

	found, err := repo.FindByEmail("jane@acme.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, authdomain.PlanFree, found.Plan)
	require.Equal(t, authdomain.LimitsFor(authdomain.PlanFree), found.Limits)
	require.Zero(t, found.Usage)

	missing, err := repo.FindByID("nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpdateLeavesUsageAlone(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	repo := NewUserRepository(db)

	user := &authdomain.User{Email: "a@b.co", Provider: authdomain.ProviderGoogle}
	require.NoError(t, repo.Create(user))
	require.NoError(t, db.Model(&authdomain.User{}).Where("id = ?", user.ID).UpdateColumn("usage_agents", 1).Error)

	user.Name = "Renamed"
	require.NoError(t, repo.Update(user))

	found, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", found.Name)
	require.Equal(t, 1, found.Usage.Agents)
}

func TestSessions(t *testing.T) {
	repo := NewUserRepository(testutil.MustOpenTestDB(t))
	now := time.Now().UTC()

	live := &authdomain.Session{UserID: "u1", ExpiresAt: now.Add(time.Hour)}
	stale := &authdomain.Session{UserID: "u1", ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, repo.CreateSession(live))
	require.NoError(t, repo.CreateSession(stale))

	n, err := repo.DeleteExpiredSessions(now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	found, err := repo.FindSession(live.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	require.NoError(t, repo.DeleteSession(live.ID))
	found, err = repo.FindSession(live.ID)
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestFCMTokens(t *testing.T) {
	repo := NewFCMTokenRepository(testutil.MustOpenTestDB(t))

	require.NoError(t, repo.SaveToken("u1", "tok-a", "chrome"))
	require.NoError(t, repo.SaveToken("u2", "tok-b", "firefox"))
	// Re-registering a token moves it to the new user.
	require.NoError(t, repo.SaveToken("u2", "tok-a", "chrome"))

	tokens, err := repo.GetTokensByUserIDs([]string{"u2"})
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	require.NoError(t, repo.DeleteTokens([]string{"tok-b"}))
	tokens, err = repo.GetTokensByUserIDs([]string{"u1", "u2"})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, "tok-a", tokens[0].Token)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	require.True(t, CheckPasswordHash("s3cret!", hash))
	require.False(t, CheckPasswordHash("wrong", hash))
}
