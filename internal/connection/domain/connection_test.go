package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokensExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.False(t, Tokens{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	require.True(t, Tokens{ExpiresAt: now}.Expired(now))
	require.True(t, Tokens{}.Expired(now))
}

func TestSenderName(t *testing.T) {
	require.Equal(t, "Acme Team", (&Connection{Name: "Acme Team", Email: "team@acme.com"}).SenderName())
	require.Equal(t, "team@acme.com", (&Connection{Email: "team@acme.com"}).SenderName())
}
