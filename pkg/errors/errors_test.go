package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := ErrInternalServer.WithInternal(stdErrors.New("boom"))
	require.Equal(t, "Internal server error: boom", err.Error())
}

func TestWithInternalCopiesAndStillMatchesSentinel(t *testing.T) {
	with := ErrQuotaExceeded.WithInternal(stdErrors.New("agents"))

	require.NotSame(t, ErrQuotaExceeded, with)
	require.Nil(t, ErrQuotaExceeded.Internal)
	require.ErrorIs(t, with, ErrQuotaExceeded)
	require.ErrorIs(t, fmt.Errorf("create agent: %w", with), ErrQuotaExceeded)
	require.NotErrorIs(t, with, ErrNotFound)
}

func TestUpstreamCarriesProviderText(t *testing.T) {
	err := Upstream("gmail", stdErrors.New(`{"error":"rateLimitExceeded"}`))
	require.ErrorIs(t, err, ErrUpstream)
	require.Contains(t, err.Message, "rateLimitExceeded")
}

func TestFromError(t *testing.T) {
	require.Same(t, ErrNotFound, FromError(ErrNotFound))

	out := FromError(stdErrors.New("raw"))
	require.Equal(t, ErrInternalServer.Code, out.Code)
	require.NotNil(t, out.Internal)

	require.Nil(t, FromError(nil))
}
