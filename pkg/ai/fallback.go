package ai

import (
	"context"
	"errors"
	"net"
	"strings"

	"go.uber.org/zap"

	"welcome-agent/pkg/logger"
)

// FallbackChat sends every call to the primary provider and retries on the secondary one
// when the primary is unreachable or out of quota. Other errors are returned as is.
type FallbackChat struct {
	primary   ChatClient
	secondary ChatClient
	log       *zap.Logger
}

func NewFallbackChat(primary, secondary ChatClient) *FallbackChat {
	return &FallbackChat{
		primary:   primary,
		secondary: secondary,
		log:       logger.WithModule("ai"),
	}
}

func (f *FallbackChat) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	text, err := f.primary.Chat(ctx, model, messages)
	if err == nil || !shouldFallback(err) || ctx.Err() != nil {
		return text, err
	}

	f.log.Warn("primary provider failed, falling back", zap.String("model", model), zap.Error(err))
	text, ferr := f.secondary.Chat(ctx, model, messages)
	if ferr != nil {
		return "", errors.Join(err, ferr)
	}
	return text, nil
}

func shouldFallback(err error) bool {
	return isConnectionError(err) || isQuotaError(err)
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return containsAny(err.Error(), "connection refused", "no such host", "network is unreachable", "connection reset", "dial tcp")
}

// isQuotaError checks if the error indicates rate limiting or exhausted credits
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), "(429)", "(402)", "quota", "rate limit", "too many requests", "resource_exhausted")
}

func containsAny(s string, indicators ...string) bool {
	s = strings.ToLower(s)
	for _, indicator := range indicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}
