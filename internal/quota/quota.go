// Package quota enforces the per-plan usage counters stored on the user row.
//
// Every check-then-mutate is a single conditional UPDATE so that two concurrent
// creations cannot both pass the limit check.
package quota

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "welcome-agent/internal/auth/domain"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/logger"
)

// Resource names a usage/limit column pair.
type Resource string

const (
	EmailSent              Resource = "email_sent"
	Agents                 Resource = "agents"
	ConnectedGmailAccounts Resource = "connected_gmail_accounts"
	Workspaces             Resource = "workspaces"
)

// UsagePeriod is the window after which usage.emailSent is reset.
const UsagePeriod = 30 * 24 * time.Hour

var labels = map[Resource]string{
	EmailSent:              "monthly email",
	Agents:                 "agent",
	ConnectedGmailAccounts: "connected Gmail account",
	Workspaces:             "workspace",
}

func (r Resource) columns() (usage, limit string, err error) {
	if _, ok := labels[r]; !ok {
		return "", "", fmt.Errorf("unknown quota resource %q", r)
	}
	return "usage_" + string(r), "limit_" + string(r), nil
}

// Reserve consumes one unit of resource for userID, failing with ErrQuotaExceeded at the limit.
// Pass the transaction that creates the counted entity so both commit or roll back together.
func Reserve(tx *gorm.DB, userID string, resource Resource) error {
	usageCol, limitCol, err := resource.columns()
	if err != nil {
		return err
	}

	res := tx.Model(&authdomain.User{}).
		Where("id = ? AND "+usageCol+" < "+limitCol, userID).
		UpdateColumn(usageCol, gorm.Expr(usageCol+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := tx.Model(&authdomain.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return appErrors.ErrNotFound.WithMessage("user not found")
	}
	return appErrors.ErrQuotaExceeded.WithMessage(
		fmt.Sprintf("You have reached your %s limit. Upgrade your plan to continue.", labels[resource]),
	)
}

// Release returns n units of resource to userID. The counter never goes below zero.
func Release(tx *gorm.DB, userID string, resource Resource, n int) error {
	if n <= 0 {
		return nil
	}
	usageCol, _, err := resource.columns()
	if err != nil {
		return err
	}

	return tx.Model(&authdomain.User{}).
		Where("id = ?", userID).
		UpdateColumn(usageCol, gorm.Expr("CASE WHEN "+usageCol+" > ? THEN "+usageCol+" - ? ELSE 0 END", n, n)).
		Error
}

// ResetExpiredUsage clears usage.emailSent for every user whose period started at least UsagePeriod ago.
func ResetExpiredUsage(db *gorm.DB, now time.Time) (int64, error) {
	now = now.UTC()
	res := db.Model(&authdomain.User{}).
		Where("last_usage_reset <= ?", now.Add(-UsagePeriod)).
		UpdateColumns(map[string]interface{}{
			"usage_email_sent": 0,
			"last_usage_reset": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.WithModule("quota").Info("monthly usage reset", zap.Int64("users", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
