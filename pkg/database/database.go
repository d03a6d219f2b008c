package database

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	activitydomain "welcome-agent/internal/activity/domain"
	agentdomain "welcome-agent/internal/agent/domain"
	authdomain "welcome-agent/internal/auth/domain"
	connectiondomain "welcome-agent/internal/connection/domain"
	emaildomain "welcome-agent/internal/email/domain"
	workspacedomain "welcome-agent/internal/workspace/domain"
	"welcome-agent/pkg/logger"
)

// Config contains database connection options.
type Config struct {
	Driver string // postgres or sqlite
	DSN    string
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "postgres"
	}

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	switch driver {
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("DATABASE_URL is required for postgres")
		}
		return gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer; one connection avoids "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Models lists every persisted entity in migration order.
func Models() []interface{} {
	return []interface{}{
		&authdomain.User{},
		&authdomain.Session{},
		&authdomain.FCMToken{},
		&workspacedomain.Workspace{},
		&workspacedomain.Member{},
		&agentdomain.Agent{},
		&connectiondomain.Connection{},
		&emaildomain.Record{},
		&activitydomain.Log{},
	}
}

// AutoMigrate applies the schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.WithModule("database").Info("schema migrated", zap.Int("models", len(Models())))
	return nil
}
