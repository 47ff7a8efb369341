package initializers

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/basit/shifter/models"
)

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}

// ConnectToDatabase opens Postgres when a DSN is configured and falls back
// to a local SQLite file otherwise.
func ConnectToDatabase(cfg *DBConfig, lg *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.New(zap.NewStdLog(lg), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	if cfg.URL != "" {
		lg.Info("using postgres database")
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		}), gormCfg)
	} else {
		lg.Info("db.url not set, using sqlite database", zap.String("path", cfg.SQLitePath))
		db, err = gorm.Open(sqlite.Open(sqliteDSN(cfg.SQLitePath)), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	lg.Info("database connected and migrated")
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.File{},
		&models.SiteSetting{},
		&models.DownloadEvent{},
	); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}

func CloseDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
