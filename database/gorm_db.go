package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/camden-git/facesys/config"
	"github.com/camden-git/facesys/logger"
	"github.com/camden-git/facesys/models"
)

// Dialector picks the GORM driver for the configured database type
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	dsn := cfg.DSN()
	switch cfg.DatabaseType {
	case config.DatabaseTypeSQLite:
		return sqlite.Open(dsn), nil
	case config.DatabaseTypeMySQL:
		return mysql.Open(dsn), nil
	case config.DatabaseTypePostgres:
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}
}

// InitGormDB opens the configured database, routing GORM's own logging through zap
func InitGormDB(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	gormLogger := gormlogger.New(
		log.StdLog(),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database using GORM: %w", cfg.DatabaseType, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	if cfg.DatabaseType == config.DatabaseTypeSQLite {
		// single writer; WAL lets readers proceed while a batch writes
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			log.Warn("database: failed to set WAL mode", "error", err)
		}
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database: GORM initialized", "type", cfg.DatabaseType)
	return db, nil
}

// AutoMigrateModels creates or updates the albums, images and faces tables
func AutoMigrateModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Album{}, &models.Image{}, &models.Face{}); err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
