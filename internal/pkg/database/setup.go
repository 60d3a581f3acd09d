package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/env"
)

const (
	connectAttempts = 5
	connectBackoff  = 5 * time.Second
)

var DB *gorm.DB

// DSN builds the go-sql-driver address from the DB_* variables. Times are
// read and written in UTC. extra is appended to the query string.
func DSN(extra string) string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		env.GetEnv("DB_USER", "planfox"),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "planfox_db"),
	)
	if extra != "" {
		dsn += "&" + extra
	}
	return dsn
}

func open(dsn string) (*gorm.DB, error) {
	level := logger.Warn
	if env.IsDev() {
		level = logger.Info
	}
	return gorm.Open(mysql.New(mysql.Config{
		DSN:               dsn,
		DefaultStringSize: 255,
	}), &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
}

// SetupDatabase connects with a few retries while the database container
// starts and panics when it never comes up. Schema changes belong to
// cmd/migrate; DB_AUTOMIGRATE=true syncs the models for local hacking.
func SetupDatabase() {
	dsn := DSN("")
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if DB, err = open(dsn); err == nil {
			break
		}
		log.Warnf("[Database] Connect attempt %d/%d failed: %v", attempt, connectAttempts, err)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff)
		}
	}
	if err != nil {
		panic(fmt.Errorf("database unreachable: %w", err))
	}

	if env.GetEnv("DB_AUTOMIGRATE", "false") == "true" {
		if err := DB.AutoMigrate(
			&models.User{},
			&models.UserSettings{},
			&models.CalendarAccount{},
			&models.SyncedEvent{},
			&models.Task{},
			&models.DailyPlan{},
			&models.PlanEntry{},
			&models.TimeSlot{},
		); err != nil {
			log.Errorf("[Database] AutoMigrate: %v", err)
		}
	}
}

// GetDB returns the shared connection, nil before SetupDatabase ran
func GetDB() *gorm.DB {
	return DB
}
