package dbhelper

import (
	"fmt"
	"os"
	"time"

	"fitcheckedapi/models"
	"fitcheckedapi/services"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupDB() *gorm.DB {

	db, err := gorm.Open(postgres.Open(
		fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			services.GetEnv("DB_USERNAME", ""),
			services.GetEnv("DB_PASSWORD", ""),
			services.GetEnv("DB_HOST", ""),
			services.GetEnv("DB_PORT", ""),
			services.GetEnv("DB_NAME", ""),
		),
	), &gorm.Config{})
	sqlDB, err := db.DB()
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(300)
	sqlDB.SetConnMaxLifetime(time.Minute * 5)
	db.Logger.LogMode(logger.LogLevel(logger.Info))
	if err != nil {
		panic(err)
	}
	db.Raw("CREATE EXTENSION if not exists pgcrypto;")
	Migrate(db, &models.UserAccount{})
	Migrate(db, &models.UserPushToken{})
	Migrate(db, &models.ClosetItem{})
	Migrate(db, &models.OutfitRequest{})
	Migrate(db, &models.OutfitVariation{})
	Migrate(db, &models.Trip{})
	Migrate(db, &models.TripItem{})
	Migrate(db, &models.CalendarEvent{})

	return db
}

func SetupTestDB() *gorm.DB {
	os.Setenv("DB_USERNAME", "fitchecked")
	os.Setenv("DB_PASSWORD", "fitchecked")
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_NAME", "fitchecked")
	os.Setenv("DB_PORT", "5432")
	os.Setenv("RC_WEBHOOK_TOKEN", "fake")
	os.Setenv("GOOGLE_API_KEY", "fake-google-key")
	return SetupDB()
}
