package dbhelper

import (
	"log"

	"fitcheckedapi/models"

	"gorm.io/gorm"
)

func SetupCleaner(db *gorm.DB) func() {

	return func() {

		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.TripItem{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Trip{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CalendarEvent{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OutfitVariation{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OutfitRequest{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ClosetItem{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserPushToken{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserAccount{})

	}
}

func Migrate(db *gorm.DB, model interface{}) {
	err := db.AutoMigrate(model)
	if err != nil {
		log.Printf("Error while migrating %s", model)
		log.Fatal(err)
	}
}
