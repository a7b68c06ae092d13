package database

import (
	"tripsplit-backend/config"
	"tripsplit-backend/logger"
	"tripsplit-backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

func Connect() {
	log := logger.Get()

	var err error
	DB, err = gorm.Open(postgres.Open(config.AppConfig.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}

	log.Info("database connected")

	err = DB.AutoMigrate(
		&models.User{},
		&models.Trip{},
		&models.TripMember{},
		&models.Expense{},
		&models.ExpenseShare{},
		&models.ExpenseItem{},
		&models.ExpenseExtra{},
		&models.SettlementRecord{},
		&models.Activity{},
		&models.Invitation{},
	)
	if err != nil {
		log.Fatalw("failed to migrate database", "error", err)
	}

	log.Info("database migrated")
}
