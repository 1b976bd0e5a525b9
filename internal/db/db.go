package db

import (
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if err := Init(postgres.Open(dsn)); err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
}

// Init opens the database with the given dialector and migrates the schema.
// Tests pass an in-memory sqlite dialector.
func Init(dialector gorm.Dialector) error {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return err
	}
	DB = db
	return db.AutoMigrate(
		&User{}, &Category{}, &Product{}, &WalletAddress{},
		&Order{}, &DetectedTransaction{}, &RemovedUser{},
	)
}
