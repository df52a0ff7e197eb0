package Models

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	DbHost := os.Getenv("DB_HOST")
	DbUser := os.Getenv("DB_USER")
	DbPassword := os.Getenv("DB_PASSWORD")
	DbName := os.Getenv("DB_NAME")
	DbPort := os.Getenv("DB_PORT")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=require", DbHost, DbUser, DbPassword, DbName, DbPort)
	connection, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	DB = connection

	if err := Migrate(DB); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

// Migrate runs AutoMigrate in dependency order. Split out from Connect so
// tests can run it against their own database handle.
func Migrate(db *gorm.DB) error {
	// 1. Base entities with no foreign keys
	if err := db.AutoMigrate(
		&Planner{},
		&MagicLink{},
		&ContactSubmission{},
	); err != nil {
		return err
	}

	// 2. Entities keyed by planner email
	if err := db.AutoMigrate(
		&Subscription{},
		&APIKey{},
		&Connection{},
		&Invite{},
		&Template{},
		&UserNote{},
	); err != nil {
		return err
	}

	// 3. Bundles, then their tasks
	return db.AutoMigrate(
		&Bundle{},
		&BundleTask{},
	)
}
