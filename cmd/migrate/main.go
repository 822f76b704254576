package main

import (
	"log"

	"github.com/Kripu77/prompt-map-sub001/internal/config"
	"github.com/Kripu77/prompt-map-sub001/internal/model"
	"github.com/Kripu77/prompt-map-sub001/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Ensuring extensions...")
	// gen_random_uuid() defaults
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: Failed to create pgcrypto extension: %v. Continuing...", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.Thread{},
		&model.AnonymousMindmap{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			log.Fatalf("Error: AutoMigrate failed for %T: %v", m, err)
		}
	}

	log.Println("Migration completed successfully.")
}
