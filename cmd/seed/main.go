package main

import (
	"log"

	"github.com/kindredapp/kindred/internal/config"
	"github.com/kindredapp/kindred/internal/db"
)

func main() {
	// Load configuration
	cfg := config.New()

	database, err := db.NewGateway(cfg).DB()
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}

	if err := db.SeedTestData(database); err != nil {
		log.Fatalf("failed to seed: %v", err)
	}

	log.Println("Seeding completed.")
}
