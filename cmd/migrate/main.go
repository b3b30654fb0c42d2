// Package main provides a CLI tool for running database migrations.
package main

import (
	"flag"
	"log"

	"github.com/deck-tracker/internal/config"
	"github.com/deck-tracker/internal/storage"
)

func main() {
	action := flag.String("action", "up", "Migration action: up, down, version")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbPath := cfg.Database.Path
	migrationsPath := cfg.Database.MigrationsPath

	switch *action {
	case "up":
		log.Println("Running migrations...")
		if err := storage.RunMigrations(dbPath, migrationsPath); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")

	case "down":
		log.Println("Rolling back last migration...")
		if err := storage.RollbackMigrations(dbPath, migrationsPath); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(dbPath, migrationsPath)
		if err != nil {
			log.Fatalf("Failed to read version: %v", err)
		}
		log.Printf("Current migration version: %d (dirty: %v)", version, dirty)

	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}
