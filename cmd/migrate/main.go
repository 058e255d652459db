package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"coteri/config"
	"coteri/pkg/database"
)

const usage = `
Coteri - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Apply every SQL file in the migrations directory
  status      Show database connection status and table row counts

Flags:
  -migrations string   Path to migrations directory (default "migrations")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
`

var coreTables = []string{
	"venues",
	"venue_staff",
	"memberships",
	"membership_verifications",
	"verification_events",
	"stripe_webhook_events",
}

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	database.Connect(cfg)
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp(*migrationsDir)
	case "status":
		showStatus()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(migrationsDir string) {
	log.Println("Running migrations UP...")

	if err := database.ApplyRawMigrations(migrationsDir); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}

func showStatus() {
	log.Println("Checking database status...")

	if err := database.HealthCheck(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range coreTables {
		exists, err := database.TableExists(table)
		if err != nil {
			log.Printf("Error checking table %s: %v", table, err)
			continue
		}
		if !exists {
			log.Printf("Table %-26s does not exist", table)
			continue
		}
		count, err := database.CountRows(table)
		if err != nil {
			log.Printf("Table %-26s exists (count failed: %v)", table, err)
			continue
		}
		log.Printf("Table %-26s exists (%d rows)", table, count)
	}
}
