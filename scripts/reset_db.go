package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"device-tracker/internal/auth"
	"device-tracker/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Tables in dependency order, children first.
var trackerTables = []string{
	"packlists",
	"lifecycles",
	"mappings",
	"cartons",
	"batches",
	"whitelist",
	"users",
}

func main() {
	fmt.Println("========================================")
	fmt.Println("   Reset Tracker Database")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("WARNING: this deletes every identifier, mapping, stage and packlist row")
	fmt.Println("and recreates a single admin account.")
	fmt.Println()
	fmt.Print("Type 'yes' to confirm: ")

	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" {
		fmt.Println("Reset cancelled.")
		return
	}

	godotenv.Load()

	cfg, err := config.LoadFile(getEnv("CONFIG_FILE", "configs/config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	adminEmail := getEnv("ADMIN_EMAIL", "admin@tracker.local")
	adminPassword := getEnv("ADMIN_PASSWORD", "admin123")
	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v\n", err)
	}

	fmt.Println()
	fmt.Println("Resetting database...")

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v\n", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range trackerTables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			log.Fatalf("Failed to truncate %s: %v\n", table, err)
		}
		fmt.Printf("  - cleared %s\n", table)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO users (name, email, password_hash, access_level, is_active)
		VALUES ($1, $2, $3, 'admin', TRUE)`,
		"Administrator", adminEmail, hash,
	)
	if err != nil {
		log.Fatalf("Failed to create admin user: %v\n", err)
	}
	fmt.Println("  - created admin user")

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit transaction: %v\n", err)
	}

	fmt.Println()
	fmt.Println("Database reset successful.")
	fmt.Printf("  Email:    %s\n", adminEmail)
	fmt.Println("  Password: (ADMIN_PASSWORD or the default)")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
