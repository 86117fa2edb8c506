package main

import (
	"context"
	"log"
	"os"
	"time"

	"taskhub/internal/database"
	"taskhub/internal/repository"

	"github.com/joho/godotenv"
)

// Intended to run from cron. Expired tokens go immediately; revoked ones are
// kept for a while as an audit trail before they are purged too.
const revokedRetention = 30 * 24 * time.Hour

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := repository.NewRefreshTokenRepository(db).DeleteExpired(ctx, revokedRetention)
	if err != nil {
		log.Fatalf("cleanup refresh_tokens failed: %v", err)
	}

	log.Printf("auth cleanup completed: refresh_tokens=%d", deleted)
}
