package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/inviteq/inviteq/internal/config"
	"github.com/inviteq/inviteq/internal/database"
	"github.com/inviteq/inviteq/internal/notify"
	"github.com/inviteq/inviteq/internal/rsvp"
	"github.com/inviteq/inviteq/internal/server"
	"github.com/inviteq/inviteq/internal/sweep"
	"github.com/inviteq/inviteq/internal/token"
)

func main() {
	// Load .env file (ignore error if a file doesn't exist)
	if err := godotenv.Overload(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func(db *database.DB) {
		if err := db.Close(); err != nil {
			log.Fatalf("Failed to close database: %v", err)
		}
	}(db)

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Wire the RSVP engine
	tokens, err := token.NewService([]byte(cfg.TokenSecret), cfg.RSVPTokenTTL, nil)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}
	dispatcher := notify.LogDispatcher{}
	links := notify.NewLinkBuilder(cfg.BaseURL, tokens)
	rsvpSvc := rsvp.NewService(db, dispatcher, links, nil)
	sweeper := sweep.New(db, dispatcher, links, nil)

	// Run the auto-promote sweep on a schedule alongside the HTTP trigger
	go runSweepLoop(sweeper, cfg.SweepInterval)

	// Create and start the server
	srv := server.New(cfg, db, rsvpSvc, sweeper, tokens)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on :%s", port)
	if err := srv.Start(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func runSweepLoop(sweeper *sweep.Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		report, err := sweeper.Run(context.Background())
		if err != nil {
			log.Printf("Sweep run failed: %v", err)
			continue
		}
		if report.PromotedCount > 0 {
			log.Printf("Sweep promoted %d invitee(s)", report.PromotedCount)
		}
	}
}
