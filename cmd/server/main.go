package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/approvers/sponsor-linked-role/internal/api"
	"github.com/approvers/sponsor-linked-role/internal/config"
	"github.com/approvers/sponsor-linked-role/internal/database"
	"github.com/approvers/sponsor-linked-role/internal/jobs"
	"github.com/approvers/sponsor-linked-role/internal/linking"
	"github.com/approvers/sponsor-linked-role/internal/providers/discord"
	"github.com/approvers/sponsor-linked-role/internal/providers/github"
	"github.com/approvers/sponsor-linked-role/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Run migrations for the database-backed store
	if cfg.Store.Type == "postgres" {
		if err := database.RunMigrations(cfg.Store); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize credential store
	st, err := store.Open(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open credential store: %v", err)
	}

	// Start expired-key purge job for the database-backed store; the other
	// backends expire keys natively
	if gs, ok := st.(*store.GormStore); ok {
		scheduler := jobs.NewScheduler(gs)
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Initialize provider clients
	discordClient, err := discord.NewClient(&discord.Config{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURL:  cfg.DiscordRedirectURI(),
		BotToken:     cfg.DiscordBotToken,
	})
	if err != nil {
		log.Fatalf("Failed to create Discord client: %v", err)
	}

	githubClient, err := github.NewClient(&github.Config{
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		RedirectURL:  cfg.GitHubRedirectURI(),
		UserAgent:    cfg.SponsorLogin,
	})
	if err != nil {
		log.Fatalf("Failed to create GitHub client: %v", err)
	}

	// Initialize linking service
	svc := linking.NewService(st, discordClient, githubClient, cfg.SponsorLogin)

	// Setup API router
	router := api.NewRouter(cfg, svc, discordClient)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
