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

	"github.com/joho/godotenv"
	"github.com/plumehost/platform/internal/config"
	"github.com/plumehost/platform/internal/infrastructure/dynamo"
	jwtinfra "github.com/plumehost/platform/internal/infrastructure/jwt"
	"github.com/plumehost/platform/internal/infrastructure/smtp"
	transporthttp "github.com/plumehost/platform/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	mailer := smtp.NewMailer(cfg)

	deps := &transporthttp.Deps{
		TenantRepo:     dynamo.NewTenantRepo(dynamoClient, cfg.DynamoTables.Tenants),
		SubscriberRepo: dynamo.NewSubscriberRepo(dynamoClient, cfg.DynamoTables.Subscribers),
		PostRepo:       dynamo.NewPostRepo(dynamoClient, cfg.DynamoTables.Posts),
		DeliveryRepo:   dynamo.NewDeliveryRepo(dynamoClient, cfg.DynamoTables.Deliveries),
		Mailer:         mailer,
		JWTProvider:    jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, host=%s)", cfg.AppPort, cfg.AppEnv, cfg.CanonicalHost)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
