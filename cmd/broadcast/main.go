package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/plumehost/platform/internal/application/broadcast"
	"github.com/plumehost/platform/internal/config"
	"github.com/plumehost/platform/internal/domain"
	"github.com/plumehost/platform/internal/infrastructure/dynamo"
	"github.com/plumehost/platform/internal/infrastructure/smtp"
	"github.com/plumehost/platform/internal/infrastructure/sns"
)

// The broadcast worker runs the notification pipeline outside the API server.
// One-shot mode enqueues and/or processes a single trigger date; schedule mode
// keeps running and fires both phases on a cron expression.
//
// Sending is opt-in: every run is a dry run unless -dry-run=false is passed.
func main() {
	var (
		date     = flag.String("date", time.Now().UTC().Format(domain.PublishDateLayout), "trigger date (YYYY-MM-DD)")
		enqueue  = flag.Bool("enqueue", false, "materialize pending delivery records for the trigger date")
		process  = flag.Bool("process", false, "dispatch pending deliveries for the trigger date")
		dryRun   = flag.Bool("dry-run", true, "log what would be sent without mutating records or sending mail")
		schedule = flag.String("schedule", "", "cron expression; when set, enqueue+process run on this schedule")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	svc := broadcast.NewService(broadcast.ServiceDeps{
		Posts:         dynamo.NewPostRepo(dynamoClient, cfg.DynamoTables.Posts),
		Tenants:       dynamo.NewTenantRepo(dynamoClient, cfg.DynamoTables.Tenants),
		Subscribers:   dynamo.NewSubscriberRepo(dynamoClient, cfg.DynamoTables.Subscribers),
		Deliveries:    dynamo.NewDeliveryRepo(dynamoClient, cfg.DynamoTables.Deliveries),
		Mailer:        smtp.NewMailer(cfg),
		CanonicalHost: cfg.CanonicalHost,
		Scheme:        cfg.Scheme,
	})

	// Run alerts (optional — graceful fallback when no topic is configured).
	var alerts sns.AlertPublisher
	if cfg.SNSAlertTopicARN != "" {
		if p, err := sns.NewPublisher(cfg); err == nil {
			alerts = p
		} else {
			log.Printf("WARN: SNS alert publisher not available: %v", err)
		}
	}

	if *schedule != "" {
		runScheduled(svc, alerts, *schedule, *dryRun)
		return
	}

	if !*enqueue && !*process {
		log.Fatal("nothing to do: pass -enqueue, -process, or -schedule")
	}
	if err := runOnce(svc, alerts, *date, *enqueue, *process, *dryRun); err != nil {
		log.Fatal(err)
	}
}

func runOnce(svc broadcast.Service, alerts sns.AlertPublisher, date string, enqueue, process, dryRun bool) error {
	ctx := context.Background()

	if enqueue {
		report, err := svc.Enqueue(ctx, date)
		if err != nil {
			return fmt.Errorf("enqueue failed: %w", err)
		}
		log.Printf("enqueue %s: %d post(s), %d created, %d existing, %d skipped, %d error(s)",
			report.Date, report.Posts, report.Created, report.Existing, report.SkippedPosts, report.Errors)
	}

	if process {
		report, err := svc.Process(ctx, date, dryRun)
		if err != nil {
			return fmt.Errorf("process failed: %w", err)
		}
		log.Print(report.Summary())
		if alerts != nil && !dryRun {
			if err := alerts.PublishReport(ctx, "broadcast run", report.Summary()); err != nil {
				log.Printf("WARN: run alert failed: %v", err)
			}
		}
	}
	return nil
}

func runScheduled(svc broadcast.Service, alerts sns.AlertPublisher, spec string, dryRun bool) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		date := time.Now().UTC().Format(domain.PublishDateLayout)
		if err := runOnce(svc, alerts, date, true, true, dryRun); err != nil {
			log.Printf("scheduled run failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("invalid schedule %q: %v", spec, err)
	}

	log.Printf("broadcast worker scheduled (%s, dry-run=%v)", spec, dryRun)
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Stopping broadcast worker...")
	<-c.Stop().Done()
	log.Println("Broadcast worker stopped")
}
