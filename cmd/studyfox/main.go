package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StudyFox/app/controllers"
	"github.com/ManuelReschke/StudyFox/app/repository"
	"github.com/ManuelReschke/StudyFox/internal/pkg/billing"
	"github.com/ManuelReschke/StudyFox/internal/pkg/cache"
	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
	"github.com/ManuelReschke/StudyFox/internal/pkg/database"
	"github.com/ManuelReschke/StudyFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/StudyFox/internal/pkg/env"
	"github.com/ManuelReschke/StudyFox/internal/pkg/invite"
	"github.com/ManuelReschke/StudyFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/StudyFox/internal/pkg/mail"
	"github.com/ManuelReschke/StudyFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/StudyFox/internal/pkg/middleware"
	"github.com/ManuelReschke/StudyFox/internal/pkg/parentclaim"
	"github.com/ManuelReschke/StudyFox/internal/pkg/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	env.SetupEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.SetupDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	rdb := cache.SetupCache(cfg.Cache)

	app, sweeper, err := NewApplication(cfg, db, rdb)
	if err != nil {
		log.Fatal(err)
	}

	sweeper.Start()
	defer sweeper.Stop()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := app.Listen(fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}

// NewApplication wires every service onto a fiber app. The returned sweeper is
// not started.
func NewApplication(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*fiber.App, *jobqueue.Manager, error) {
	repos := repository.NewFactory(db)

	mailer, err := mail.New(cfg.Mail)
	if err != nil {
		return nil, nil, fmt.Errorf("mail: %w", err)
	}

	locker := cache.NewLocker(rdb)
	store := entitlements.NewClient(cfg.Entitlements)
	reconciler := entitlements.NewReconciler(store, cfg.Entitlements.EntitlementID)

	claims := parentclaim.NewManager(repos.GetParentClaimRepository(), mailer, locker, cfg.App.PublicAppURL)
	redeemer := parentclaim.NewRedeemer(repos.GetParentClaimRepository(), reconciler)
	invites := invite.NewService(repos.GetParentInviteRepository(), mailer, locker, cfg.Limits.InviteDailyLimit, cfg.App.ParentPurchaseURL)

	webhookCounter := counter.NewWebhookCounter(rdb)
	dispatcher := billing.NewDispatcher(billing.NewSubscriptionResolver(cfg.Stripe), reconciler, claims)
	webhooks := billing.NewWebhookServiceFromDB(db, dispatcher, cfg.Stripe, webhookCounter)

	sweeper := jobqueue.NewManager(claims, locker, jobqueue.Options{
		Interval:    cfg.Limits.RedeemEmailSweepEvery,
		MaxAttempts: cfg.Limits.RedeemEmailMaxAttempts,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    1 << 20, // webhook payloads stay far below 1 MiB
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.Deps{
		Billing:         controllers.NewBillingController(webhooks, webhookCounter),
		Invites:         controllers.NewParentInviteController(invites),
		Claims:          controllers.NewClaimController(redeemer),
		JWTSecret:       cfg.Auth.JWTSecret,
		LimiterStorage:  limiterStorage(cfg, rdb),
		RequestsPerMin:  cfg.Limits.APIRequestsPerMinute,
		LimitWindow:     time.Minute,
		MetricsUser:     cfg.App.MetricsUser,
		MetricsPassword: cfg.App.MetricsPassword,
	})

	return app, sweeper, nil
}

// limiterStorage shares limiter counters through Redis when it is reachable.
// The redis storage driver panics on an unreachable server, so fall back to
// per-instance memory instead.
func limiterStorage(cfg *config.Config, rdb *redis.Client) fiber.Storage {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if rdb == nil || rdb.Ping(ctx).Err() != nil {
		log.Println("Warning: Redis unavailable, API rate limits are per instance")
		return nil
	}
	return middleware.NewLimiterStorage(cfg.Cache)
}
