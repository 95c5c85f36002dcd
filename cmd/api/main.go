package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"spin-earn-backend/internal/archive"
	"spin-earn-backend/internal/catalog"
	"spin-earn-backend/internal/config"
	"spin-earn-backend/internal/handlers"
	"spin-earn-backend/internal/jobs"
	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/realtime"
	"spin-earn-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	log := logrus.WithField("service", "spin-earn-backend")

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(sigCtx)

	store, err := services.NewRedisService(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer store.Close()

	var arch *archive.Store
	if cfg.DatabaseURL != "" {
		arch, err = archive.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer arch.Close()
		if err := arch.Migrate(); err != nil {
			log.WithError(err).Fatal("Failed to migrate archive")
		}
		store.SetLedger(arch)
	}

	content, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load catalog")
	}

	store.SetPublisher(realtime.NewRedisPublisher(store.Client(), realtime.DefaultChannel))
	hub := realtime.NewHub(log.WithField("component", "hub"))
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	subscriber := realtime.NewSubscriber(store.Client(), realtime.DefaultChannel, log.WithField("component", "subscriber"))
	g.Go(func() error {
		if err := subscriber.Run(ctx, hub.Dispatch); err != nil {
			return fmt.Errorf("realtime subscriber: %w", err)
		}
		return nil
	})

	notes := services.NewNotificationService(store)
	users := services.NewUserService(store, notes, cfg)
	fair := services.NewFairService(store)
	spins := services.NewSpinService(store, fair, content.Wheel)
	shop := services.NewShopService(store)
	lottery := services.NewLotteryService(store, notes, content.Lottery)

	if n, err := users.PromoteAdmins(ctx); err != nil {
		log.WithError(err).Error("Failed to promote admins")
	} else if n > 0 {
		log.WithField("admins", n).Info("admin accounts promoted")
	}
	if n, err := shop.Seed(ctx, content.Shop); err != nil {
		log.WithError(err).Error("Failed to seed shop")
	} else {
		log.WithField("items", n).Info("shop catalog seeded")
	}
	if _, err := lottery.EnsureOpen(ctx); err != nil {
		log.WithError(err).Error("Failed to open lottery")
	}

	publicLimit := middleware.NewIPRateLimiter(float64(cfg.PublicRateLimit), cfg.PublicRateBurst)
	router := handlers.NewRouter(handlers.Deps{
		Config:      cfg,
		Store:       store,
		Archive:     arch,
		JWT:         services.NewJWTService(cfg),
		Hub:         hub,
		PublicLimit: publicLimit,

		Users:   users,
		Spins:   spins,
		Tasks:   services.NewTaskService(store, content.Tasks),
		Wallet:  services.NewWalletService(store, notes, cfg, content.DiamondPackages),
		Shop:    shop,
		Lottery: lottery,
		Games:   services.NewGameEngine(store, fair),
		Fair:    fair,
		Chat:    services.NewChatService(store, notes),
		Notes:   notes,
		Admin:   services.NewAdminService(store, users, notes),
		Board:   services.NewLeaderboardService(store),
		Log:     log,
	})

	scheduler := jobs.NewScheduler(log)
	maintenance := &jobs.Maintenance{
		Store:     store,
		Archive:   arch,
		Users:     users,
		Spins:     spins,
		Notes:     notes,
		Lottery:   lottery,
		Retention: cfg.Retention,
		Log:       log.WithField("job", "maintenance"),
	}
	if err := scheduler.Add(jobs.Job{Name: "maintenance", Schedule: cfg.MaintenanceSchedule, Timeout: 30 * time.Minute, Run: maintenance.Run}); err != nil {
		log.WithError(err).Fatal("Failed to schedule maintenance")
	}
	if err := scheduler.Add(jobs.Job{
		Name:     "limiter_cleanup",
		Schedule: "@every 10m",
		Timeout:  time.Minute,
		Run: func(context.Context) error {
			if n := publicLimit.Cleanup(30 * time.Minute); n > 0 {
				log.WithField("removed", n).Debug("idle rate limiters dropped")
			}
			return nil
		},
	}); err != nil {
		log.WithError(err).Fatal("Failed to schedule limiter cleanup")
	}
	if arch != nil {
		rate, _ := cfg.CoinRate()
		reporter := &jobs.Reporter{
			Archive:   arch,
			Recipient: cfg.ReportRecipient,
			CoinRate:  rate,
			Log:       log.WithField("job", "report"),
		}
		if mailer := jobs.NewSMTPMailer(cfg); mailer != nil {
			reporter.Mailer = mailer
		}
		if err := scheduler.Add(jobs.Job{Name: "daily_report", Schedule: cfg.ReportSchedule, Timeout: 5 * time.Minute, Run: reporter.Run}); err != nil {
			log.WithError(err).Fatal("Failed to schedule report")
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Server stopped")
	}
}
