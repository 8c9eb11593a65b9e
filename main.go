package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"consent-app/config"
	"consent-app/database"
	adminapi "consent-app/internal/api/admin"
	authapi "consent-app/internal/api/auth"
	"consent-app/internal/api/billing"
	consentapi "consent-app/internal/api/consent"
	plansapi "consent-app/internal/api/plans"
	scriptsapi "consent-app/internal/api/scripts"
	stripewebhooks "consent-app/internal/api/stripewebhook"
	usersapi "consent-app/internal/api/users"
	webhooksapi "consent-app/internal/api/webhooks"
	websitesapi "consent-app/internal/api/websites"
	routes "consent-app/internal/app/http"
	"consent-app/internal/domain/plans"
	"consent-app/internal/infra/cache"
	"consent-app/internal/infra/logger"
	"consent-app/internal/infra/mail"
	"consent-app/internal/infra/storage"
	"consent-app/internal/infra/stripe"
	"consent-app/internal/infra/webhook"
	"consent-app/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)
	lg := logger.New(cfg.Logger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *slog.Logger) error {
	db, err := database.Open(cfg.Database, lg)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if err := database.Migrate(db); err != nil {
		return err
	}
	if err := database.SeedPlans(ctx, db); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb == nil {
		lg.Info("REDIS_ADDR not set, caching disabled")
	} else {
		defer rdb.Close()
	}
	buckets := cache.NewBuckets(rdb, lg)
	limits := cache.NewPlanLimits(rdb, func(ctx context.Context) ([]plans.Plan, error) {
		return database.LoadPlans(ctx, db)
	}, lg)

	var billingClient stripe.Billing
	if c := stripe.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret); c != nil {
		billingClient = c
	} else {
		lg.Warn("STRIPE_SECRET_KEY not set, billing disabled")
	}

	publisher, err := openStorage(ctx, cfg.Storage, lg)
	if err != nil {
		return err
	}

	dispatcher := webhook.NewDispatcher(db, webhook.NewSender(cfg.Webhook.Timeout), lg)
	defer dispatcher.Wait()

	secure := cfg.Server.Mode == gin.ReleaseMode
	handlers := routes.Handlers{
		DB:        db,
		JWTSecret: cfg.Auth.JWTSecret,
		Limits:    limits,
		Auth: &authapi.Handler{
			DB:        db,
			Mailer:    mail.New(cfg.SMTP, cfg.Server.PublicBaseURL, cfg.Server.AppURL, lg),
			JWTSecret: cfg.Auth.JWTSecret,
			TokenTTL:  cfg.Auth.TokenTTL,
			AppURL:    cfg.Server.AppURL,
			Google:    authapi.NewGoogleAuth(cfg.Google, secure),
			Logger:    lg,
		},
		Users:    &usersapi.Handler{DB: db},
		Billing:  &billing.Handler{DB: db, Stripe: billingClient, Limits: limits, AppURL: cfg.Server.AppURL, Logger: lg},
		Stripe:   &stripewebhooks.Handler{DB: db, Stripe: billingClient, Logger: lg},
		Plans:    &plansapi.Handler{DB: db, Stripe: billingClient, Cache: limits, ProductID: cfg.Stripe.ProductID, Logger: lg},
		Websites: &websitesapi.Handler{DB: db, Cache: buckets, Events: dispatcher, Logger: lg},
		Scripts:  &scriptsapi.Handler{DB: db, Storage: publisher, Events: dispatcher, PublicURL: cfg.Server.PublicBaseURL, Logger: lg},
		Consent:  &consentapi.Handler{DB: db, Events: dispatcher, Logger: lg},
		Webhooks: &webhooksapi.Handler{DB: db, Dispatcher: dispatcher, Cache: buckets, Logger: lg},
		Admin:    &adminapi.Handler{DB: db, Limits: limits, Logger: lg},
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(lg))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Server.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.RegisterRoutes(r, handlers)

	retention := worker.NewRetention(db, limits, rdb, cfg.Worker.RetentionInterval, lg)
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		retention.Start(workerCtx)
	}()
	defer func() {
		stopWorker()
		<-workerDone
	}()

	return serve(ctx, r, cfg.Server.Port, lg)
}

// openStorage returns nil when no bucket is configured; embed scripts are
// then served by the API itself.
func openStorage(ctx context.Context, cfg config.StorageConfig, lg *slog.Logger) (storage.Publisher, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	m, err := storage.NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := m.EnsureBucket(ctx, lg); err != nil {
		return nil, err
	}
	return m, nil
}

func serve(ctx context.Context, handler http.Handler, port string, lg *slog.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
