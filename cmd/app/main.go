package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"course-payment-portal/internal/config"
	"course-payment-portal/internal/domain/ports/adapter"
	pg "course-payment-portal/internal/infra/db/postgres"
	"course-payment-portal/internal/infra/i18n"
	"course-payment-portal/internal/infra/logging"
	"course-payment-portal/internal/infra/notify"
	"course-payment-portal/internal/infra/payment"
	red "course-payment-portal/internal/infra/redis"
	"course-payment-portal/internal/infra/sched"
	"course-payment-portal/internal/infra/web"
	"course-payment-portal/internal/infra/worker"
	"course-payment-portal/internal/security"
	"course-payment-portal/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, console log, log OTP codes)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect")
	}
	defer redisClient.Close()
	attempts := red.NewAttemptStore(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	otpRepo := pg.NewOTPRepo(pool)
	invoiceRepo := pg.NewInvoiceRepo(pool)
	enrollRepo := pg.NewEnrollmentRepo(pool)
	priceRepo := pg.NewCoursePriceRepo(pool)
	notifRepo := pg.NewNotificationLogRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Security ----
	otpMgr := security.NewOTPManager(attempts,
		security.WithCodeLength(cfg.OTP.Length),
		security.WithExpiryWindow(cfg.OTP.ExpiryWindow),
		security.WithMaxAttempts(cfg.OTP.MaxAttempts),
		security.WithLockoutDuration(cfg.OTP.LockoutWindow),
	)
	minAmount, err := decimal.NewFromString(cfg.Payment.MinCAD)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment.min_amount")
	}
	maxAmount, err := decimal.NewFromString(cfg.Payment.MaxCAD)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment.max_amount")
	}
	taxRate, err := decimal.NewFromString(cfg.Payment.TaxRate)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment.tax_rate")
	}
	validator := security.NewPaymentValidator(minAmount, maxAmount)

	// ---- Gateway ----
	var gw adapter.PaymentGateway
	if cfg.Runtime.Dev {
		gw = payment.NewNoopGateway()
		logger.Warn().Msg("using noop gateway, no real charges")
	} else {
		gw = payment.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret, cfg.Payment.Stripe.BaseURL)
	}

	// ---- Notifiers ----
	pool2 := worker.NewPool(cfg.Workers.Notify, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	var mail adapter.Notifier
	if cfg.Runtime.Dev || cfg.SMTP.Host == "" {
		mail = notify.NewNoopNotifier(logger)
	} else {
		mail = notify.NewEmailNotifier(cfg.SMTP, logger)
	}

	// ---- Messages ----
	msgs, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		logger.Fatal().Err(err).Msg("message catalog")
	}

	// ---- Use case ----
	payUC := usecase.NewPaymentUseCase(
		payRepo, otpRepo, invoiceRepo, enrollRepo, priceRepo, notifRepo,
		gw, mail, mail, pool2,
		otpMgr, validator, tm,
		taxRate, cfg.Payment.Currency,
		logger,
	)

	// ---- Reconciler ----
	reconciler := sched.NewPaymentReconciler(payUC, payRepo, locker, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", 12*time.Hour)
	srv := web.NewServer(payUC, gw, auth, msgs, cfg.OTP.Length, logger)
	go func() {
		if err := srv.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
