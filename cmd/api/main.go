package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/server"
	"storefront-payments/internal/service"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := client.InitDB(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	productRepo := repository.NewProductRepository(db)
	if err := productRepo.Seed(ctx); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}

	var checkoutClient client.CheckoutClient
	switch cfg.Checkout.Provider {
	case config.ProviderBraintree:
		checkoutClient = client.NewBraintreeClient(&cfg.BrainTree)
	default:
		checkoutClient = client.NewAdyenClient(&cfg.Adyen)
	}

	publisher, err := client.NewEventPublisher(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var locker client.Locker = client.LocalLocker{}
	if cfg.Redis.Addr != "" {
		rdb, err := client.InitRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = client.NewRedisLocker(rdb)
	}

	orderRepo := repository.NewOrderRepository(db)
	cartRepo := repository.NewCartRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	notificationRepo := repository.NewNotificationEventRepository(db)
	sessionRepo := repository.NewSessionRepository(db, logger)

	gateway := service.NewPaymentGateway(checkoutClient, service.GatewayConfig{
		MerchantAccount: cfg.Adyen.MerchantAccount,
		Currency:        cfg.Checkout.Currency,
		CountryCode:     cfg.Checkout.CountryCode,
		SessionTTL:      cfg.Checkout.SessionTTL,
	}, logger)

	cartService := service.NewCartService(productRepo, cartRepo, cfg.Checkout.Currency)
	orderService := service.NewOrderService(db, orderRepo, cartRepo, productRepo, sessionRepo, cfg.Checkout.Currency, logger)
	checkoutService := service.NewCheckoutService(orderService, gateway, sessionRepo, cfg.BaseURL, logger)
	reconciler := service.NewOrderReconciler(
		db,
		service.NewWebhookVerifier(client.NewHMACValidator()),
		cfg.Adyen.HMACKey,
		gateway,
		orderRepo,
		ledgerRepo,
		notificationRepo,
		sessionRepo,
		publisher,
		logger,
	)

	sweeper := service.NewSessionSweeper(sessionRepo, locker, cfg.Checkout.SessionSweepInterval, logger)
	go sweeper.Run(ctx)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	srv := server.NewServer(cfg, logger, cartService, checkoutService, orderService, reconciler)

	errCh := make(chan error, 1)
	logger.Info("starting HTTP server", "addr", serverAddr, "provider", cfg.Checkout.Provider)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigChan:
		logger.Info("signal received, starting graceful shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
