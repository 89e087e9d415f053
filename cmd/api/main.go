package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/callback"
	"github.com/TheHadiAhmadi/hesabpay/internal/config"
	"github.com/TheHadiAhmadi/hesabpay/internal/db"
	"github.com/TheHadiAhmadi/hesabpay/internal/events"
	"github.com/TheHadiAhmadi/hesabpay/internal/gateway"
	internalhttp "github.com/TheHadiAhmadi/hesabpay/internal/http"
	"github.com/TheHadiAhmadi/hesabpay/internal/logging"
	"github.com/TheHadiAhmadi/hesabpay/internal/payout"
	"github.com/TheHadiAhmadi/hesabpay/internal/pincrypt"
	"github.com/TheHadiAhmadi/hesabpay/internal/services"
	"github.com/TheHadiAhmadi/hesabpay/internal/store"
)

func main() {
	logger := logging.New()
	defer logger.Sync()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatalw("config load failed", "error", err)
	}

	ctx := context.Background()

	var repo store.OrderRepository
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.Storage.DSN)
		if err != nil {
			logger.Fatalw("db connect failed", "error", err)
		}
		repo = store.NewPostgres(pool)
	case config.DriverSQLite:
		repo, err = store.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			logger.Fatalw("sqlite open failed", "error", err, "path", cfg.Storage.Path)
		}
	}
	defer repo.Close()

	signer := callback.NewSigner(cfg.Callback.Secret)
	if !signer.Enabled() {
		logger.Warnw("callback verification disabled; set callback.secret to sign redirect urls")
	}

	cipher, err := pincrypt.New(cfg.Payout.Cipher, cfg.Hesab.APIKey)
	if err != nil {
		logger.Fatalw("pin cipher init failed", "error", err)
	}

	timeout := time.Duration(cfg.Hesab.TimeoutSeconds) * time.Second
	gw := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.Hesab.BaseURL,
		APIKey:     cfg.Hesab.APIKey,
		Email:      cfg.Hesab.Email,
		Currency:   cfg.Hesab.Currency,
		AppBaseURL: cfg.Server.BaseURL,
		Signer:     signer,
		Timeout:    timeout,
	})
	payouts := payout.NewClient(payout.Config{
		BaseURL: cfg.Hesab.BaseURL,
		APIKey:  cfg.Hesab.APIKey,
		PIN:     cfg.Payout.PIN,
		Cipher:  cipher,
		Vendors: toVendors(cfg.Payout.Vendors),
		Timeout: timeout,
	})

	hub := events.NewHub()
	paymentSvc := &services.PaymentService{
		Repo:     repo,
		Gateway:  gw,
		Signer:   signer,
		Events:   hub,
		Currency: cfg.Hesab.Currency,
		Log:      logger,
	}

	h := internalhttp.NewHandler(paymentSvc, payouts, hub, cfg.Admin.TokenHash, logger)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		logger.Infow("api listening", "addr", cfg.Server.Addr, "storage", cfg.Storage.Driver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	logger.Infow("api stopped")
}

func toVendors(vendors []config.Vendor) []payout.Vendor {
	out := make([]payout.Vendor, 0, len(vendors))
	for _, v := range vendors {
		out = append(out, payout.Vendor{AccountNumber: v.AccountNumber, AmountMinor: v.AmountMinor})
	}
	return out
}
