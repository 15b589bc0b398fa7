package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logger"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Error("migrate", "err", err)
			os.Exit(1)
		}
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Pool{MaxConns: int32(cfg.PGMaxConns)})
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, one writer for every storefront topic
	prodCtx, cancelProd := context.WithCancel(context.Background())
	defer cancelProd()
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(prodCtx)

	// Repos & services
	catalogRepo := &catalog.Repo{DB: db}
	records := &orders.Repo{DB: db}
	fees := catalog.NewFees(catalogRepo, rdb, cfg.DeliveryFeeDefault, log)

	accounts := auth.NewService(&auth.Repo{DB: db}, rdb, cfg.JWTSecret, cfg.TokenTTL)
	if cfg.AdminEmail != "" {
		if err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Error("bootstrap admin", "err", err)
			os.Exit(1)
		}
	}

	var images httpx.Images
	if cfg.S3Bucket != "" {
		s3img, err := catalog.NewS3Images(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			log.Error("s3 config", "err", err)
			os.Exit(1)
		}
		images = s3img
	} else {
		log.Warn("S3_BUCKET not set, product image uploads disabled")
	}

	submit := checkout.NewService(records, fees, prod, log, checkout.Config{
		HoldWindow: cfg.ReservationHold,
		Producer:   cfg.ServiceName,
	})

	router := httpx.NewRouter(httpx.Deps{
		Log:      log,
		Carts:    cart.NewRedisStorage(rdb, cfg.CartTTL),
		CartTTL:  cfg.CartTTL,
		Catalog:  catalogRepo,
		Records:  records,
		Fees:     fees,
		Images:   images,
		Checkout: submit,
		Accounts: accounts,
		Events:   prod,
		Counters: func(ctx context.Context) (map[string]int64, error) {
			return notify.ReadStats(ctx, rdb)
		},
		Service:            cfg.ServiceName,
		CORSOrigins:        cfg.CORSOrigins,
		CountdownWrapHours: cfg.CountdownWrapHours,
		CountdownPeriod:    cfg.CountdownPeriod,
	})

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	prod.Close()      // flush queued events and close the writer
	prod.WaitClosed() // drain
	cancelProd()
}
