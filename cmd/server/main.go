// Command server wires the shop's checkout stack and runs the HTTP and
// metrics listeners. Business logic lives in the internal service packages.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	basketmetrics "emporia/internal/basket/metrics"
	basketservice "emporia/internal/basket/service"
	basketstore "emporia/internal/basket/store"
	catalogstore "emporia/internal/catalog/store"
	"emporia/internal/checkout/binder"
	checkouthandler "emporia/internal/checkout/handler"
	checkoutmetrics "emporia/internal/checkout/metrics"
	checkoutservice "emporia/internal/checkout/service"
	"emporia/internal/events"
	"emporia/internal/notification"
	orderstore "emporia/internal/order/store"
	"emporia/internal/payment/cardsecurity"
	"emporia/internal/platform/config"
	"emporia/internal/platform/httpserver"
	"emporia/internal/platform/logger"
	"emporia/internal/platform/postgres"
	platformredis "emporia/internal/platform/redis"
	"emporia/internal/postage"
	"emporia/internal/shop/models"
	"emporia/internal/user/session"
	userservice "emporia/internal/user/service"
	userstore "emporia/internal/user/store"
	"emporia/pkg/platform/tx"
)

const sessionTTL = 30 * 24 * time.Hour

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, seeded memory stores otherwise.
	var (
		baskets   basketstore.BasketStore
		orders    orderstore.OrderStore
		users     userstore.UserStore
		sizes     catalogstore.SizeStore
		countries catalogstore.CountryStore
		cardTypes catalogstore.CardTypeStore
		runner    tx.Runner
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		baskets = basketstore.NewPostgres(db)
		orders = orderstore.NewPostgres(db)
		users = userstore.NewPostgres(db)
		sizes = catalogstore.NewPostgresSizes(db)
		countries = catalogstore.NewPostgresCountries(db)
		cardTypes = catalogstore.NewPostgresCardTypes(db)
		runner = tx.NewSQLRunner(db)
		log.Info("storage ready", "backend", "postgres")
	} else {
		baskets = basketstore.NewInMemory()
		orders = orderstore.NewInMemory()
		users = userstore.NewInMemory()
		sizes, countries, cardTypes = seedCatalog()
		runner = tx.PassthroughRunner{}
		log.Warn("no EMPORIA_POSTGRES_URL set, using in-memory storage")
	}

	// Sessions: Redis when configured, process-local map otherwise.
	var sessions session.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = session.NewRedis(redisClient.Client, sessionTTL)
		log.Info("session store ready", "backend", "redis")
	} else {
		sessions = session.NewInMemory()
	}

	encryptor, err := cardsecurity.NewAEAD(cardKey(cfg.CardKey))
	if err != nil {
		return err
	}

	publisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var sender notification.EmailSender
	if cfg.SMTP.Host != "" {
		sender = notification.NewSMTPSender(cfg.SMTP)
	} else {
		sender = notification.NewLogSender(log)
	}
	mailer := notification.NewConfirmationMailer(sender, cfg.ShopName, cfg.ShopEmail, log)

	identities := userservice.New(users, sessions, []byte(cfg.JWTSigningKey), log)
	basketSvc := basketservice.New(baskets, sizes, countries, identities, runner, cfg.DefaultCountryID, basketmetrics.New(), log)
	postageSvc := postage.NewCalculator(sizes, countries, cfg.PostageBaseRate)
	checkoutSvc := checkoutservice.New(
		baskets, basketSvc, orders, sizes, countries, cardTypes,
		postageSvc, identities, mailer, publisher, runner,
		checkoutmetrics.New(), log,
	)
	formBinder := binder.New(countries, encryptor)
	shopHandler := checkouthandler.New(checkoutSvc, basketSvc, identities, formBinder, log)

	router := chi.NewRouter()
	shopHandler.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())
	metricsSrv := httpserver.New(cfg.MetricsAddr, metricsRouter)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("shop listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return metricsSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// cardKey accepts a base64-encoded or raw 32-byte key; anything else is
// hashed down to 32 bytes so development setups always start.
func cardKey(raw string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded
	}
	if len(raw) == 32 {
		return []byte(raw)
	}
	sum := sha256.Sum256([]byte(raw))
	return sum[:]
}

// seedCatalog provides reference data for in-memory deployments.
func seedCatalog() (*catalogstore.InMemorySizes, *catalogstore.InMemoryCountries, *catalogstore.InMemoryCardTypes) {
	sizes := catalogstore.NewInMemorySizes()
	tee := models.Product{ID: 1, Name: "Classic Tee", Price: decimal.NewFromFloat(18.50), Weight: decimal.NewFromFloat(0.3)}
	hoodie := models.Product{ID: 2, Name: "Harbour Hoodie", Price: decimal.NewFromFloat(42.00), Weight: decimal.NewFromFloat(0.9)}
	sizes.Seed(models.Size{ID: 1, Name: "S", IsInStock: true, IsActive: true, Product: tee})
	sizes.Seed(models.Size{ID: 2, Name: "M", IsInStock: true, IsActive: true, Product: tee})
	sizes.Seed(models.Size{ID: 3, Name: "L", IsInStock: false, IsActive: true, Product: tee})
	sizes.Seed(models.Size{ID: 4, Name: "M", IsInStock: true, IsActive: true, Product: hoodie})

	countries := catalogstore.NewInMemoryCountries()
	countries.Seed(models.Country{ID: 1, Name: "United Kingdom", IsActive: true, Position: 1, PostageMultiplier: decimal.NewFromInt(1)})
	countries.Seed(models.Country{ID: 2, Name: "France", IsActive: true, Position: 2, PostageMultiplier: decimal.NewFromFloat(1.8)})
	countries.Seed(models.Country{ID: 3, Name: "United States", IsActive: true, Position: 3, PostageMultiplier: decimal.NewFromFloat(2.5)})

	cardTypes := catalogstore.NewInMemoryCardTypes(
		models.CardType{ID: 1, Name: "Visa"},
		models.CardType{ID: 2, Name: "Mastercard"},
	)
	return sizes, countries, cardTypes
}
