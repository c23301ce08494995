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

	appcart "github.com/Zhima-Mochi/minishop-delivery/internal/application/cart"
	appcatalog "github.com/Zhima-Mochi/minishop-delivery/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/minishop-delivery/internal/application/order"
	apptoken "github.com/Zhima-Mochi/minishop-delivery/internal/application/token"
	appuser "github.com/Zhima-Mochi/minishop-delivery/internal/application/user"
	"github.com/Zhima-Mochi/minishop-delivery/internal/config"
	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/filestore"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/hash"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/keylock"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/notification/sendgrid"
	infraobs "github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/payment/stripe"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/Zhima-Mochi/minishop-delivery/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-delivery/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-delivery/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const tokenIDLength = 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogFile)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	counters, histograms := prometrics.New(prometheus.DefaultRegisterer, "", "").Standard()
	tel := infraobs.New(
		oteltrace.New("minishop"),
		zaplogger.New(baseLogger),
		counters,
		histograms,
	)

	store, err := newStore(cfg, tel)
	if err != nil {
		systemLogger.Fatal("store_init_failed", zap.Error(err))
	}

	locks := keylock.New()
	hasher := hash.NewHMAC(cfg.Auth.HashingSecret)

	// In-process event bus carrying user.deleted to the cleanup worker.
	bus := outbox.NewBus(tel)
	bus.Start(context.Background())

	tokenService := apptoken.NewService(store, hasher, id.NewGenerator(tokenIDLength), cfg.Auth.TokenTTL, tel)
	catalogService := appcatalog.NewService(store, locks, tel)
	cartService := appcart.NewService(store, catalogService, tel)
	userService := appuser.NewService(store, hasher, locks, bus, tel)

	cleanupWorker := appuser.NewCleanupWorker(
		workerpresentation.Subscriber(bus, observability.LoggerOf(tel)),
		tokenService,
		cartService,
		tel,
	)
	cleanupWorker.Start()

	payments := stripe.New(cfg.Stripe.BaseURL, cfg.Stripe.SecretKey, cfg.Stripe.Timeout, observability.LoggerOf(tel))
	notifier := sendgrid.New(cfg.SendGrid.APIKey, cfg.SendGrid.Host, cfg.SendGrid.From, observability.LoggerOf(tel))

	createOrder := apporder.NewCreateOrderUseCase(store, tokenService, locks, payments, notifier, apporder.Options{
		PaymentTimeout: cfg.Stripe.Timeout,
		NotifyTimeout:  cfg.SendGrid.Timeout,
	}, tel)
	getOrder := apporder.NewGetOrderUseCase(store, tokenService, tel)

	if cfg.CatalogSeedFile != "" {
		n, err := seedCatalog(context.Background(), cfg.CatalogSeedFile, catalogService)
		if err != nil {
			systemLogger.Fatal("catalog_seed_failed", zap.String("file", cfg.CatalogSeedFile), zap.Error(err))
		}
		systemLogger.Info("catalog_seeded", zap.String("file", cfg.CatalogSeedFile), zap.Int("items", n))
	}

	handler := httppresentation.NewHandler(httppresentation.Services{
		Users:       userService,
		Tokens:      tokenService,
		Catalog:     catalogService,
		Carts:       cartService,
		CreateOrder: createOrder,
		GetOrder:    getOrder,
	}, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.Env),
			zap.String("store_backend", cfg.Store.Backend),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
	bus.Stop(shutdownCtx)
}

func newStore(cfg *config.Config, tel observability.Observability) (document.Store, error) {
	if cfg.Store.Backend == config.BackendMemory {
		return memory.NewStore(tel), nil
	}
	return filestore.New(cfg.Store.DataDir, tel)
}

func seedCatalog(ctx context.Context, path string, catalog *appcatalog.Service) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return catalog.Seed(ctx, f)
}
