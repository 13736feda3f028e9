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

	appinventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/config"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/avro"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/redisqueue"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-fulfillment/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-fulfillment/internal/presentation/worker"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// stores is everything the order and inventory use cases persist through.
type stores struct {
	orders    domorder.Repository
	ledger    dominv.Ledger
	catalog   dominv.Catalog
	tx        domorder.Transactor
	sequencer domorder.CodeSequencer
	buyers    apporder.BuyerDirectory
	finder    workerpresentation.PendingFinder
	close     func()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, err := zaplogger.New(zaplogger.Options{
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		File:    cfg.App.LogFile,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	if s, ok := baseLogger.(interface{ Sync() error }); ok {
		defer func() { _ = s.Sync() }()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	counters, histograms := prometrics.Instruments(prometrics.New("minishop", "", registry))
	tel := infraobs.New(oteltrace.New("minishop.usecase"), baseLogger, counters, histograms)
	systemLogger := baseLogger.With(observability.F("component", "main"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, systemLogger)
	if err != nil {
		return err
	}
	defer st.close()

	queue, closeQueue, err := openExpiryQueue(ctx, cfg, systemLogger)
	if err != nil {
		return err
	}
	defer closeQueue()

	gateway, capturer := buildGateway(cfg)

	// Event bus carries lifecycle events to the Kafka relay and the sandbox capture worker.
	bus := outbox.NewBus(tel)
	bus.Start(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		bus.Stop(shutdownCtx)
	}()

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, systemLogger)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		codec, err := avro.NewOrderEventEncoder()
		if err != nil {
			return fmt.Errorf("avro codec: %w", err)
		}
		kafka.NewRelay(producer, codec, tel).Register(bus)
		systemLogger.Info("kafka_relay_enabled",
			observability.F("brokers", cfg.Kafka.Brokers),
			observability.F("topic", cfg.Kafka.OrderTopic),
		)
	}

	deps := apporder.Deps{
		Orders:        st.orders,
		Tx:            st.tx,
		Reserver:      appinventory.NewReserveItemsUseCase(st.ledger, bus, tel),
		Restorer:      appinventory.NewRestoreItemsUseCase(st.ledger, bus, tel),
		Gateway:       gateway,
		Sequencer:     st.sequencer,
		Buyers:        st.buyers,
		Expiry:        queue,
		IDs:           id.NewUUIDGenerator(),
		Publisher:     bus,
		Currency:      cfg.Payment.Currency,
		SigningSecret: cfg.Payment.KeySecret,
	}
	createOrder := apporder.NewCreateOrderUseCase(deps, tel)
	confirmPayment := apporder.NewConfirmPaymentUseCase(deps, tel)
	expireOrder := apporder.NewExpireOrderUseCase(deps, tel)
	updateFulfillment := apporder.NewUpdateFulfillmentUseCase(deps, tel)
	queries := apporder.NewQueryService(st.orders, st.catalog, tel)

	if capturer != nil && cfg.Payment.AutoCapture {
		apppayment.NewWorker(bus, st.orders, capturer, confirmPayment, tel).Start()
		systemLogger.Info("sandbox_auto_capture_enabled",
			observability.F("success_rate", cfg.Payment.SuccessRate),
		)
	}

	expiryWorker := workerpresentation.NewExpiryWorker(queue, st.finder, expireOrder, workerpresentation.ExpiryConfig{
		Interval:  cfg.Expiry.SweepInterval,
		BatchSize: cfg.Expiry.BatchSize,
	}, tel)
	expiryWorker.Start(ctx)
	defer expiryWorker.Stop()

	handler := httppresentation.NewHandler(httppresentation.Services{
		Create:  createOrder,
		Confirm: confirmPayment,
		Fulfill: updateFulfillment,
		Queries: queries,
	}, httppresentation.Options{
		OperatorToken: cfg.Server.OperatorToken,
		GatewayKey:    cfg.Payment.KeyID,
	}, tel)

	root := chi.NewRouter()
	root.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	root.Mount("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("storage", cfg.Storage.Driver),
			observability.F("payment_provider", cfg.Payment.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", observability.F("error", err.Error()))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
		return err
	}
	systemLogger.Info("http_server_stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger observability.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.StoragePostgres {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		orders := postgres.NewOrderRepository(pool)
		inventory := postgres.NewInventoryRepository(pool)
		logger.Info("storage_ready", observability.F("driver", config.StoragePostgres))
		return &stores{
			orders:    orders,
			ledger:    inventory,
			catalog:   inventory,
			tx:        postgres.NewTransactor(pool),
			sequencer: postgres.NewCodeSequencer(pool),
			buyers:    postgres.NewBuyerDirectory(pool),
			finder:    orders,
			close:     pool.Close,
		}, nil
	}

	orders := memory.NewOrderRepository()
	inventory := memory.NewInventoryRepository()
	buyers := memory.NewBuyerDirectory()
	if err := seedDemoData(ctx, inventory, buyers); err != nil {
		return nil, fmt.Errorf("seed demo data: %w", err)
	}
	logger.Info("storage_ready", observability.F("driver", config.StorageMemory))
	return &stores{
		orders:    orders,
		ledger:    inventory,
		catalog:   inventory,
		tx:        memory.NewTransactor(),
		sequencer: memory.NewCodeSequencer(orders),
		buyers:    buyers,
		finder:    orders,
		close:     func() {},
	}, nil
}

// openExpiryQueue prefers Redis so several replicas share one due-set; without it each process keeps its own.
func openExpiryQueue(ctx context.Context, cfg *config.Config, logger observability.Logger) (apporder.ExpiryQueue, func(), error) {
	if cfg.Redis.URL == "" {
		return memory.NewExpiryQueue(), func() {}, nil
	}
	q, err := redisqueue.NewExpiryQueue(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis expiry queue: %w", err)
	}
	logger.Info("expiry_queue_ready", observability.F("backend", "redis"))
	return q, func() { _ = q.Close() }, nil
}

// buildGateway returns the payment gateway and, for the sandbox, the capturer that can settle its intents.
func buildGateway(cfg *config.Config) (dompayment.Gateway, apppayment.Capturer) {
	if cfg.Payment.Provider == config.ProviderRazorpay {
		return payment.NewRazorpay(cfg.Payment.BaseURL, cfg.Payment.KeyID, cfg.Payment.KeySecret,
			&http.Client{Timeout: 10 * time.Second}), nil
	}
	sb := payment.NewSandbox(cfg.Payment.KeySecret, cfg.Payment.SuccessRate)
	return sb, sb
}

func seedDemoData(ctx context.Context, inventory *memory.InventoryRepository, buyers *memory.BuyerDirectory) error {
	products := []struct {
		id, name, price, image string
		stock                  int
	}{
		{"prod-lamp", "Desk Lamp", "1299.00", "lamp.jpg", 25},
		{"prod-mug", "Ceramic Mug", "349.50", "mug.jpg", 100},
		{"prod-notebook", "Dotted Notebook", "199.00", "", 60},
	}
	for _, p := range products {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			return err
		}
		product, err := dominv.NewProduct(p.id, p.name, price, p.stock)
		if err != nil {
			return err
		}
		product.Image = p.image
		if err := inventory.Save(ctx, product); err != nil {
			return err
		}
	}
	return buyers.Put(ctx, "user-demo", domorder.Contact{
		Name:  "Demo Buyer",
		Email: "demo@minishop.local",
		Phone: "9000000000",
	})
}
