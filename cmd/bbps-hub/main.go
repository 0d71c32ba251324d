package main

import (
	// Go Internal Packages
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Local Packages
	api "bbps-hub/api"
	config "bbps-hub/config"
	gateway "bbps-hub/gateway"
	kafka "bbps-hub/kafka"
	memory "bbps-hub/repositories/memory"
	mongodb "bbps-hub/repositories/mongodb"
	bills "bbps-hub/services/bills"
	operators "bbps-hub/services/operators"
	webhooks "bbps-hub/services/webhooks"

	// External Packages
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	_ "github.com/jsternberg/zap-logfmt"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"go.uber.org/zap"
)

const (
	fetchRetention   = 30 * 24 * time.Hour
	paymentRetention = 90 * 24 * time.Hour
	shutdownTimeout  = 15 * time.Second
)

type paymentStore interface {
	bills.PaymentRepository
	webhooks.PaymentRepository
}

type storage struct {
	operators operators.OperatorRepository
	fetches   bills.FetchRepository
	payments  paymentStore
	close     func(ctx context.Context)
}

// LoadConfig loads the default configuration and overrides it with the config file
// specified by the path defined in the config flag
func LoadConfig() *koanf.Koanf {
	configPathMsg := "Path to the application config file"
	configPath := kingpin.Flag("config", configPathMsg).Short('c').Default("config.yml").String()

	kingpin.Parse()
	k := koanf.New(".")
	_ = k.Load(rawbytes.Provider(config.DefaultConfig), yaml.Parser())
	if *configPath != "" {
		_ = k.Load(file.Provider(*configPath), yaml.Parser())
	}
	return k
}

func main() {
	// A missing .env file is fine, the environment may be set already
	_ = godotenv.Load()

	k := LoadConfig()
	appKonf := config.Config{}

	// Unmarshalling config into struct
	err := k.Unmarshal("", &appKonf)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Update and Validate config before starting the server
	appKonf = config.LoadSecrets(appKonf)
	if err = appKonf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if !appKonf.IsProdMode {
		k.Print()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	_ = cfg.Level.UnmarshalText([]byte(appKonf.Logger.Level))
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = appKonf.Application
	cfg.OutputPaths = []string{"stdout"}
	logger, _ := cfg.Build()
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, appKonf, logger)
	if err != nil {
		logger.Fatal("cannot open storage", zap.String("driver", appKonf.Storage.Driver), zap.Error(err))
	}

	ekoClient, err := gateway.NewClient(gateway.Config{
		Env:              appKonf.Eko.Env,
		StagingURL:       appKonf.Eko.StagingURL,
		ProductionURL:    appKonf.Eko.ProductionURL,
		DeveloperKey:     appKonf.Eko.DeveloperKey,
		InitiatorID:      appKonf.Eko.InitiatorID,
		AuthenticatorKey: appKonf.Eko.AuthenticatorKey,
		Timeout:          appKonf.Eko.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("cannot create eko client", zap.Error(err))
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Enabled: appKonf.Kafka.Produce,
		Brokers: appKonf.Kafka.Brokers,
		Topic:   appKonf.Kafka.EventsTopic,
	}, logger, kafka.NewEventMetrics())
	if err != nil {
		logger.Fatal("cannot create payment event producer", zap.Error(err))
	}

	directory := operators.NewDirectory(logger, ekoClient, store.operators, appKonf.SubCategories)
	billSvc := bills.NewService(logger, ekoClient, directory, store.fetches, store.payments, producer, appKonf.Bills.FetchTTL)
	reconciler := webhooks.NewReconciler(logger, store.payments, store.fetches, producer)

	trustedProxies, _ := appKonf.HTTP.TrustedProxyPrefixes()
	limiter := api.NewRateLimiter(appKonf.HTTP.RateLimitPerSecond, appKonf.HTTP.RateLimitBurst, trustedProxies, logger)
	go limiter.Run(ctx)

	handler := api.NewHandler(logger, directory, billSvc, reconciler)
	router := api.NewRouter(logger, handler, api.NewAuthenticator(appKonf.Auth.JWTSecret, logger), limiter, appKonf.HTTP.AllowedOrigins)

	server := &http.Server{
		Addr:              appKonf.HTTP.Address,
		Handler:           router,
		ReadTimeout:       appKonf.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      appKonf.HTTP.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	directory.Wait()
	producer.Close()
	store.close(shutdownCtx)
}

func openStorage(ctx context.Context, conf config.Config, logger *zap.Logger) (*storage, error) {
	if conf.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage, records are lost on restart")
		store := memory.NewStore()
		go purgeLoop(ctx, store, logger)
		return &storage{
			operators: store,
			fetches:   store,
			payments:  store,
			close:     func(context.Context) {},
		}, nil
	}

	mongoClient, err := mongodb.Connect(ctx, conf.Mongo.URI, conf.Application)
	if err != nil {
		return nil, err
	}
	if err = mongodb.EnsureIndexes(ctx, mongoClient, conf.Mongo.Database); err != nil {
		return nil, err
	}
	return &storage{
		operators: mongodb.NewOperatorRepository(mongoClient, conf.Mongo.Database),
		fetches:   mongodb.NewBillFetchRepository(mongoClient, conf.Mongo.Database),
		payments:  mongodb.NewBillPaymentRepository(mongoClient, conf.Mongo.Database),
		close: func(ctx context.Context) {
			_ = mongoClient.Disconnect(ctx)
		},
	}, nil
}

// purgeLoop expires old records hourly, as the mongo TTL indexes would.
func purgeLoop(ctx context.Context, store *memory.Store, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fetches, payments := store.Purge(fetchRetention, paymentRetention)
			keptFetches, keptPayments := store.Counts()
			logger.Info("purged expired records",
				zap.Int("fetches", fetches),
				zap.Int("payments", payments),
				zap.Int("stored_fetches", keptFetches),
				zap.Int("stored_payments", keptPayments),
			)
		}
	}
}
