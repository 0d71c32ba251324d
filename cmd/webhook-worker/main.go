package main

import (
	// Go Internal Packages
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Local Packages
	config "bbps-hub/config"
	kafka "bbps-hub/kafka"
	models "bbps-hub/models"
	mongodb "bbps-hub/repositories/mongodb"
	redis "bbps-hub/repositories/redis"
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
	_ = godotenv.Load()

	k := LoadConfig()
	appKonf := config.Config{}

	// Unmarshalling config into struct
	err := k.Unmarshal("", &appKonf)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// The worker always consumes and needs the shared mongo ledger
	appKonf = config.LoadSecrets(appKonf)
	appKonf.Kafka.Consume = true
	if err = appKonf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if appKonf.Storage.Driver != "mongo" {
		log.Fatalf("Invalid configuration: webhook worker requires storage.driver mongo")
	}

	if !appKonf.IsProdMode {
		k.Print()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	_ = cfg.Level.UnmarshalText([]byte(appKonf.Logger.Level))
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = appKonf.Application + "-webhook-worker"
	cfg.OutputPaths = []string{"stdout"}
	logger, _ := cfg.Build()
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mongo Connection
	mongoClient, err := mongodb.Connect(ctx, appKonf.Mongo.URI, appKonf.Application)
	if err != nil {
		logger.Fatal("cannot create mongo client", zap.Error(err))
	}

	// Redis Connection
	redisClient, err := redis.Connect(ctx, appKonf.Redis.URI, appKonf.Redis.Password)
	if err != nil {
		logger.Fatal("cannot create redis client", zap.Error(err))
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Enabled: appKonf.Kafka.Produce,
		Brokers: appKonf.Kafka.Brokers,
		Topic:   appKonf.Kafka.EventsTopic,
	}, logger, kafka.NewEventMetrics())
	if err != nil {
		logger.Fatal("cannot create payment event producer", zap.Error(err))
	}
	defer producer.Close()

	paymentRepo := mongodb.NewBillPaymentRepository(mongoClient, appKonf.Mongo.Database)
	fetchRepo := mongodb.NewBillFetchRepository(mongoClient, appKonf.Mongo.Database)
	reconciler := webhooks.NewReconciler(logger, paymentRepo, fetchRepo, producer)
	processor := webhooks.NewRecordProcessor(logger, reconciler)
	dlQueue := redis.NewDeadLetterQueue(redisClient, logger, appKonf.Redis.DLQList)
	go dlQueue.Watch(ctx, time.Minute)

	conf := &models.ConsumerConfig{
		Brokers:        appKonf.Kafka.Brokers,
		Name:           appKonf.Kafka.ConsumerName,
		Topic:          appKonf.Kafka.Topic,
		RecordsPerPoll: appKonf.Kafka.RecordsPerPoll,
	}

	webhookConsumer, err := kafka.NewWebhookConsumer(conf, logger, processor, dlQueue, kafka.NewWebhookMetrics())
	if err != nil {
		logger.Fatal("cannot create webhook consumer", zap.Error(err))
	}

	err = webhookConsumer.Poll(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Fatal("cannot poll records from topic", zap.Error(err))
	}
	_ = mongoClient.Disconnect(context.Background())
}
