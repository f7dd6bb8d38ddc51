package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"driveo/internal/events"
	"driveo/internal/invoices/pdf"
	invoicerepo "driveo/internal/invoices/repository"
	invoiceservice "driveo/internal/invoices/service"
	"driveo/internal/notifications"
	"driveo/pkg/config"
	"driveo/pkg/counter"
	"driveo/pkg/kafka"
	kafka_config "driveo/pkg/kafka/config"
	kafka_middleware "driveo/pkg/kafka/middleware"
	"driveo/pkg/mailer"
	"driveo/pkg/storage"
)

const ServiceName = "driveo-notifier"

// The notifier consumes booking and vehicle events from Kafka and turns
// them into emails. It is only needed when the API runs with Kafka enabled.
func main() {
	cfg := config.Load(ServiceName)
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := mailer.NewSender(cfg, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize mail sender", "provider", cfg.MailProvider, "error", err)
	}
	queue, err := mailer.OpenQueue(cfg.MailQueueFile)
	if err != nil {
		cfg.Log.Fatal("Failed to open mail queue", "file", cfg.MailQueueFile, "error", err)
	}
	mail := mailer.New(sender, queue, mailer.Options{
		Interval:     cfg.MailQueueInterval,
		MaxAttempts:  cfg.MailQueueMaxAttempts,
		CheckTimeout: cfg.MailCheckTimeout,
	}, cfg.Log)
	mail.Start(ctx)

	renderer, err := mailer.NewRenderer()
	if err != nil {
		cfg.Log.Fatal("Failed to load email templates", "error", err)
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize object storage", "provider", cfg.StorageProvider, "error", err)
	}

	invoices := invoiceservice.NewInvoiceService(
		invoicerepo.NewMongoInvoiceRepository(cfg),
		counter.New(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.MongoOpTimeout),
		pdf.NewRenderer(cfg.CompanyName, cfg.CompanyAddress),
		store,
		cfg,
	)

	handler := events.KafkaHandler(notifications.NewHandler(renderer, mail, invoices, cfg.Log))
	metrics := kafka_middleware.NewMetrics()

	var consumers []*kafka.Consumer
	for _, topic := range []string{kafkaCfg.BookingsTopic, kafkaCfg.VehiclesTopic} {
		consumer, err := kafka.NewConsumer(kafkaCfg, topic, kafkaCfg.GroupID, kafkaCfg.DLQTopic, handler, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka consumer", "topic", topic, "error", err)
		}
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(metrics.Consumer())
		consumers = append(consumers, consumer)
	}

	var wg sync.WaitGroup
	for _, consumer := range consumers {
		wg.Add(1)
		go func(c *kafka.Consumer) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				cfg.Log.Error("Kafka consumer stopped", "error", err)
			}
		}(consumer)
	}

	cfg.Log.Info("Notifier started", "topics", []string{kafkaCfg.BookingsTopic, kafkaCfg.VehiclesTopic})
	<-ctx.Done()
	cfg.Log.Info("Shutdown signal received, stopping consumers")

	wg.Wait()
	for _, consumer := range consumers {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	}

	mail.Stop()
	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	mail.Flush(flushCtx)

	snapshot := metrics.Snapshot()
	cfg.Log.Info("Notifier stopped", "consumed", snapshot.Consumed, "failed", snapshot.ConsumeFailed)
}
