package main

import (
	"context"
	"time"

	"driveo/internal/availability"
	authhandler "driveo/internal/auth/handler"
	authrepo "driveo/internal/auth/repository"
	authservice "driveo/internal/auth/service"
	authvalidator "driveo/internal/auth/validator"
	bookinghandler "driveo/internal/bookings/handler"
	bookingrepo "driveo/internal/bookings/repository"
	bookingservice "driveo/internal/bookings/service"
	bookingvalidator "driveo/internal/bookings/validator"
	dashboardhandler "driveo/internal/dashboard/handler"
	dashboardservice "driveo/internal/dashboard/service"
	"driveo/internal/events"
	invoicehandler "driveo/internal/invoices/handler"
	"driveo/internal/invoices/pdf"
	invoicerepo "driveo/internal/invoices/repository"
	invoiceservice "driveo/internal/invoices/service"
	masterdatahandler "driveo/internal/masterdata/handler"
	masterdatarepo "driveo/internal/masterdata/repository"
	masterdataservice "driveo/internal/masterdata/service"
	"driveo/internal/notifications"
	userhandler "driveo/internal/users/handler"
	userrepo "driveo/internal/users/repository"
	userservice "driveo/internal/users/service"
	vehiclehandler "driveo/internal/vehicles/handler"
	vehiclerepo "driveo/internal/vehicles/repository"
	vehicleservice "driveo/internal/vehicles/service"
	vehiclevalidator "driveo/internal/vehicles/validator"
	"driveo/pkg/app"
	"driveo/pkg/config"
	"driveo/pkg/counter"
	kafka_config "driveo/pkg/kafka/config"
	kafka_middleware "driveo/pkg/kafka/middleware"
	"driveo/pkg/mailer"
	"driveo/pkg/middleware"
	"driveo/pkg/storage"
	"driveo/pkg/token"
)

const (
	ServiceName = "driveo-api"

	localHandlerTimeout = 30 * time.Second
	warmTimeout         = time.Minute
)

type repositories struct {
	users     userrepo.UserRepository
	otps      authrepo.OTPRepository
	vehicles  vehiclerepo.VehicleRepository
	bookings  bookingrepo.BookingRepository
	locks     bookingrepo.BookingLockRepository
	invoices  invoicerepo.InvoiceRepository
	locations masterdatarepo.LocationRepository
	carModels masterdatarepo.CarModelRepository
}

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting DriveO API")
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	ctx := context.Background()
	serverApp := app.NewApplication(cfg)
	repos := initRepositories(cfg)

	index := availability.NewIndex()
	warmIndex(ctx, cfg, repos.bookings, index)

	mail := initMailer(ctx, cfg, serverApp)
	renderer, err := mailer.NewRenderer()
	if err != nil {
		cfg.Log.Fatal("Failed to load email templates", "error", err)
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize object storage", "provider", cfg.StorageProvider, "error", err)
	}

	seq := counter.New(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.MongoOpTimeout)
	invoices := invoiceservice.NewInvoiceService(
		repos.invoices,
		seq,
		pdf.NewRenderer(cfg.CompanyName, cfg.CompanyAddress),
		store,
		cfg,
	)

	notifier := notifications.NewHandler(renderer, mail, invoices, cfg.Log)
	publisher := initPublisher(cfg, notifier)
	serverApp.AddWorker(app.WorkerFunc(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}))

	tokens := token.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	authenticator := middleware.NewAuthenticator(tokens)

	masterData := masterdataservice.NewMasterDataService(repos.locations, repos.carModels, cfg)
	vehicles := vehicleservice.NewVehicleService(
		repos.vehicles,
		vehiclevalidator.NewVehicleValidator(cfg.Log),
		masterData,
		repos.bookings,
		repos.users,
		index,
		store,
		publisher,
		cfg,
	)
	bookings := bookingservice.NewBookingService(
		repos.bookings,
		repos.locks,
		bookingvalidator.NewBookingValidator(cfg.Log, cfg.BookingMaxDays),
		index,
		seq,
		repos.vehicles,
		repos.users,
		invoices,
		publisher,
		cfg,
	)
	users := userservice.NewUserService(repos.users, repos.bookings, cfg)
	auth := authservice.NewAuthService(
		repos.users,
		repos.otps,
		authvalidator.NewAuthValidator(cfg.Log),
		tokens,
		mail,
		renderer,
		cfg,
	)
	stats := dashboardservice.NewStatsService(repos.users, repos.vehicles, repos.bookings, index, cfg)

	reaper := bookingservice.NewReaper(bookings, cfg.BookingReaperInterval, cfg.Log)
	reaper.Start(ctx)
	serverApp.AddWorker(reaper)

	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimitRequests, cfg.RateLimitWindow, nil, cfg.Log)
	serverApp.AddWorker(authLimiter)

	serverApp.SetApp(
		dashboardhandler.NewHealthHandler(cfg.Client.Mongo, index, cfg.Log),
		authhandler.NewAuthHandler(auth, authLimiter, cfg.Log),
		userhandler.NewUserHandler(users, authenticator, cfg.Log),
		vehiclehandler.NewVehicleHandler(vehicles, authenticator, cfg.Log),
		bookinghandler.NewBookingHandler(bookings, authenticator, cfg.Log),
		invoicehandler.NewInvoiceHandler(invoices, authenticator, cfg.Log),
		masterdatahandler.NewMasterDataHandler(masterData, authenticator, cfg.Log),
		dashboardhandler.NewStatsHandler(stats, authenticator, cfg.Log),
	)
	serverApp.Run()
}

func initRepositories(cfg *config.Config) repositories {
	repos := repositories{
		users:     userrepo.NewMongoUserRepository(cfg),
		otps:      authrepo.NewMongoOTPRepository(cfg),
		vehicles:  vehiclerepo.NewMongoVehicleRepository(cfg),
		bookings:  bookingrepo.NewMongoBookingRepository(cfg),
		locks:     bookingrepo.NewBookingLockRepository(cfg),
		invoices:  invoicerepo.NewMongoInvoiceRepository(cfg),
		locations: masterdatarepo.NewMongoLocationRepository(cfg),
		carModels: masterdatarepo.NewMongoCarModelRepository(cfg),
	}
	cfg.Log.Info("Repositories initialized", "database", cfg.MongoDatabaseName)
	return repos
}

func warmIndex(ctx context.Context, cfg *config.Config, source availability.Source, index *availability.Index) {
	ctx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()

	if _, err := availability.NewLoader(source, index, cfg.Log).Warm(ctx, time.Now().UTC()); err != nil {
		cfg.Log.Fatal("Failed to warm availability index", "error", err)
	}
}

// initMailer starts the offline queue worker. On shutdown the worker stops
// and the queue is drained once more.
func initMailer(ctx context.Context, cfg *config.Config, serverApp *app.Application) *mailer.Mailer {
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

	serverApp.AddWorker(app.WorkerFunc(func() {
		mail.Stop()
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		mail.Flush(flushCtx)
	}))
	return mail
}

func initPublisher(cfg *config.Config, notifier events.Handler) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, dispatching events in-process")
		return events.NewLocalPublisher(notifier, localHandlerTimeout, cfg.Log)
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	publisher, err := events.NewKafkaPublisher(kafkaCfg, kafka_middleware.NewMetrics(), cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka publisher", "error", err)
	}
	return publisher
}
