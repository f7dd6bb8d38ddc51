package config

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"driveo/pkg/client"
	"driveo/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	MailProviderSMTP     = "smtp"
	MailProviderSendGrid = "sendgrid"
	MailProviderConsole  = "console"

	StorageProviderNone  = "none"
	StorageProviderS3    = "s3"
	StorageProviderMinio = "minio"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	MongoOpTimeout    time.Duration

	Port string

	RateLimitRequests     int
	RateLimitWindow       time.Duration
	AuthRateLimitRequests int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	CORSAllowedOrigins []string
	FrontendURL        string

	JWTSecret     string
	JWTIssuer     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	OTPTTL            time.Duration
	OTPMaxAttempts    int
	OTPResendCooldown time.Duration

	DefaultPhoneRegion string

	BookingMaxDays        int
	BookingPendingTTL     time.Duration
	BookingReaperInterval time.Duration
	BookingLockTTL        time.Duration

	InvoiceTaxRate  float64
	InvoiceCurrency string
	CompanyName     string
	CompanyAddress  string

	MailProvider         string
	MailFrom             string
	MailFromName         string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	SMTPStartTLS         bool
	SendGridAPIKey       string
	MailQueueFile        string
	MailQueueInterval    time.Duration
	MailQueueMaxAttempts int
	MailCheckTimeout     time.Duration

	StorageProvider   string
	StorageBucket     string
	StorageRegion     string
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageUseSSL     bool
	StoragePresignTTL time.Duration

	KafkaEnabled bool

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoOpTimeout:    getEnvDuration(EnvMongoOpTimeout, DefaultMongoOpTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests:     getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:       getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),
		AuthRateLimitRequests: getEnvNum(EnvAuthRateLimitRequests, DefaultAuthRateLimitRequests),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		CORSAllowedOrigins: getEnvList(EnvCORSAllowedOrigins, DefaultCORSAllowedOrigins),
		FrontendURL:        getEnvStr(EnvFrontendURL, DefaultFrontendURL),

		JWTSecret:     getEnvStr(EnvJWTSecret, ""),
		JWTIssuer:     getEnvStr(EnvJWTIssuer, DefaultJWTIssuer),
		JWTAccessTTL:  getEnvDuration(EnvJWTAccessTTL, DefaultJWTAccessTTL),
		JWTRefreshTTL: getEnvDuration(EnvJWTRefreshTTL, DefaultJWTRefreshTTL),

		OTPTTL:            getEnvDuration(EnvOTPTTL, DefaultOTPTTL),
		OTPMaxAttempts:    getEnvNum(EnvOTPMaxAttempts, DefaultOTPMaxAttempts),
		OTPResendCooldown: getEnvDuration(EnvOTPResendCooldown, DefaultOTPResendCooldown),

		DefaultPhoneRegion: strings.ToUpper(getEnvStr(EnvDefaultPhoneRegion, DefaultPhoneRegion)),

		BookingMaxDays:        getEnvNum(EnvBookingMaxDays, DefaultBookingMaxDays),
		BookingPendingTTL:     getEnvDuration(EnvBookingPendingTTL, DefaultBookingPendingTTL),
		BookingReaperInterval: getEnvDuration(EnvBookingReaperInterval, DefaultBookingReaperInterval),
		BookingLockTTL:        getEnvDuration(EnvBookingLockTTL, DefaultBookingLockTTL),

		InvoiceTaxRate:  getEnvFloat(EnvInvoiceTaxRate, DefaultInvoiceTaxRate),
		InvoiceCurrency: getEnvStr(EnvInvoiceCurrency, DefaultInvoiceCurrency),
		CompanyName:     getEnvStr(EnvCompanyName, DefaultCompanyName),
		CompanyAddress:  getEnvStr(EnvCompanyAddress, DefaultCompanyAddress),

		MailProvider:         strings.ToLower(getEnvStr(EnvMailProvider, DefaultMailProvider)),
		MailFrom:             getEnvStr(EnvMailFrom, DefaultMailFrom),
		MailFromName:         getEnvStr(EnvMailFromName, DefaultMailFromName),
		SMTPHost:             getEnvStr(EnvSMTPHost, ""),
		SMTPPort:             getEnvNum(EnvSMTPPort, DefaultSMTPPort),
		SMTPUsername:         getEnvStr(EnvSMTPUsername, ""),
		SMTPPassword:         getEnvStr(EnvSMTPPassword, ""),
		SMTPStartTLS:         getEnvBool(EnvSMTPStartTLS, DefaultSMTPStartTLS),
		SendGridAPIKey:       getEnvStr(EnvSendGridAPIKey, ""),
		MailQueueFile:        getEnvStr(EnvMailQueueFile, DefaultMailQueueFile),
		MailQueueInterval:    getEnvDuration(EnvMailQueueInterval, DefaultMailQueueInterval),
		MailQueueMaxAttempts: getEnvNum(EnvMailQueueMaxAttempts, DefaultMailQueueMaxAttempts),
		MailCheckTimeout:     getEnvDuration(EnvMailCheckTimeout, DefaultMailCheckTimeout),

		StorageProvider:   strings.ToLower(getEnvStr(EnvStorageProvider, DefaultStorageProvider)),
		StorageBucket:     getEnvStr(EnvStorageBucket, ""),
		StorageRegion:     getEnvStr(EnvStorageRegion, DefaultStorageRegion),
		StorageEndpoint:   getEnvStr(EnvStorageEndpoint, ""),
		StorageAccessKey:  getEnvStr(EnvStorageAccessKey, ""),
		StorageSecretKey:  getEnvStr(EnvStorageSecretKey, ""),
		StorageUseSSL:     getEnvBool(EnvStorageUseSSL, false),
		StoragePresignTTL: getEnvDuration(EnvStoragePresignTTL, DefaultStoragePresignTTL),

		KafkaEnabled: getEnvBool(EnvKafkaEnabled, false),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positive := map[string]time.Duration{
		"MongoConnTimeout":      cfg.MongoConnTimeout,
		"MongoOpTimeout":        cfg.MongoOpTimeout,
		"RateLimitWindow":       cfg.RateLimitWindow,
		"RequestTimeout":        cfg.RequestTimeout,
		"IdempotencyTTL":        cfg.IdempotencyTTL,
		"ReadTimeout":           cfg.ReadTimeout,
		"WriteTimeout":          cfg.WriteTimeout,
		"IdleTimeout":           cfg.IdleTimeout,
		"ShutdownTimeout":       cfg.ShutdownTimeout,
		"JWTAccessTTL":          cfg.JWTAccessTTL,
		"JWTRefreshTTL":         cfg.JWTRefreshTTL,
		"OTPTTL":                cfg.OTPTTL,
		"BookingPendingTTL":     cfg.BookingPendingTTL,
		"BookingReaperInterval": cfg.BookingReaperInterval,
		"BookingLockTTL":        cfg.BookingLockTTL,
		"MailQueueInterval":     cfg.MailQueueInterval,
		"MailCheckTimeout":      cfg.MailCheckTimeout,
		"StoragePresignTTL":     cfg.StoragePresignTTL,
	}
	for _, name := range slices.Sorted(maps.Keys(positive)) {
		if positive[name] <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", name, positive[name]))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.AuthRateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("AuthRateLimitRequests must be positive, got: %d", cfg.AuthRateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(cfg.JWTSecret) < 32 {
		errors = append(errors, "JWTSecret must be at least 32 characters")
	}
	if cfg.JWTRefreshTTL <= cfg.JWTAccessTTL {
		errors = append(errors, fmt.Sprintf("JWTRefreshTTL (%s) must be longer than JWTAccessTTL (%s)", cfg.JWTRefreshTTL, cfg.JWTAccessTTL))
	}
	if cfg.OTPMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("OTPMaxAttempts must be positive, got: %d", cfg.OTPMaxAttempts))
	}
	if cfg.OTPResendCooldown < 0 {
		errors = append(errors, fmt.Sprintf("OTPResendCooldown cannot be negative, got: %s", cfg.OTPResendCooldown))
	}
	if len(cfg.DefaultPhoneRegion) != 2 {
		errors = append(errors, fmt.Sprintf("DefaultPhoneRegion must be a 2-letter region code, got: %s", cfg.DefaultPhoneRegion))
	}

	if cfg.BookingMaxDays <= 0 {
		errors = append(errors, fmt.Sprintf("BookingMaxDays must be positive, got: %d", cfg.BookingMaxDays))
	}
	if cfg.InvoiceTaxRate < 0 || cfg.InvoiceTaxRate >= 1 {
		errors = append(errors, fmt.Sprintf("InvoiceTaxRate must be in [0, 1), got: %v", cfg.InvoiceTaxRate))
	}
	if len(cfg.InvoiceCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("InvoiceCurrency must be an ISO 4217 code, got: %s", cfg.InvoiceCurrency))
	}

	switch cfg.MailProvider {
	case MailProviderSMTP:
		if cfg.SMTPHost == "" {
			errors = append(errors, "SMTPHost is required when MailProvider is smtp")
		}
		if cfg.SMTPPort < 1 || cfg.SMTPPort > 65535 {
			errors = append(errors, fmt.Sprintf("SMTPPort must be between 1 and 65535, got: %d", cfg.SMTPPort))
		}
	case MailProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			errors = append(errors, "SendGridAPIKey is required when MailProvider is sendgrid")
		}
	case MailProviderConsole:
	default:
		errors = append(errors, fmt.Sprintf("MailProvider must be one of smtp, sendgrid, console, got: %s", cfg.MailProvider))
	}
	if cfg.MailFrom == "" {
		errors = append(errors, "MailFrom cannot be empty")
	}
	if cfg.MailQueueFile == "" {
		errors = append(errors, "MailQueueFile cannot be empty")
	}
	if cfg.MailQueueMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("MailQueueMaxAttempts must be positive, got: %d", cfg.MailQueueMaxAttempts))
	}

	switch cfg.StorageProvider {
	case StorageProviderNone:
	case StorageProviderS3, StorageProviderMinio:
		if cfg.StorageBucket == "" {
			errors = append(errors, fmt.Sprintf("StorageBucket is required when StorageProvider is %s", cfg.StorageProvider))
		}
		if cfg.StorageProvider == StorageProviderMinio && cfg.StorageEndpoint == "" {
			errors = append(errors, "StorageEndpoint is required when StorageProvider is minio")
		}
	default:
		errors = append(errors, fmt.Sprintf("StorageProvider must be one of none, s3, minio, got: %s", cfg.StorageProvider))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"mongo_op_timeout", cfg.MongoOpTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"auth_rate_limit_requests", cfg.AuthRateLimitRequests,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
		"jwt_secret_set", cfg.JWTSecret != "",
		"jwt_access_ttl", cfg.JWTAccessTTL,
		"jwt_refresh_ttl", cfg.JWTRefreshTTL,
		"otp_ttl", cfg.OTPTTL,
		"otp_max_attempts", cfg.OTPMaxAttempts,
		"default_phone_region", cfg.DefaultPhoneRegion,
		"booking_max_days", cfg.BookingMaxDays,
		"booking_pending_ttl", cfg.BookingPendingTTL,
		"booking_reaper_interval", cfg.BookingReaperInterval,
		"invoice_tax_rate", cfg.InvoiceTaxRate,
		"invoice_currency", cfg.InvoiceCurrency,
		"mail_provider", cfg.MailProvider,
		"mail_from", cfg.MailFrom,
		"smtp_host", cfg.SMTPHost,
		"smtp_password_set", cfg.SMTPPassword != "",
		"sendgrid_key_set", cfg.SendGridAPIKey != "",
		"mail_queue_file", cfg.MailQueueFile,
		"mail_queue_interval", cfg.MailQueueInterval,
		"storage_provider", cfg.StorageProvider,
		"storage_bucket", cfg.StorageBucket,
		"storage_secret_set", cfg.StorageSecretKey != "",
		"kafka_enabled", cfg.KafkaEnabled,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
