package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoOpTimeout    = "MONGO_OP_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitRequests     = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow       = "RATE_LIMIT_WINDOW"
	EnvAuthRateLimitRequests = "AUTH_RATE_LIMIT_REQUESTS"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"
	EnvFrontendURL        = "FRONTEND_URL"

	EnvJWTSecret     = "JWT_SECRET"
	EnvJWTIssuer     = "JWT_ISSUER"
	EnvJWTAccessTTL  = "JWT_ACCESS_TTL"
	EnvJWTRefreshTTL = "JWT_REFRESH_TTL"

	EnvOTPTTL            = "OTP_TTL"
	EnvOTPMaxAttempts    = "OTP_MAX_ATTEMPTS"
	EnvOTPResendCooldown = "OTP_RESEND_COOLDOWN"

	EnvDefaultPhoneRegion = "DEFAULT_PHONE_REGION"

	EnvBookingMaxDays        = "BOOKING_MAX_DAYS"
	EnvBookingPendingTTL     = "BOOKING_PENDING_TTL"
	EnvBookingReaperInterval = "BOOKING_REAPER_INTERVAL"
	EnvBookingLockTTL        = "BOOKING_LOCK_TTL"

	EnvInvoiceTaxRate  = "INVOICE_TAX_RATE"
	EnvInvoiceCurrency = "INVOICE_CURRENCY"
	EnvCompanyName     = "COMPANY_NAME"
	EnvCompanyAddress  = "COMPANY_ADDRESS"

	EnvMailProvider         = "MAIL_PROVIDER"
	EnvMailFrom             = "MAIL_FROM"
	EnvMailFromName         = "MAIL_FROM_NAME"
	EnvSMTPHost             = "SMTP_HOST"
	EnvSMTPPort             = "SMTP_PORT"
	EnvSMTPUsername         = "SMTP_USERNAME"
	EnvSMTPPassword         = "SMTP_PASSWORD"
	EnvSMTPStartTLS         = "SMTP_STARTTLS"
	EnvSendGridAPIKey       = "SENDGRID_API_KEY"
	EnvMailQueueFile        = "MAIL_QUEUE_FILE"
	EnvMailQueueInterval    = "MAIL_QUEUE_INTERVAL"
	EnvMailQueueMaxAttempts = "MAIL_QUEUE_MAX_ATTEMPTS"
	EnvMailCheckTimeout     = "MAIL_CHECK_TIMEOUT"

	EnvStorageProvider   = "STORAGE_PROVIDER"
	EnvStorageBucket     = "STORAGE_BUCKET"
	EnvStorageRegion     = "STORAGE_REGION"
	EnvStorageEndpoint   = "STORAGE_ENDPOINT"
	EnvStorageAccessKey  = "STORAGE_ACCESS_KEY"
	EnvStorageSecretKey  = "STORAGE_SECRET_KEY"
	EnvStorageUseSSL     = "STORAGE_USE_SSL"
	EnvStoragePresignTTL = "STORAGE_PRESIGN_TTL"

	EnvKafkaEnabled = "KAFKA_ENABLED"
)
