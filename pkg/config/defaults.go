package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "driveo"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoOpTimeout    = 5 * time.Second

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRateLimitRequests     = 120
	DefaultRateLimitWindow       = 1 * time.Minute
	DefaultAuthRateLimitRequests = 10

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 6 * 1024 * 1024 // image uploads

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultCORSAllowedOrigins = "*"
	DefaultFrontendURL        = "http://localhost:5173"

	DefaultJWTIssuer     = "driveo"
	DefaultJWTAccessTTL  = 15 * time.Minute
	DefaultJWTRefreshTTL = 7 * 24 * time.Hour

	DefaultOTPTTL            = 10 * time.Minute
	DefaultOTPMaxAttempts    = 5
	DefaultOTPResendCooldown = 60 * time.Second

	DefaultPhoneRegion = "IN"

	DefaultBookingMaxDays        = 30
	DefaultBookingPendingTTL     = 30 * time.Minute
	DefaultBookingReaperInterval = 1 * time.Minute
	DefaultBookingLockTTL        = 10 * time.Second

	DefaultInvoiceTaxRate  = 0.18
	DefaultInvoiceCurrency = "INR"
	DefaultCompanyName     = "DriveO Rentals"
	DefaultCompanyAddress  = ""

	DefaultMailProvider         = "console"
	DefaultMailFrom             = "no-reply@driveo.local"
	DefaultMailFromName         = "DriveO"
	DefaultSMTPPort             = 587
	DefaultSMTPStartTLS         = true
	DefaultMailQueueFile        = "data/mail_queue.json"
	DefaultMailQueueInterval    = 30 * time.Second
	DefaultMailQueueMaxAttempts = 10
	DefaultMailCheckTimeout     = 3 * time.Second

	DefaultStorageProvider   = "none"
	DefaultStorageRegion     = "us-east-1"
	DefaultStoragePresignTTL = 15 * time.Minute
)
