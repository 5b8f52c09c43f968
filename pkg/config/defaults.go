package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "stayledger"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Advisory locks auto-expire so a crashed operation cannot wedge a
	// calendar or a booking's settlement path.
	DefaultCalendarLockTTL   = 10 * time.Second
	DefaultSettlementLockTTL = 10 * time.Second

	// Booking window constraints applied when a property does not set its own.
	DefaultDefaultMinNotice = 24 * time.Hour
	DefaultDefaultMaxWindow = 365 * 24 * time.Hour

	// Basis-point denominator shared by every fee computation.
	BpsDenominator = 10000

	DefaultPaginationLimit = 100
)
