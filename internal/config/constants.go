package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Rate limiting
const (
	DefaultRateLimitPerMin = 120
	PortalRateLimitPerMin  = 60
	LoginRateLimitPerMin   = 5
)

// Change feed listener reconnect bounds
const (
	FeedListenerMinReconnect = 2 * time.Second
	FeedListenerMaxReconnect = time.Minute
)

// Event streams
const (
	EventStreamHeartbeat = 30 * time.Second
	MaxJSONBodySize      = 1 << 20
)
