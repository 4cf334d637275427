package consts

import "time"

// Lock acquisition
const (
	CatalogLockTimeout = 30 * time.Second
	CookieLockTimeout  = 30 * time.Second
	LockRetryInterval  = 100 * time.Millisecond
)

// Retry configuration
const (
	DefaultMaxRetries = 3
	RetryInterval     = 2 * time.Second
	RetryMaxBackoff   = 30 * time.Second
)

// Session credentials
const (
	CookieRefreshInterval = 2 * time.Hour
)

// Network timeouts
const (
	HTTPClientTimeout = 10 * time.Second
	ProbeTimeout      = 15 * time.Second
)

// Driver loop
const (
	DefaultSyncSleep = time.Hour
	// DrainTimeout bounds the wait for in-flight downloads after a batch is interrupted.
	DrainTimeout = 15 * time.Second
)

// Blocking timeouts (minutes) after a rate-limit response, keyed by domain substring.
var BotTimeoutMap = map[string]float64{
	"youtube.com":   60.0,
	"rumble.com":    60.0,
	"brighteon.com": 30.0,
}

// DefaultBlockMinutes applies to domains missing from BotTimeoutMap.
const DefaultBlockMinutes = 60.0
