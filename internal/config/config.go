package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServeModePool  = "pool"  // N pre-spawned handler goroutines
	ServeModeSpawn = "spawn" // one goroutine per accepted connection

	RegimeMutex = "mutex" // sync.Mutex guarded state
	RegimeLoop  = "loop"  // single owner goroutine serialises state access

	minBufferSize      = 256
	minWriteBufferSize = 1024 // the control page assets are served whole
)

type Config struct {
	ListenAddr      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Connection handling. A zero timeout means disabled.
	StartReadTimeout time.Duration // time allowed for the first byte of a request
	ReadTimeout      time.Duration // time allowed to read the rest of the request
	WriteTimeout     time.Duration // time allowed to write the response
	KeepAlive        bool          // serve several requests per connection
	ServeMode        string        // "pool" | "spawn"
	PoolSize         int           // handler slots in pool mode (>= 1)
	ReadBufferSize   int           // fixed per-connection read buffer (bytes)
	WriteBufferSize  int           // fixed per-connection response buffer (bytes)

	// Actuators
	StateRegime       string        // "mutex" | "loop"
	InitialLED        bool          // initial level of the default actuator
	ActuatorFile      string        // optional yaml with extra actuators
	HeartbeatInterval time.Duration // heartbeat blink period, 0 = disabled

	// Access restrictions for operator endpoints
	AllowedCIDRS []string // optional, restrict healthz/readyz/infra (e.g. "10.0.0.0/8, 127.0.0.1")
	TrustProxy   bool     // true => trust X-Forwarded-For headers

	// Toggle journal (disabled when RedisAddr is empty)
	JournalBuffer         int
	RedisAddr             string
	RedisUser             string
	RedisPassword         string
	RedisPasswordRequired bool
	RedisDB               int
	RedisDT               time.Duration // Redis dial timeout
	RedisRT               time.Duration // Redis read timeout
	RedisWT               time.Duration // Redis write timeout
	RedisMaxWait          time.Duration // max wait between retries
	RedisPingTimeout      time.Duration // timeout for each ping attempt
	RedisPoolSize         int
	RedisConnectTimeout   time.Duration // total time to retry connecting
	RedisRetryInterval    time.Duration // initial wait between retries (grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// 9P status export (disabled when empty), ex: "tcp!*!564" or ":5640"
	NinePAddr string

	// Board settings, only read by the pico2w build
	WiFiSSID     string
	WiFiPassword string
	Hostname     string
	StaticIP     string
}

func Load() *Config {
	cfg := &Config{
		ListenAddr:      getenv("LEDCTL_LISTEN_ADDR", ":8080"),
		ShutdownTimeout: mustDuration("LEDCTL_SHUTDOWN_TIMEOUT", 5*time.Second),

		LogLevel:  getenv("LEDCTL_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LEDCTL_PRETTY_LOG", true),

		StartReadTimeout: optionalDuration("LEDCTL_START_READ_TIMEOUT", 5*time.Second),
		ReadTimeout:      optionalDuration("LEDCTL_READ_TIMEOUT", 1*time.Second),
		WriteTimeout:     optionalDuration("LEDCTL_WRITE_TIMEOUT", 1*time.Second),
		KeepAlive:        mustBool("LEDCTL_KEEP_ALIVE", true),
		ServeMode:        strings.ToLower(getenv("LEDCTL_SERVE_MODE", ServeModePool)),
		PoolSize:         getenvInt("LEDCTL_POOL_SIZE", 4),
		ReadBufferSize:   getenvInt("LEDCTL_READ_BUFFER", 2048),
		WriteBufferSize:  getenvInt("LEDCTL_WRITE_BUFFER", 2048),

		StateRegime:       strings.ToLower(getenv("LEDCTL_STATE_REGIME", RegimeMutex)),
		InitialLED:        mustBool("LEDCTL_INITIAL_LED", true),
		ActuatorFile:      getenv("LEDCTL_ACTUATOR_FILE", ""),
		HeartbeatInterval: optionalDuration("LEDCTL_HEARTBEAT_INTERVAL", time.Second),

		AllowedCIDRS: parseAllowedIPs(getenv("LEDCTL_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("LEDCTL_TRUST_PROXY", false),

		JournalBuffer:         getenvInt("LEDCTL_JOURNAL_BUFFER", 64),
		RedisAddr:             getenv("LEDCTL_REDIS_ADDR", ""),
		RedisUser:             getenv("LEDCTL_REDIS_USERNAME", "default"),
		RedisPassword:         getenv("LEDCTL_REDIS_PASSWORD", ""),
		RedisPasswordRequired: mustBool("LEDCTL_REDIS_PASSWORD_REQUIRED", false),
		RedisDB:               getenvInt("LEDCTL_REDIS_DB", 0),
		RedisDT:               mustDuration("LEDCTL_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("LEDCTL_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("LEDCTL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("LEDCTL_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("LEDCTL_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("LEDCTL_REDIS_POOL_SIZE", 4),
		RedisConnectTimeout:   mustDuration("LEDCTL_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("LEDCTL_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("LEDCTL_REDIS_WARN_THRESHOLD", 3),

		NinePAddr: getenv("LEDCTL_9P_ADDR", ""),

		WiFiSSID:     getenv("LEDCTL_WIFI_SSID", ""),
		WiFiPassword: getenv("LEDCTL_WIFI_PASSWORD", ""),
		Hostname:     getenv("LEDCTL_HOSTNAME", "ledctl"),
		StaticIP:     getenv("LEDCTL_STATIC_IP", ""),
	}

	cfg.validate()

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.WiFiPassword = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// JournalEnabled reports whether toggle events are mirrored to Redis.
func (c *Config) JournalEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) validate() {
	switch c.ServeMode {
	case ServeModePool, ServeModeSpawn:
	default:
		panic(fmt.Sprintf("❌ FATAL: LEDCTL_SERVE_MODE must be %q or %q, got %q", ServeModePool, ServeModeSpawn, c.ServeMode))
	}
	if c.PoolSize < 1 {
		panic(fmt.Sprintf("❌ FATAL: LEDCTL_POOL_SIZE must be >= 1, got %d", c.PoolSize))
	}
	if c.ReadBufferSize < minBufferSize {
		panic(fmt.Sprintf("❌ FATAL: LEDCTL_READ_BUFFER must be >= %d bytes, got %d", minBufferSize, c.ReadBufferSize))
	}
	if c.WriteBufferSize < minWriteBufferSize {
		panic(fmt.Sprintf("❌ FATAL: LEDCTL_WRITE_BUFFER must be >= %d bytes, got %d", minWriteBufferSize, c.WriteBufferSize))
	}
	switch c.StateRegime {
	case RegimeMutex, RegimeLoop:
	default:
		panic(fmt.Sprintf("❌ FATAL: LEDCTL_STATE_REGIME must be %q or %q, got %q", RegimeMutex, RegimeLoop, c.StateRegime))
	}
	if c.JournalBuffer < 1 {
		panic(fmt.Sprintf("❌ FATAL: LEDCTL_JOURNAL_BUFFER must be >= 1, got %d", c.JournalBuffer))
	}
	if c.JournalEnabled() && c.RedisPasswordRequired && c.RedisPassword == "" {
		panic("❌ FATAL: LEDCTL_REDIS_PASSWORD is required when LEDCTL_REDIS_PASSWORD_REQUIRED=true")
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// optionalDuration is mustDuration for timeouts that can be switched off.
// "off", "none", "disabled" and "0" all yield 0.
func optionalDuration(key string, def time.Duration) time.Duration {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "off", "none", "disabled", "0":
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
