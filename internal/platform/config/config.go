package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// HomeCountry selects whose domestic and mask rules apply.
	HomeCountry string

	// OfflineRevocation enables the cached revocation set fallback.
	OfflineRevocation bool

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// RedisConfig captures the online revocation index connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig captures durable storage. Empty DSN means memory-only.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig captures the audit sink. Empty brokers mean in-process audit.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("VERIPASS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("VERIPASS_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	homeCountry := os.Getenv("VERIPASS_HOME_COUNTRY")
	if homeCountry == "" {
		homeCountry = "DE"
	}

	return Server{
		Addr:              addr,
		JWTSigningKey:     jwtSigningKey,
		HomeCountry:       homeCountry,
		OfflineRevocation: os.Getenv("VERIPASS_OFFLINE_REVOCATION") == "true",
		Redis: RedisConfig{
			URL:          os.Getenv("VERIPASS_REDIS_URL"),
			PoolSize:     intFromEnv("VERIPASS_REDIS_POOL_SIZE", 10),
			MinIdleConns: intFromEnv("VERIPASS_REDIS_MIN_IDLE", 2),
			DialTimeout:  durationFromEnv("VERIPASS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationFromEnv("VERIPASS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationFromEnv("VERIPASS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("VERIPASS_POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("VERIPASS_KAFKA_BROKERS")),
			AuditTopic: envOr("VERIPASS_AUDIT_TOPIC", "veripass.audit"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func intFromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
