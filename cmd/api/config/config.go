package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"textcleaner_go_backend/internal/services"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Port           string
	AllowedOrigins []string

	JWTSecret           string
	StripeSecretKey     string
	StripeWebhookSecret string

	Currency        string
	PriceTiers      []services.PriceTier
	DonationAmounts []int64

	// Files at or below SyncThresholdBytes are processed on the request
	// goroutine; larger ones go to the background workers.
	SyncThresholdBytes int64
	MaxFileSizeBytes   int64
	WorkerCount        int
	QueueDepth         int

	SessionIdleTimeout  time.Duration
	SessionReapInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "3000"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		Currency:        getEnv("PRICE_CURRENCY", "XTR"),
		PriceTiers:      parseTiers(getEnv("PRICE_TIERS", "")),
		DonationAmounts: parseAmounts(getEnv("DONATION_AMOUNTS", "50,100,500")),

		SyncThresholdBytes: getEnvInt64("SYNC_THRESHOLD_BYTES", 5*1024*1024),
		MaxFileSizeBytes:   getEnvInt64("MAX_FILE_SIZE_BYTES", 20*1024*1024),
		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		QueueDepth:         getEnvInt("QUEUE_DEPTH", 32),

		SessionIdleTimeout:  getEnvDuration("SESSION_IDLE_TIMEOUT", 24*time.Hour),
		SessionReapInterval: getEnvDuration("SESSION_REAP_INTERVAL", 10*time.Minute),
	}

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is not set in the environment")
	}
	if cfg.StripeSecretKey == "" {
		log.Fatal().Msg("STRIPE_SECRET_KEY is not set in the environment")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Fatal().Msg("STRIPE_WEBHOOK_SECRET is not set in the environment")
	}

	return cfg
}

// parseTiers reads a tier table like "500:0,1000:10,10000:25,*:50" where each
// entry is upper-bound:price and "*" marks the unbounded final tier. An empty
// or malformed value falls back to the built-in table.
func parseTiers(raw string) []services.PriceTier {
	if raw == "" {
		return services.DefaultTiers()
	}

	var tiers []services.PriceTier
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 {
			log.Fatal().Str("entry", entry).Msg("malformed PRICE_TIERS entry")
		}

		bound := int(services.Unbounded)
		if parts[0] != "*" {
			b, err := strconv.Atoi(parts[0])
			if err != nil {
				log.Fatal().Str("entry", entry).Msg("malformed PRICE_TIERS bound")
			}
			bound = b
		}

		price, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			log.Fatal().Str("entry", entry).Msg("malformed PRICE_TIERS price")
		}

		tiers = append(tiers, services.PriceTier{UpperBound: bound, Price: price})
	}
	return tiers
}

func parseAmounts(raw string) []int64 {
	var amounts []int64
	for _, entry := range strings.Split(raw, ",") {
		amount, err := strconv.ParseInt(strings.TrimSpace(entry), 10, 64)
		if err != nil {
			log.Fatal().Str("entry", entry).Msg("malformed DONATION_AMOUNTS entry")
		}
		amounts = append(amounts, amount)
	}
	return amounts
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Fatal().Str("key", key).Str("value", value).Msg("invalid integer in environment")
		}
		return parsed
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			log.Fatal().Str("key", key).Str("value", value).Msg("invalid integer in environment")
		}
		return parsed
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			log.Fatal().Str("key", key).Str("value", value).Msg("invalid duration in environment")
		}
		return parsed
	}
	return fallback
}
