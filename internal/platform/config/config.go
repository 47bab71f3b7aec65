// Package config centralizes environment configuration so main stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures runtime configuration for the API server and worker.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTL    time.Duration
	WorkerToken   string
	JWTSigningKey string
	CallbackURL   string

	StorageRoot string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool

	WebhookWorkers int
	WebhookTimeout time.Duration

	QueueConcurrency int
}

const (
	defaultAddr           = ":8080"
	defaultSessionTTL     = 900 * time.Second
	defaultStorageRoot    = "/var/lib/kyc/evidence"
	defaultWebhookWorkers = 4
	defaultWebhookTimeout = 10 * time.Second
	defaultConcurrency    = 4
)

// FromEnv builds a Config from environment variables with development
// defaults. Production deployments must override JWT_SIGNING_KEY and
// KYC_WORKER_TOKEN.
func FromEnv() Config {
	return Config{
		Addr:          readEnv("KYC_ADDR", defaultAddr),
		DatabaseURL:   os.Getenv("KYC_DATABASE_URL"),
		RedisAddr:     readEnv("KYC_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("KYC_REDIS_PASSWORD"),
		RedisDB:       readInt("KYC_REDIS_DB", 0),

		SessionTTL:    readDuration("KYC_SESSION_TTL", defaultSessionTTL),
		WorkerToken:   os.Getenv("KYC_WORKER_TOKEN"),
		JWTSigningKey: readEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		CallbackURL:   readEnv("KYC_CALLBACK_URL", "http://localhost:8080"),

		StorageRoot: readEnv("KYC_STORAGE_ROOT", defaultStorageRoot),

		S3Endpoint:  os.Getenv("KYC_S3_ENDPOINT"),
		S3AccessKey: os.Getenv("KYC_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("KYC_S3_SECRET_KEY"),
		S3Bucket:    readEnv("KYC_S3_BUCKET", "kyc-evidence"),
		S3Region:    os.Getenv("KYC_S3_REGION"),
		S3UseSSL:    os.Getenv("KYC_S3_USE_SSL") == "true",

		WebhookWorkers: readInt("KYC_WEBHOOK_WORKERS", defaultWebhookWorkers),
		WebhookTimeout: readDuration("KYC_WEBHOOK_TIMEOUT", defaultWebhookTimeout),

		QueueConcurrency: readInt("KYC_QUEUE_CONCURRENCY", defaultConcurrency),
	}
}

// UseS3 reports whether evidence should go to object storage instead of the
// local filesystem.
func (c Config) UseS3() bool {
	return c.S3Endpoint != ""
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func readInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func readDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
