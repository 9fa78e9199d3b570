package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	StoreBackend string
	DatabaseURL  string

	RedisURL     string
	RedisLockTTL time.Duration

	MongoURI      string
	MongoDatabase string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	JaegerAddress string
	ServiceName   string

	LogLevel     string
	LogFormat    string
	LogFile      string
	LogMaxSizeMB int

	// scheduler
	TickInterval      time.Duration
	ReconcileInterval time.Duration

	NotifyQueueSize int
	NotifyWorkers   int
}

// FromEnv reads the configuration from the environment. A .env file in the
// working directory is loaded first; real environment variables win.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		StoreBackend:  envDefault("STORE_BACKEND", BackendPostgres),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		MongoURI:      strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase: envDefault("MONGO_DATABASE", "stay"),
		SMTPHost:      strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPUser:      strings.TrimSpace(os.Getenv("SMTP_USER")),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:      strings.TrimSpace(os.Getenv("SMTP_FROM")),
		JaegerAddress: strings.TrimSpace(os.Getenv("JAEGER_ADDRESS")),
		ServiceName:   envDefault("SERVICE_NAME", "staysched"),
		LogLevel:      envDefault("LOG_LEVEL", "info"),
		LogFormat:     envDefault("LOG_FORMAT", "text"),
		LogFile:       strings.TrimSpace(os.Getenv("LOG_FILE")),
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case BackendMemory:
	default:
		return cfg, fmt.Errorf("invalid STORE_BACKEND %q (want postgres or memory)", cfg.StoreBackend)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return cfg, fmt.Errorf("invalid LOG_FORMAT %q (want text or json)", cfg.LogFormat)
	}
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		return cfg, fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}

	var err error
	if cfg.SMTPPort, err = positiveInt("SMTP_PORT", 587); err != nil {
		return cfg, err
	}
	if cfg.LogMaxSizeMB, err = positiveInt("LOG_MAX_SIZE_MB", 10); err != nil {
		return cfg, err
	}
	if cfg.NotifyQueueSize, err = positiveInt("NOTIFY_QUEUE_SIZE", 256); err != nil {
		return cfg, err
	}
	if cfg.NotifyWorkers, err = positiveInt("NOTIFY_WORKERS", 2); err != nil {
		return cfg, err
	}
	if cfg.RedisLockTTL, err = seconds("REDIS_LOCK_TTL_SECONDS", 10); err != nil {
		return cfg, err
	}
	if cfg.TickInterval, err = seconds("SCHED_TICK_SECONDS", 1); err != nil {
		return cfg, err
	}
	if cfg.ReconcileInterval, err = seconds("RECONCILE_INTERVAL_SECONDS", 300); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envDefault(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	return v
}

func positiveInt(k string, d int) (int, error) {
	n, err := strconv.Atoi(envDefault(k, strconv.Itoa(d)))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s", k)
	}
	return n, nil
}

func seconds(k string, d int) (time.Duration, error) {
	n, err := positiveInt(k, d)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
