package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirinyoku/tablego/internal/rules"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Telemetry TelemetryConfig
	Business  BusinessConfig
	Limits    LimitsConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// DBConfig selects the store. Driver is one of postgres, mysql or sqlite.
type DBConfig struct {
	Driver   string
	Postgres PostgresConfig
	MySQLDSN string
	// SQLitePath is a file path or ":memory:".
	SQLitePath string
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode,
	)
}

// RedisConfig is optional. An empty Addr runs without cache, rate limiting,
// idempotency keys and cross-instance invalidation.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL   string
	Queue string
}

type TelemetryConfig struct {
	Endpoint string
	Insecure bool
}

type BusinessConfig struct {
	Policy rules.Policy
}

type LimitsConfig struct {
	// CreatePerMinute caps reservation creations per client IP. Zero disables it.
	CreatePerMinute int
	TablesCacheTTL  time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := dbConfig()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	policy, err := businessPolicy()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	createLimit, err := intEnv("CREATE_RATE_LIMIT", 30)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheTTL, err := time.ParseDuration(envOr("TABLES_CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid TABLES_CACHE_TTL: %w", op, err)
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("SERVER_HOST", "localhost"),
			Port: serverPort,
		},
		DB: db,
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		RabbitMQ: RabbitMQConfig{
			URL:   os.Getenv("RABBITMQ_URL"),
			Queue: envOr("RABBITMQ_QUEUE", "tablego.events"),
		},
		Telemetry: TelemetryConfig{
			Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure: os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
		},
		Business: BusinessConfig{Policy: policy},
		Limits: LimitsConfig{
			CreatePerMinute: createLimit,
			TablesCacheTTL:  cacheTTL,
		},
	}, nil
}

func dbConfig() (DBConfig, error) {
	driver := envOr("DB_DRIVER", "postgres")

	cfg := DBConfig{Driver: driver}

	switch driver {
	case "postgres":
		port, err := intEnv("POSTGRES_PORT", 5432)
		if err != nil {
			return cfg, err
		}

		maxConns, err := intEnv("POSTGRES_MAX_CONNS", 0)
		if err != nil {
			return cfg, err
		}

		pg := PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			Host:     envOr("POSTGRES_HOST", "localhost"),
			Port:     port,
			SSLMode:  envOr("POSTGRES_SSLMODE", "disable"),
			MaxConns: int32(maxConns),
		}

		if pg.User == "" {
			return cfg, fmt.Errorf("missing POSTGRES_USER")
		}
		if pg.Password == "" {
			return cfg, fmt.Errorf("missing POSTGRES_PASSWORD")
		}
		if pg.Name == "" {
			return cfg, fmt.Errorf("missing POSTGRES_DB")
		}

		cfg.Postgres = pg
	case "mysql":
		cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
		if cfg.MySQLDSN == "" {
			return cfg, fmt.Errorf("missing MYSQL_DSN")
		}
	case "sqlite":
		cfg.SQLitePath = envOr("SQLITE_PATH", "tablego.db")
	default:
		return cfg, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	return cfg, nil
}

func businessPolicy() (rules.Policy, error) {
	policy := rules.DefaultPolicy()

	if v := os.Getenv("BUSINESS_OPEN"); v != "" {
		d, err := rules.ParseClock(v)
		if err != nil {
			return policy, fmt.Errorf("invalid BUSINESS_OPEN: %w", err)
		}
		policy.Open = d
	}

	if v := os.Getenv("BUSINESS_CLOSE"); v != "" {
		d, err := rules.ParseClock(v)
		if err != nil {
			return policy, fmt.Errorf("invalid BUSINESS_CLOSE: %w", err)
		}
		policy.Close = d
	}

	if policy.Close < policy.Open {
		return policy, fmt.Errorf("BUSINESS_CLOSE is before BUSINESS_OPEN")
	}

	if v := os.Getenv("CLOSED_WEEKDAY"); v != "" {
		d, err := rules.ParseWeekday(v)
		if err != nil {
			return policy, fmt.Errorf("invalid CLOSED_WEEKDAY: %w", err)
		}
		policy.ClosedWeekday = d
	}

	if v := os.Getenv("TZ_NAME"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return policy, fmt.Errorf("invalid TZ_NAME: %w", err)
		}
		policy.Location = loc
	}

	return policy, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return n, nil
}
