package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Logger  LoggerConfig
	Store   StoreConfig
	JWT     JWTConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	History HistoryConfig
}

type ServerConfig struct {
	AppEnv         string
	Port           string
	ServiceName    string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type LoggerConfig struct {
	Level string
}

type StoreConfig struct {
	Driver      string // "mongo" or "memory"
	MongoURI    string
	MongoDB     string
	MaxAttempts int
}

type JWTConfig struct {
	Secret      string
	AdminSecret string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Enabled  bool
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type HistoryConfig struct {
	PerPage int
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:         getEnv("APP_ENV", "development"),
			Port:           getEnv("PORT", "8080"),
			ServiceName:    getEnv("SERVICE_NAME", "repuestos-backoffice"),
			AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOGGER_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", "mongo"),
			MongoURI:    getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			MongoDB:     getEnv("MONGODB_NAME", "repuestos"),
			MaxAttempts: getEnvInt("TX_MAX_ATTEMPTS", 5),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			AdminSecret: getEnv("ADMIN_SECRET_KEY", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 300)) * time.Second,
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_SALES", "sales.events"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		History: HistoryConfig{
			PerPage: getEnvInt("HISTORY_PER_PAGE", 10),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Server.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
