package config

import (
	"os"
	"strconv"
	"strings"
)

type EnvConfig struct {
	Postgres struct {
		Host     string
		Database string
		Username string
		Password string
		Port     string
	}
	JWT struct {
		SecretKey string
		Expire    int
	}
	CORS struct {
		AllowDomains string
	}
	Redis struct {
		Password string
		Database int
		Host     string
		Port     string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		UseSSL       bool
		Bucket       string
	}
	Storage struct {
		WorkDir string // local scratch space for training runs and exports
	}
	ExternalService struct {
		InferenceServiceURL string
		TrainingServiceURL  string
	}
	Telemetry struct {
		OTLPEndpoint string
		ServiceName  string
	}
	Environment struct {
		Mode string
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.Host = getEnv("PGPOOL_HOST", "localhost")
	config.Postgres.Database = getEnv("PGPOOL_DB", "annolab")
	config.Postgres.Username = getEnv("PGPOOL_USER", "postgres")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = getEnv("PGPOOL_PORT", "5432")

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	if val := os.Getenv("JWT_EXPIRE"); val != "" {
		config.JWT.Expire, _ = strconv.Atoi(val)
	} else {
		config.JWT.Expire = 3600 * 24 * 7
	}

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")

	// Redis
	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.Host = getEnv("REDIS_HOST", "localhost")
	config.Redis.Port = getEnv("REDIS_PORT", "6379")

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")

	// MinIO
	config.Minio.Endpoint = getEnv("MINIO_ENDPOINT", "localhost:9000")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.UseSSL = os.Getenv("MINIO_USE_SSL") == "true"
	config.Minio.Bucket = getEnv("MINIO_BUCKET", "annolab-storage")

	config.Storage.WorkDir = getEnv("WORK_DIR", "/tmp/annolab")

	config.ExternalService.InferenceServiceURL = getEnv("INFERENCE_SERVICE_URL", "http://localhost:8090")
	config.ExternalService.TrainingServiceURL = getEnv("TRAINING_SERVICE_URL", "http://localhost:8091")

	// OpenTelemetry
	endpoint := getEnv("OTLP_ENDPOINT", "localhost:4318")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	config.Telemetry.OTLPEndpoint = endpoint
	config.Telemetry.ServiceName = getEnv("SERVICE_NAME", "annolab-platform")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")

	return &config
}
