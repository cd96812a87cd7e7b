package infra

import (
	"github.com/annolab/annolab-platform/config"
	"github.com/annolab/annolab-platform/infra/produce"
)

type Infra struct {
	Redis            *RedisClient
	Postgres         *PostgresClient
	Logger           *LoggerClient
	RabbitMQ         *RabbitMQClient
	Minio            *MinioClient
	InferenceService *InferenceService
	TrainingService  *TrainingService
	Produce          *produce.Produce
	Telemetry        *Telemetry
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	telemetry := InitTelemetry(cfg.EnvConfig)

	logger := InitLoggerClient(cfg.EnvConfig)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	redis := InitRedisClient(cfg.EnvConfig)
	if redis == nil {
		panic("Failed to initialize Redis service")
	}

	postgres := InitPostgresClient(cfg.EnvConfig)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	rabbitMQ := InitRabbitMQClient(cfg.EnvConfig)
	if rabbitMQ == nil {
		panic("Failed to initialize RabbitMQ service")
	}

	minio := InitMinioClient(cfg.EnvConfig)
	if minio == nil {
		panic("Failed to initialize MinIO service")
	}

	inferenceService := InitInferenceService(cfg.EnvConfig)
	if inferenceService == nil {
		panic("Failed to initialize Inference service")
	}

	trainingService := InitTrainingService(cfg.EnvConfig)
	if trainingService == nil {
		panic("Failed to initialize Training service")
	}

	produceService := produce.InitProduce(rabbitMQ.Channel)
	if produceService == nil {
		panic("Failed to initialize Produce service")
	}

	infraInstance = &Infra{
		Redis:            redis,
		Postgres:         postgres,
		Logger:           logger,
		RabbitMQ:         rabbitMQ,
		Minio:            minio,
		InferenceService: inferenceService,
		TrainingService:  trainingService,
		Produce:          produceService,
		Telemetry:        telemetry,
	}

	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}
