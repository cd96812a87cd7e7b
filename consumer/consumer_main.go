package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/annolab/annolab-platform/config"
	"github.com/annolab/annolab-platform/consumer/worker"
	infraPkg "github.com/annolab/annolab-platform/infra"
	"github.com/annolab/annolab-platform/repository"
	"github.com/joho/godotenv"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobConsumer := worker.NewJobConsumer(infra.RabbitMQ.Channel, infra, repo, cfg)
	if err := jobConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start job consumer: %v", err)
		log.Fatalf("Failed to start job consumer: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	infra.Telemetry.Shutdown(context.Background())

	infra.Logger.InfoWithContextf(ctx, "Consumer exited properly")
}
