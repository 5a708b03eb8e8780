package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/path-ml/path-backend/config"
	"github.com/path-ml/path-backend/queue"
	"github.com/path-ml/path-backend/repository"
	"github.com/path-ml/path-backend/trainer"
	"github.com/path-ml/path-backend/worker"
)

func main() {
	log.Println("Starting training job worker")

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	defer cfg.Close()

	consumerName := cfg.Env.JobConsumer
	if consumerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "worker"
		}
		consumerName = hostname
	}

	consumer := queue.NewConsumer(cfg.Redis, cfg.Env.JobStream, cfg.Env.JobGroup, consumerName, cfg.Env.ReclaimAfter)

	setupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := consumer.EnsureGroup(setupCtx); err != nil {
		cancel()
		log.Fatalf("Failed to create consumer group: %v", err)
	}
	cancel()

	repo := repository.NewRepository(cfg.DB)

	cmdTrainer := trainer.NewCommand(cfg.Env.TrainCommand)
	cmdTrainer.Timeout = cfg.Env.TrainTimeout

	w := worker.New(consumer, repo, cmdTrainer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Consuming stream %s as %s/%s", cfg.Env.JobStream, cfg.Env.JobGroup, consumerName)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Worker stopped with error: %v", err)
	}
	log.Println("Worker stopped gracefully")
}
