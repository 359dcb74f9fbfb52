package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"casecruncher/internal/agents"
	"casecruncher/internal/config"
	"casecruncher/internal/domain/usecase"
	"casecruncher/internal/repository/rabbitmq"
	s3repo "casecruncher/internal/repository/s3"
	s3client "casecruncher/pkg/client/s3"
)

func main() {
	cfg := config.Load()

	// The worker is useless without its collaborators; unlike the
	// gateway it refuses to start degraded.
	var missing []string
	missing = append(missing, cfg.Missing(config.QueueKeys...)...)
	missing = append(missing, cfg.Missing(config.StorageKeys...)...)
	missing = append(missing, cfg.Missing(config.LLMKeys...)...)
	if len(missing) > 0 {
		log.Fatalf("missing required configuration: %v", missing)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	storage, err := s3client.NewS3Client(cfg.S3Endpoint(), cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
	if err != nil {
		log.Fatalf("failed to init s3 client: %v", err)
	}
	artifacts := s3repo.NewArtifactRepo(storage)

	conn, err := amqp.Dial(cfg.RabbitMQURL())
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	statusPub, err := rabbitmq.NewPublisher(conn, rabbitmq.Exchange, rabbitmq.StatusRoutingKey)
	if err != nil {
		log.Fatalf("failed to init status publisher: %v", err)
	}

	runner := agents.NewRunner(agents.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel))
	feedback := usecase.NewFeedbackBoard()
	pipeline := usecase.NewPipelineUseCase(artifacts, statusPub, runner, feedback, cfg.ArtifactURLTTL)

	jobConsumer, err := rabbitmq.NewConsumer(conn, rabbitmq.Exchange, rabbitmq.JobsRoutingKey, rabbitmq.JobsQueue, rabbitmq.DeadLetterExchange)
	if err != nil {
		log.Fatalf("failed to init job consumer: %v", err)
	}
	cmdConsumer, err := rabbitmq.NewConsumer(conn, rabbitmq.Exchange, rabbitmq.CommandsRoutingKey, rabbitmq.CommandsQueue, "")
	if err != nil {
		log.Fatalf("failed to init command consumer: %v", err)
	}

	go func() {
		if err := jobConsumer.Start(ctx, pipeline.HandleJob); err != nil {
			log.Fatalf("job consumer stopped with error: %v", err)
		}
	}()
	go func() {
		if err := cmdConsumer.Start(ctx, feedback.HandleCommand); err != nil {
			log.Fatalf("command consumer stopped with error: %v", err)
		}
	}()

	log.Println("Worker service started")
	<-sigCh
	log.Println("Shutting down worker service...")
	cancel()
	time.Sleep(time.Second)
}
