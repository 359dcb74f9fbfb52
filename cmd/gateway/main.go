package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"

	"casecruncher/internal/config"
	v1 "casecruncher/internal/controller/http/v1"
	"casecruncher/internal/domain/usecase"
	"casecruncher/internal/repository/rabbitmq"
	s3repo "casecruncher/internal/repository/s3"
	"casecruncher/internal/store"
	redisClient "casecruncher/pkg/client/redis"
	s3client "casecruncher/pkg/client/s3"
	"casecruncher/pkg/middleware"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobStore := store.New(cfg.JobRetention)
	go jobStore.StartSweeper(ctx, time.Hour)

	// Queue wiring is optional: without it the gateway still serves, and
	// submit reports the missing keys instead of crashing at boot.
	var jobPub, cmdPub usecase.Publisher
	if cfg.HasQueue() {
		conn, err := amqp.Dial(cfg.RabbitMQURL())
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer conn.Close()

		jobPub, err = rabbitmq.NewPublisher(conn, rabbitmq.Exchange, rabbitmq.JobsRoutingKey)
		if err != nil {
			log.Fatalf("failed to init job publisher: %v", err)
		}
		cmdPub, err = rabbitmq.NewPublisher(conn, rabbitmq.Exchange, rabbitmq.CommandsRoutingKey)
		if err != nil {
			log.Fatalf("failed to init command publisher: %v", err)
		}

		statusConsumer, err := rabbitmq.NewConsumer(conn, rabbitmq.Exchange, rabbitmq.StatusRoutingKey, rabbitmq.StatusQueue, "")
		if err != nil {
			log.Fatalf("failed to init status consumer: %v", err)
		}
		ingestor := usecase.NewStatusIngestor(jobStore)
		go func() {
			if err := statusConsumer.Start(ctx, ingestor.Handle); err != nil {
				log.Fatalf("status consumer stopped with error: %v", err)
			}
		}()
	} else {
		log.Printf("queue not configured, missing: %v", cfg.Missing(config.QueueKeys...))
	}

	var artifacts usecase.ArtifactReader
	if cfg.HasStorage() {
		storage, err := s3client.NewS3Client(cfg.S3Endpoint(), cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
		if err != nil {
			log.Fatalf("failed to init s3 client: %v", err)
		}
		artifacts = s3repo.NewArtifactRepo(storage)
	} else {
		log.Printf("artifact store not configured, missing: %v", cfg.Missing(config.StorageKeys...))
	}

	uc := usecase.NewJobUseCase(jobStore, artifacts, jobPub, cmdPub, cfg)
	handler := v1.NewJobHandler(uc)

	r := gin.Default()

	if cfg.HasRedis() {
		client, err := redisClient.NewRedisClient(ctx, redisClient.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err != nil {
			log.Printf("redis unavailable, rate limiting disabled: %v", err)
		} else {
			r.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
				RedisClient: client,
				Limit:       10,
				Window:      time.Second,
				KeyPrefix:   "rl:",
			}))
		}
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": jobStore.Len()})
	})
	handler.Register(r.Group("/api/v1"))

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server stopped: %v", err)
	}
}
