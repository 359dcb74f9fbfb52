package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed by reference to every
// component that needs it. Loading never exits the process: a gateway
// with a missing setting still serves, and the affected endpoints report
// exactly which keys are absent.
type Config struct {
	RabbitMQUser     string
	RabbitMQPassword string
	RabbitMQHost     string
	RabbitMQPort     string

	S3Host      string
	S3Port      string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	RedisAddr string
	RedisDB   int

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	HTTPAddr       string
	PublicBaseURL  string
	JobRetention   time.Duration
	ArtifactURLTTL time.Duration
}

// Required key names, spelled exactly as they appear in the environment
// so configuration errors enumerate something actionable.
var (
	QueueKeys   = []string{"RABBITMQ_HOST", "RABBITMQ_PORT", "RABBITMQ_USER", "RABBITMQ_PASSWORD"}
	StorageKeys = []string{"S3_HOST", "S3_PORT", "S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY"}
	LLMKeys     = []string{"LLM_BASE_URL", "LLM_MODEL"}
)

func Load() *Config {
	if err := godotenv.Load("./.env.local"); err != nil {
		log.Println("No .env file found. Falling back to OS environment variables.")
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Invalid REDIS_DB value %q, using 0", v)
		} else {
			redisDB = n
		}
	}

	cfg := &Config{
		RabbitMQUser:     os.Getenv("RABBITMQ_USER"),
		RabbitMQPassword: os.Getenv("RABBITMQ_PASSWORD"),
		RabbitMQHost:     os.Getenv("RABBITMQ_HOST"),
		RabbitMQPort:     os.Getenv("RABBITMQ_PORT"),

		S3Host:      os.Getenv("S3_HOST"),
		S3Port:      os.Getenv("S3_PORT"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),

		RedisDB: redisDB,

		LLMBaseURL: os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMModel:   os.Getenv("LLM_MODEL"),

		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		PublicBaseURL:  envOr("PUBLIC_BASE_URL", "http://localhost:8080"),
		JobRetention:   durationHours("JOB_RETENTION_HOURS", 24),
		ArtifactURLTTL: durationMinutes("ARTIFACT_URL_TTL_MINUTES", 60),
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisAddr = host + ":" + envOr("REDIS_PORT", "6379")
	}

	return cfg
}

// Missing returns the subset of keys that have no value set.
func (c *Config) Missing(keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if c.value(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func (c *Config) HasQueue() bool   { return len(c.Missing(QueueKeys...)) == 0 }
func (c *Config) HasStorage() bool { return len(c.Missing(StorageKeys...)) == 0 }
func (c *Config) HasRedis() bool   { return c.RedisAddr != "" }
func (c *Config) HasLLM() bool     { return len(c.Missing(LLMKeys...)) == 0 }

// RabbitMQURL assembles the broker DSN. Only meaningful when HasQueue.
func (c *Config) RabbitMQURL() string {
	return "amqp://" + c.RabbitMQUser + ":" + c.RabbitMQPassword + "@" + c.RabbitMQHost + ":" + c.RabbitMQPort + "/"
}

// S3Endpoint is the host:port pair the minio client expects.
func (c *Config) S3Endpoint() string {
	return c.S3Host + ":" + c.S3Port
}

func (c *Config) value(key string) string {
	switch key {
	case "RABBITMQ_HOST":
		return c.RabbitMQHost
	case "RABBITMQ_PORT":
		return c.RabbitMQPort
	case "RABBITMQ_USER":
		return c.RabbitMQUser
	case "RABBITMQ_PASSWORD":
		return c.RabbitMQPassword
	case "S3_HOST":
		return c.S3Host
	case "S3_PORT":
		return c.S3Port
	case "S3_BUCKET":
		return c.S3Bucket
	case "S3_ACCESS_KEY":
		return c.S3AccessKey
	case "S3_SECRET_KEY":
		return c.S3SecretKey
	case "LLM_BASE_URL":
		return c.LLMBaseURL
	case "LLM_MODEL":
		return c.LLMModel
	default:
		return ""
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationHours(key string, fallback int) time.Duration {
	n := fallback
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			log.Printf("Invalid %s value %q, using %d", key, v, fallback)
		} else {
			n = parsed
		}
	}
	return time.Duration(n) * time.Hour
}

func durationMinutes(key string, fallback int) time.Duration {
	n := fallback
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			log.Printf("Invalid %s value %q, using %d", key, v, fallback)
		} else {
			n = parsed
		}
	}
	return time.Duration(n) * time.Minute
}
