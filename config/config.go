package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Env holds all environment-derived settings for the backend and the
// worker. A .env file in the working directory is loaded first when
// present.
type Env struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream and consumer group carrying job submission events.
	JobStream   string `env:"JOB_STREAM" envDefault:"training-jobs"`
	JobGroup    string `env:"JOB_GROUP" envDefault:"training-workers"`
	JobConsumer string `env:"JOB_CONSUMER"`

	// Queued records older than RequeueAfter get their event
	// re-published by the requeue sweep.
	RequeueAfter  time.Duration `env:"REQUEUE_AFTER" envDefault:"10m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	// Pending stream entries idle longer than ReclaimAfter are taken
	// over from their original consumer. Must exceed TrainTimeout so an
	// entry is never reclaimed while its job is still training.
	ReclaimAfter time.Duration `env:"RECLAIM_AFTER" envDefault:"15m"`

	// Training command run by the worker for each consumed job.
	TrainCommand string        `env:"TRAIN_COMMAND" envDefault:"train-model"`
	TrainTimeout time.Duration `env:"TRAIN_TIMEOUT" envDefault:"10m"`

	// MinIO artifact storage is optional; upload/artifact endpoints
	// report 503 when it is not configured.
	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"training-artifacts"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

// Config holds all configuration and shared clients for the backend
type Config struct {
	Env Env

	// Database
	DB *gorm.DB

	// Queue transport
	Redis *redis.Client

	// Artifact storage (nil when MINIO_ENDPOINT is unset)
	Minio *minio.Client
}

// New creates a new configuration instance and connects the shared
// clients. Postgres and Redis are required; MinIO is optional.
func New() (*Config, error) {
	// Same behavior as the worker's dotenv loading: a missing .env
	// file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(&cfg.Env); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := cfg.initRedis(); err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	if err := cfg.initMinio(); err != nil {
		return nil, fmt.Errorf("failed to initialize minio: %w", err)
	}

	log.Println("Configuration initialized successfully")
	return cfg, nil
}

// initDatabase initializes the database connection with optimized settings
func (c *Config) initDatabase() error {
	db, err := gorm.Open(postgres.Open(c.Env.DatabaseURL), &gorm.Config{
		// Optimize query performance
		PrepareStmt: true,
		// Skip default transaction for better performance
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pooling for better performance
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto-migrate database schema
	if err := db.AutoMigrate(&Job{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	c.DB = db
	log.Println("Database initialized successfully")
	return nil
}

// initRedis initializes the Redis client backing the job stream
func (c *Config) initRedis() error {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Env.RedisAddr,
		Password: c.Env.RedisPassword,
		DB:       c.Env.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis at %s: %w", c.Env.RedisAddr, err)
	}

	c.Redis = client
	log.Printf("Redis client initialized (addr: %s, stream: %s)", c.Env.RedisAddr, c.Env.JobStream)
	return nil
}

// initMinio initializes the MinIO client when an endpoint is configured
func (c *Config) initMinio() error {
	if c.Env.MinioEndpoint == "" {
		log.Println("Warning: MINIO_ENDPOINT not set - artifact storage disabled")
		return nil
	}

	client, err := minio.New(c.Env.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Env.MinioAccessKey, c.Env.MinioSecretKey, ""),
		Secure: c.Env.MinioUseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	c.Minio = client
	log.Printf("MinIO client initialized (endpoint: %s, bucket: %s)", c.Env.MinioEndpoint, c.Env.MinioBucket)
	return nil
}

// Close closes all connections
func (c *Config) Close() {
	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
}
