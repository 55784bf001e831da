package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/campusconnect/campusconnect/internal/handlers"
	"github.com/campusconnect/campusconnect/internal/services"
	"github.com/campusconnect/campusconnect/internal/storage"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	config := loadConfig()
	if config.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("host", config.Host).
		Str("port", config.Port).
		Str("storage", config.StorageDriver).
		Msg("Starting CampusConnect server")

	store, err := openStore(config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer store.Close()
	log.Info().Str("driver", config.StorageDriver).Msg("Storage initialized")

	var images storage.ImageStore
	if config.MinIOEndpoint != "" {
		minioStorage, err := storage.NewMinIOStorage(
			config.MinIOEndpoint,
			config.MinIOPublicEndpoint,
			config.MinIOAccessKey,
			config.MinIOSecretKey,
			config.MinIOBucket,
			config.MinIOUseSSL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MinIO storage")
		}
		images = minioStorage
	} else {
		log.Warn().Msg("MINIO_ENDPOINT not set - uploads are disabled")
	}

	var events services.EventPublisher = services.NopPublisher{}
	if config.RabbitMQURL != "" {
		publisher, err := services.NewRabbitMQPublisher(config.RabbitMQURL, config.RabbitMQExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize RabbitMQ publisher")
		}
		events = publisher
	} else {
		log.Warn().Msg("RABBITMQ_URL not set - item events will not be published")
	}
	defer events.Close()

	handler := handlers.NewHandler(store, images, events)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", config.Host, config.Port),
		Handler:      handlers.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("address", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}

type Config struct {
	Host                string
	Port                string
	Debug               bool
	StorageDriver       string
	SQLitePath          string
	SeedDemoItems       bool
	RabbitMQURL         string
	RabbitMQExchange    string
	MinIOEndpoint       string
	MinIOPublicEndpoint string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOBucket         string
	MinIOUseSSL         bool
	DBHost              string
	DBPort              string
	DBUser              string
	DBPassword          string
	DBName              string
	DBSSLMode           string
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	return &Config{
		Host:                getEnv("SERVER_HOST", "0.0.0.0"),
		Port:                getEnv("SERVER_PORT", "4000"),
		Debug:               getEnv("DEBUG", "false") == "true",
		StorageDriver:       getEnv("STORAGE_DRIVER", "memory"),
		SQLitePath:          getEnv("SQLITE_PATH", "campusconnect.db"),
		SeedDemoItems:       getEnv("SEED_DEMO_ITEMS", "false") == "true",
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:    getEnv("RABBITMQ_EXCHANGE", "campus.events"),
		MinIOEndpoint:       getEnv("MINIO_ENDPOINT", ""),
		MinIOPublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", ""),
		MinIOAccessKey:      getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:      getEnv("MINIO_SECRET_KEY", "minioadmin123"),
		MinIOBucket:         getEnv("MINIO_BUCKET_NAME", "campus-uploads"),
		MinIOUseSSL:         getEnv("MINIO_USE_SSL", "false") == "true",
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "postgres"),
		DBSSLMode:           getEnv("DB_SSL_MODE", "disable"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func openStore(config *Config) (storage.Store, error) {
	switch config.StorageDriver {
	case "memory":
		if config.SeedDemoItems {
			return storage.NewMemoryStorage(storage.DemoItems(time.Now().UTC())...), nil
		}
		return storage.NewMemoryStorage(), nil
	case "postgres":
		return storage.NewPostgresStorage(
			config.DBHost,
			config.DBPort,
			config.DBUser,
			config.DBPassword,
			config.DBName,
			config.DBSSLMode,
		)
	case "sqlite":
		return storage.NewSQLiteStorage(config.SQLitePath)
	}
	return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", config.StorageDriver)
}
