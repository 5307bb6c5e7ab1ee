package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"finsent-backend/internal/config"
	"finsent-backend/internal/database"
	"finsent-backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	loadEnv(configPath)
}

// LoadEnvFileFrom is LoadEnvFile for commands that define their own flags
// and have already parsed them.
func LoadEnvFileFrom(configPath string) {
	loadEnv(configPath)
}

func loadEnv(configPath string) {
	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func SetupLogging(level string) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		log.Fatalf("error parsing LOG_LEVEL: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// OpenDatabase returns nil when url is empty; history and run recording are
// optional.
func OpenDatabase(url string) *gorm.DB {
	if url == "" {
		slog.Info("DATABASE_URL not set, persistence disabled")
		return nil
	}

	db, err := database.NewDatabase(url)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return db
}

func CreateStorageProvider(ctx context.Context, cfg config.S3Config) *storage.S3Provider {
	provider, err := storage.NewS3Provider(ctx, cfg.ProviderConfig())
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}
	return provider
}

// FetchCheckpoint downloads every object under uri into dir. Files already
// in dir are overwritten.
func FetchCheckpoint(ctx context.Context, provider storage.Provider, uri, dir string) error {
	loc, err := storage.ParseURI(uri)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("error creating checkpoint dir %s: %w", dir, err)
	}

	n, err := storage.DownloadPrefix(ctx, provider, loc, dir)
	if err != nil {
		return fmt.Errorf("error downloading checkpoint from %s: %w", uri, err)
	}

	slog.Info("checkpoint downloaded", "source", uri, "dir", dir, "files", n)
	return nil
}
