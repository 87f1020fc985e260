package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	PostsDir  string
	OutputDir string

	PostsKeyword string
	PostsSource  string
	TablesPath   string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MongoTimeoutMs  int

	HistoryPath   string
	HistoryCutoff time.Time

	ExtractWorkers         int
	SkipInvalidPosts       bool
	StrictDuplicateParties bool

	WatchIntervalSec int
	WatchAutoExport  bool

	LogLevel       string
	LogDevelopment bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cutoff, err := getEnvDate("HISTORY_CUTOFF", "2020-01-10")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		PostsDir:  getEnv("POSTS_DIR", filepath.Join(cwd, "data", "posts")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		PostsKeyword: getEnv("POSTS_KEYWORD", "Westminster voting intention"),
		PostsSource:  strings.ToLower(getEnv("POSTS_SOURCE", "files")),
		TablesPath:   getEnv("TABLES_PATH", ""),

		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "twitter"),
		MongoCollection: getEnv("MONGO_COLLECTION", "britainelects"),
		MongoTimeoutMs:  getEnvInt("MONGO_TIMEOUT_MS", 30000),

		HistoryPath:   getEnv("HISTORY_PATH", filepath.Join(cwd, "data", "uk_polling_report_historical.csv")),
		HistoryCutoff: cutoff,

		ExtractWorkers:         getEnvInt("EXTRACT_WORKERS", 1),
		SkipInvalidPosts:       getEnvBool("SKIP_INVALID_POSTS", false),
		StrictDuplicateParties: getEnvBool("STRICT_DUPLICATE_PARTIES", false),

		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 300),
		WatchAutoExport:  getEnvBool("WATCH_AUTO_EXPORT", true),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogDevelopment: getEnvBool("LOG_DEVELOPMENT", false),
	}
	if cfg.ExtractWorkers < 1 {
		cfg.ExtractWorkers = 1
	}
	if cfg.WatchIntervalSec < 1 {
		cfg.WatchIntervalSec = 1
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required setting: %s", name)
	}
	return nil
}

// LoadTables returns the embedded lookup tables, or the YAML file named by
// TABLES_PATH when set.
func (c Config) LoadTables() (*Tables, error) {
	if strings.TrimSpace(c.TablesPath) == "" {
		return DefaultTables()
	}
	return LoadTablesFile(c.TablesPath)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvDate(key, fallback string) (time.Time, error) {
	value := strings.TrimSpace(getEnv(key, fallback))
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}
