package application

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"cityreport/internal/audit"
)

// Store backends selectable at startup.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config defines alert-module configuration.
type Config struct {
	Backend              string `yaml:"backend"`
	MongoURI             string `yaml:"mongo_uri"`
	MongoDatabase        string `yaml:"mongo_database"`
	AlertsCollection     string `yaml:"alerts_collection"`
	SystemLogsCollection string `yaml:"system_logs_collection"`
	ActiveLimit          int    `yaml:"active_limit"`
	AuditCapacity        int    `yaml:"audit_capacity"`
}

// LoadConfig loads config from env, with an optional yaml overlay
// pointed to by ALERTS_CONFIG.
func LoadConfig() (Config, error) {
	cfg := Config{
		Backend:              getenvDefault("ALERTS_BACKEND", BackendMongo),
		MongoURI:             getenvDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:        getenvDefault("MONGO_DB_NAME", "cityreport"),
		AlertsCollection:     getenvDefault("ALERTS_COLLECTION", "alerts"),
		SystemLogsCollection: getenvDefault("SYSTEM_LOGS_COLLECTION", "system_logs"),
		ActiveLimit:          getenvIntDefault("ALERTS_ACTIVE_LIMIT", DefaultActiveLimit),
		AuditCapacity:        getenvIntDefault("AUDIT_CAPACITY", audit.DefaultCapacity),
	}

	if path := os.Getenv("ALERTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	switch cfg.Backend {
	case BackendMongo, BackendPostgres, BackendMemory:
	default:
		return cfg, fmt.Errorf("alerts config: unknown backend %q", cfg.Backend)
	}
	if cfg.ActiveLimit <= 0 {
		cfg.ActiveLimit = DefaultActiveLimit
	}
	if cfg.AuditCapacity <= 0 {
		cfg.AuditCapacity = audit.DefaultCapacity
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
