package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Neo4j    Neo4jConfig
	Valkey   ValkeyConfig
	Crypto   CryptoConfig
	Query    QueryConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// Neo4jConfig describes the shared default graph connection. Scope-dedicated
// connections come from the scope registry instead.
type Neo4jConfig struct {
	URI            string
	User           string
	Password       string
	ConnectTimeout time.Duration
	MaxRetryTime   time.Duration
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

// CryptoConfig holds the process-wide credential key (base64-encoded, 16/24/32
// bytes decoded). Empty disables scope-dedicated connections.
type CryptoConfig struct {
	CredentialKey string
}

type QueryConfig struct {
	MaxRows        int
	DefaultLimit   int
	SchemaCacheTTL time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "graphlens"),
			Password: getEnv("DB_PASSWORD", "graphlens"),
			Name:     getEnv("DB_NAME", "graphlens"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Neo4j: Neo4jConfig{
			URI:            getEnv("NEO4J_URI", "bolt://localhost:7687"),
			User:           getEnv("NEO4J_USER", "neo4j"),
			Password:       getEnv("NEO4J_PASSWORD", "graphlens"),
			ConnectTimeout: time.Duration(getEnvInt("NEO4J_CONNECT_TIMEOUT_SECS", 5)) * time.Second,
			MaxRetryTime:   time.Duration(getEnvInt("NEO4J_MAX_RETRY_SECS", 5)) * time.Second,
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		Crypto: CryptoConfig{
			CredentialKey: getEnv("CREDENTIAL_KEY", ""),
		},
		Query: QueryConfig{
			MaxRows:        getEnvInt("QUERY_MAX_ROWS", 1000),
			DefaultLimit:   getEnvInt("QUERY_DEFAULT_LIMIT", 100),
			SchemaCacheTTL: time.Duration(getEnvInt("SCHEMA_CACHE_TTL_SECS", 300)) * time.Second,
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
