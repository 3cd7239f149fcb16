// Copyright 2025 Covenant Protocol
//
// Node Configuration
// Environment-variable loader for the validator node shell

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for a covenant validator node
type Config struct {
	// Node identification
	NodeID   string
	NodeRole string

	// Store backend: "memory", "kvdb", or "postgres"
	StoreBackend string
	KVDataDir    string

	// Database configuration (postgres backend)
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DatabaseRequired  bool

	// Ed25519 key configuration
	KeyPath string
	DataDir string

	// Anchoring
	AnchorEnabled         bool
	EthereumURL           string
	EthChainID            int64
	EthPrivateKey         string
	AnchorContractAddress string
	AnchorBatchInterval   time.Duration

	// Audit trail (Firestore)
	FirestoreEnabled  bool
	FirebaseProjectID string
	CredentialsFile   string

	// Observability
	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// Load reads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{
		NodeID:   getEnv("NODE_ID", "covenant-node-1"),
		NodeRole: getEnv("NODE_ROLE", "validator"),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		KVDataDir:    getEnv("KV_DATA_DIR", "./data/kv"),

		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		DatabaseRequired:  getEnvBool("DATABASE_REQUIRED", false),

		KeyPath: getEnv("ED25519_KEY_PATH", ""),
		DataDir: getEnv("DATA_DIR", "./data"),

		AnchorEnabled:         getEnvBool("ANCHOR_ENABLED", false),
		EthereumURL:           getEnv("ETHEREUM_URL", ""),
		EthChainID:            int64(getEnvInt("ETH_CHAIN_ID", 11155111)),
		EthPrivateKey:         getEnv("ETH_PRIVATE_KEY", ""),
		AnchorContractAddress: getEnv("ANCHOR_CONTRACT_ADDRESS", ""),
		AnchorBatchInterval:   time.Duration(getEnvInt("ANCHOR_BATCH_INTERVAL_SECONDS", 900)) * time.Second,

		FirestoreEnabled:  getEnvBool("FIRESTORE_ENABLED", false),
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		CredentialsFile:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory", "kvdb", "postgres":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (expected memory, kvdb, or postgres)", c.StoreBackend)
	}
	if c.StoreBackend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres store backend")
	}
	if c.AnchorEnabled {
		if c.EthereumURL == "" {
			return fmt.Errorf("ETHEREUM_URL is required when anchoring is enabled")
		}
		if c.AnchorContractAddress == "" {
			return fmt.Errorf("ANCHOR_CONTRACT_ADDRESS is required when anchoring is enabled")
		}
	}
	if c.FirestoreEnabled && c.FirebaseProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required when the audit trail is enabled")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
