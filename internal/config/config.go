package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"` // Full connection string; takes precedence over the discrete fields
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// NATSConfig holds NATS JetStream configuration for change notifications.
// Notifications are disabled when URL is empty.
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// EthereumConfig holds ledger node and marketplace contract configuration
type EthereumConfig struct {
	RPCURL               string        `mapstructure:"rpc_url"`
	ChainID              uint64        `mapstructure:"chain_id"`
	ContractAddress      string        `mapstructure:"contract_address"`
	StartBlock           uint64        `mapstructure:"start_block"`
	MaxBlockRange        uint64        `mapstructure:"max_block_range"`
	BlockHeadTTL         time.Duration `mapstructure:"block_head_ttl"`
	BlockHeadStaleWindow time.Duration `mapstructure:"block_head_stale_window"`
	TimestampCacheSize   int           `mapstructure:"timestamp_cache_size"`
}

// LoopConfig holds the indexing loop timings
type LoopConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`  // Pause after a completed range
	IdleInterval    time.Duration `mapstructure:"idle_interval"`  // Pause when the checkpoint is at the chain head
	RetryInterval   time.Duration `mapstructure:"retry_interval"` // Pause before retrying a failed range
	MetadataWorkers int           `mapstructure:"metadata_workers"`
}

// MetadataConfig holds off-chain metadata resolver configuration
type MetadataConfig struct {
	IPFSGateway string        `mapstructure:"ipfs_gateway"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds status HTTP server configuration
type ServerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// IndexerConfig holds configuration for the market indexer
type IndexerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	Ethereum   EthereumConfig `mapstructure:"ethereum"`
	Indexer    LoopConfig     `mapstructure:"indexer"`
	Metadata   MetadataConfig `mapstructure:"metadata"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Server     ServerConfig   `mapstructure:"server"`
}

// CheckpointToolConfig holds configuration for the checkpoint operator tool
type CheckpointToolConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
}

// LoadIndexerConfig loads configuration for the market indexer
func LoadIndexerConfig(configFile string, envPath string) (*IndexerConfig, error) {
	v := configureViper("indexer", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("ethereum.start_block", 0)
	v.SetDefault("ethereum.max_block_range", 50)
	v.SetDefault("ethereum.block_head_ttl", "12s")
	v.SetDefault("ethereum.block_head_stale_window", "60s")
	v.SetDefault("ethereum.timestamp_cache_size", 4096)
	v.SetDefault("indexer.poll_interval", "100ms")
	v.SetDefault("indexer.idle_interval", "30s")
	v.SetDefault("indexer.retry_interval", "30s")
	v.SetDefault("indexer.metadata_workers", 4)
	v.SetDefault("metadata.ipfs_gateway", "https://gateway.pinata.cloud/ipfs/")
	v.SetDefault("metadata.timeout", "30s")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "MARKET_EVENTS")
	v.SetDefault("nats.subject_prefix", "market")
	v.SetDefault("nats.connection_name", "market-indexer")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config IndexerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadCheckpointToolConfig loads configuration for the checkpoint operator tool
func LoadCheckpointToolConfig(configFile string, envPath string) (*CheckpointToolConfig, error) {
	v := configureViper("checkpoint", configFile, envPath)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 2)
	v.SetDefault("database.max_idle_conns", 1)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config CheckpointToolConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate checks the fields the indexer cannot start without
func (c *IndexerConfig) Validate() error {
	if c.Ethereum.RPCURL == "" {
		return errors.New("ethereum.rpc_url is required")
	}
	if c.Ethereum.ContractAddress == "" {
		return errors.New("ethereum.contract_address is required")
	}
	if c.Ethereum.ChainID == 0 {
		return errors.New("ethereum.chain_id is required")
	}
	if c.Ethereum.MaxBlockRange == 0 {
		return errors.New("ethereum.max_block_range must be greater than zero")
	}
	if c.Database.URL == "" && c.Database.Host == "" {
		return errors.New("database.url or database.host is required")
	}
	if c.Metadata.IPFSGateway == "" {
		return errors.New("metadata.ipfs_gateway is required")
	}
	if c.Metadata.Timeout <= 0 {
		return errors.New("metadata.timeout must be greater than zero")
	}
	return nil
}

// readConfig reads the config file, tolerating its absence so that
// environment-only deployments work
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("MARKET_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.url",
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Ethereum
		"ethereum.rpc_url",
		"ethereum.chain_id",
		"ethereum.contract_address",
		"ethereum.start_block",
		"ethereum.max_block_range",
		"ethereum.block_head_ttl",
		"ethereum.block_head_stale_window",
		"ethereum.timestamp_cache_size",
		// Indexing loop
		"indexer.poll_interval",
		"indexer.idle_interval",
		"indexer.retry_interval",
		"indexer.metadata_workers",
		// Metadata
		"metadata.ipfs_gateway",
		"metadata.timeout",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.subject_prefix",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Server
		"server.enabled",
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		_ = godotenv.Overload(filepath.Join(envPath, envFile)) // later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
