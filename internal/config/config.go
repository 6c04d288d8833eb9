package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backends a client can mirror from.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRPC      = "rpc"
)

// Config defines client and server configuration.
type Config struct {
	Backend  string         `yaml:"backend"`
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Postgres PostgresConfig `yaml:"postgres"`
	RPC      RPCConfig      `yaml:"rpc"`
	Log      LogConfig      `yaml:"log"`
	DataDir  string         `yaml:"data_dir"`
	Timezone string         `yaml:"timezone"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RPCConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend: BackendSQLite,
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "hq.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		DataDir: "~/.hq",
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	return LoadEnv(os.Getenv)
}

// LoadEnv is Load with a custom variable lookup.
func LoadEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("HQ_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if backend := getenv("HQ_BACKEND"); backend != "" {
		cfg.Backend = backend
	}
	if host := getenv("HQ_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := getenv("HQ_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HQ_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := getenv("HQ_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if dsn := getenv("HQ_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if url := getenv("HQ_RPC_URL"); url != "" {
		cfg.RPC.URL = url
	}
	if token := getenv("HQ_RPC_TOKEN"); token != "" {
		cfg.RPC.Token = token
	}
	if level := getenv("HQ_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if file := getenv("HQ_LOG_FILE"); file != "" {
		cfg.Log.File = file
	}
	if dir := getenv("HQ_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if tz := getenv("HQ_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the backend choice and its required settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendSQLite:
		if c.DB.Path == "" {
			return fmt.Errorf("db.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres backend")
		}
	case BackendRPC:
		if c.RPC.URL == "" {
			return fmt.Errorf("rpc.url is required for the rpc backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, defaulting to time.Local.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
