package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nkiryanov/gophersession/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultRedisAddr    = "localhost:6379"
	defaultSessionStore = SessionStoreMemory
	defaultAccessTTL    = 30 * time.Minute
	defaultRefreshTTL   = 7 * 24 * time.Hour
)

// Where refresh sessions are kept
const (
	SessionStoreMemory   = "memory"
	SessionStoreRedis    = "redis"
	SessionStorePostgres = "postgres"
)

type Config struct {
	// Optional YAML file with options; read before environment and flags
	ConfigFile string `yaml:"-"`

	// Default logging level
	LogLevel string `yaml:"log_level"`

	// Address on which the service will be run
	ListenAddr string `yaml:"run_address"`

	// Database to connect to
	// Users are kept in memory if not set
	DatabaseDSN string `yaml:"database_uri"`

	// Redis connection, used only by redis session store
	RedisAddr     string `yaml:"redis_address"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// One of: memory, redis, postgres
	SessionStore string `yaml:"session_store"`

	// Secret key to sign tokens
	SecretKey string `yaml:"secret_key"`

	AccessTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_token_ttl"`

	// Send refresh cookie only over https
	CookieSecure bool `yaml:"cookie_secure"`

	// Environment
	Environment string `yaml:"environment"`
}

func NewConfig() *Config {
	return &Config{
		LogLevel:     defaultLoggingLevel,
		ListenAddr:   defaultListenAddr,
		Environment:  defaultEnvironment,
		RedisAddr:    defaultRedisAddr,
		SessionStore: defaultSessionStore,
		AccessTTL:    defaultAccessTTL,
		RefreshTTL:   defaultRefreshTTL,
	}
}

// Load options from every source. Later source wins:
// defaults, YAML file, '.env' file, environment, flags
func (c *Config) Load(getenv func(string) string, getwd func() (string, error), args []string) error {
	path, err := configFileFlag(args)
	if err != nil {
		return err
	}
	if path == "" {
		path = getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := c.LoadFile(path); err != nil {
			return err
		}
	}

	if err := c.LoadDotEnv(getwd); err != nil {
		return fmt.Errorf("error while reading .env file: %w", err)
	}
	if err := c.LoadEnv(getenv); err != nil {
		return err
	}
	if err := c.ParseFlags(args); err != nil {
		return err
	}

	return c.Validate()
}

// Load options from YAML file. Keys absent in file keep their values
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	c.ConfigFile = path
	return nil
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			v, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			v, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			v, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":       setString(&c.ListenAddr),
		"DATABASE_URI":      setString(&c.DatabaseDSN),
		"REDIS_ADDRESS":     setString(&c.RedisAddr),
		"REDIS_PASSWORD":    setString(&c.RedisPassword),
		"REDIS_DB":          setInt(&c.RedisDB),
		"SESSION_STORE":     setString(&c.SessionStore),
		"SECRET_KEY":        setString(&c.SecretKey),
		"ACCESS_TOKEN_TTL":  setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL": setDuration(&c.RefreshTTL),
		"COOKIE_SECURE":     setBool(&c.CookieSecure),
		"LOG_LEVEL":         setString(&c.LogLevel),
		"ENVIRONMENT":       setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid value of %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("gophersession", pflag.ContinueOnError)

	fs.StringVarP(&c.ConfigFile, "config", "c", c.ConfigFile, "Path to YAML config file")
	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.RedisAddr, "redis-address", c.RedisAddr, "Redis address")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVar(&c.SessionStore, "session-store", c.SessionStore, "Refresh session store (memory, redis, postgres)")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", c.CookieSecure, "Send refresh cookie only over https")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs
}

func (c *Config) ParseFlags(args []string) error {
	return c.flagSet().Parse(args)
}

// Config file path has to be known before other sources are read
func configFileFlag(args []string) (string, error) {
	var path string

	fs := pflag.NewFlagSet("gophersession", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	fs.StringVarP(&path, "config", "c", "", "")

	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return "", err
	}
	return path, nil
}

func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("secret key is required")
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address is required for redis session store")
		}
	case SessionStorePostgres:
		if c.DatabaseDSN == "" {
			return errors.New("database is required for postgres session store")
		}
	default:
		return fmt.Errorf("unknown session store %q", c.SessionStore)
	}

	return nil
}
