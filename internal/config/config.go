package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
)

const DefaultPath = "config/app.yaml"

type Config struct {
	Host          string   `yaml:"host"`
	Port          string   `yaml:"port"`
	DBDriver      string   `yaml:"db_driver"`
	DBDSN         string   `yaml:"db_dsn"`
	Secret        string   `yaml:"secret"`
	Debug         bool     `yaml:"debug"`
	Testing       bool     `yaml:"testing"`
	SessionMaxAge Duration `yaml:"session_max_age"`
	CookieSecure  bool     `yaml:"cookie_secure"`
	BcryptCost    int      `yaml:"bcrypt_cost"`
	LogFormat     string   `yaml:"log_format"`
	// LogLevel is a slog level name ("debug", "info", "warn", "error").
	// When empty, Debug selects debug and info otherwise.
	LogLevel string `yaml:"log_level"`
}

// Duration accepts Go duration strings ("24h", "90m") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func Default() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Port:          "5001",
		DBDriver:      "sqlite3",
		DBDSN:         "file:phatsurf.db",
		Secret:        "default-secret-key",
		SessionMaxAge: Duration(24 * time.Hour),
		BcryptCost:    bcrypt.DefaultCost,
		LogFormat:     "json",
	}
}

// Load builds the configuration from defaults, the YAML file at filename
// (skipped when missing), a .env file (skipped in testing mode) and finally
// the process environment.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
			}
		}
	}

	if !envBool("TESTING", cfg.Testing) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	c.Host = envString("HOST", c.Host)
	c.Port = envString("PORT", c.Port)
	c.DBDriver = envString("DB_DRIVER", c.DBDriver)
	c.DBDSN = envString("DATABASE_URL", c.DBDSN)
	c.Secret = envString("SECRET_KEY", c.Secret)
	c.LogFormat = envString("LOG_FORMAT", c.LogFormat)
	c.LogLevel = envString("LOG_LEVEL", c.LogLevel)
	c.Debug = envBool("DEBUG", c.Debug)
	c.Testing = envBool("TESTING", c.Testing)
	c.CookieSecure = envBool("COOKIE_SECURE", c.CookieSecure)

	if v, ok := os.LookupEnv("SESSION_MAX_AGE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SESSION_MAX_AGE: %w", err))
		} else {
			c.SessionMaxAge = Duration(d)
		}
	}
	if v, ok := os.LookupEnv("BCRYPT_COST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BCRYPT_COST: %w", err))
		} else {
			c.BcryptCost = n
		}
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported db_driver %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("db_dsn must be set"))
	}
	if c.Secret == "" {
		errs = append(errs, errors.New("secret must be set"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port must be set"))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("session_max_age must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Level resolves the minimum log level. Call it on a validated config.
func (c *Config) Level() slog.Level {
	if c.LogLevel == "" {
		if c.Debug {
			return slog.LevelDebug
		}
		return slog.LevelInfo
	}
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return level, nil
	}
	err := level.UnmarshalText([]byte(strings.TrimSpace(s)))
	return level, err
}

// CSRFEnabled reports whether browser forms require an anti-forgery token.
// Testing and debug modes turn the check off.
func (c *Config) CSRFEnabled() bool {
	return !c.Testing && !c.Debug
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// envBool treats "True", "true" and "1" as true, anything else set as false.
func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1":
		return true
	}
	return false
}
