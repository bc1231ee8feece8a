package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Driver string
}

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type SecurityConfig struct {
	JWTSecret               string
	JWTIssuer               string
	AccessTTL               time.Duration
	RefreshTTL              time.Duration
	TwoFactorTTL            time.Duration
	TwoFactorIssuer         string
	InvalidatePreviousCodes bool
	Argon2                  Argon2Config
}

type MailConfig struct {
	Driver   string
	Stream   string
	Group    string
	Consumer string
}

type JobsConfig struct {
	CodePurgeSchedule string
	CodeRetention     time.Duration
}

type AppConfig struct {
	Environment string
	HTTP        HTTPConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Security    SecurityConfig
	Mail        MailConfig
	Jobs        JobsConfig
}

// Load reads config.yaml from path, or from the usual locations when path is
// empty, then applies AUTHSYS_* environment overrides.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
	}

	v.SetEnvPrefix("AUTHSYS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no safe default.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("config: postgres.dsn is required when storage.driver is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Mail.Driver {
	case "log", "redis":
	default:
		return fmt.Errorf("config: unknown mail.driver %q", c.Mail.Driver)
	}

	if c.Security.JWTSecret == "" {
		return errors.New("config: security.jwtsecret is required")
	}
	if c.Environment == "production" && len(c.Security.JWTSecret) < 32 {
		return errors.New("config: security.jwtsecret must be at least 32 bytes in production")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.shutdowntimeout", "10s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 25)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.driver", "memory")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtissuer", "AuthSystem")
	v.SetDefault("security.accessttl", "1h")
	v.SetDefault("security.refreshttl", "168h")
	v.SetDefault("security.twofactorttl", "10m")
	v.SetDefault("security.twofactorissuer", "AuthSystem")
	v.SetDefault("security.invalidatepreviouscodes", true)
	v.SetDefault("security.argon2.memory", 64*1024)
	v.SetDefault("security.argon2.iterations", 3)
	v.SetDefault("security.argon2.parallelism", 2)
	v.SetDefault("security.argon2.saltlength", 16)
	v.SetDefault("security.argon2.keylength", 32)

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.stream", "authsys:mail")
	v.SetDefault("mail.group", "authsys-mailers")
	v.SetDefault("mail.consumer", "authsys")

	v.SetDefault("jobs.codepurgeschedule", "0 */15 * * * *")
	v.SetDefault("jobs.coderetention", "24h")
}
