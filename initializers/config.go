package initializers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	SiteURL          string        `mapstructure:"site-url"`
	CorsOrigins      []string      `mapstructure:"cors-origins"`
	GracefulShutdown time.Duration `mapstructure:"graceful-shutdown"`
	ReadTimeout      time.Duration `mapstructure:"read-timeout"`
	WriteTimeout     time.Duration `mapstructure:"write-timeout"`
}

type DBConfig struct {
	URL        string `mapstructure:"url"`
	SQLitePath string `mapstructure:"sqlite-path"`
	LogLevel   string `mapstructure:"log-level"`
}

type StorageConfig struct {
	Driver     string        `mapstructure:"driver"`
	LocalDir   string        `mapstructure:"local-dir"`
	S3Bucket   string        `mapstructure:"s3-bucket"`
	S3Region   string        `mapstructure:"s3-region"`
	S3Endpoint string        `mapstructure:"s3-endpoint"`
	PresignTTL time.Duration `mapstructure:"presign-ttl"`
}

type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	SessionTime time.Duration `mapstructure:"session-time"`
}

type SessionConfig struct {
	Secret string `mapstructure:"secret"`
	Secure bool   `mapstructure:"secure"`
}

type CronConfig struct {
	Enable      bool   `mapstructure:"enable"`
	CleanupSpec string `mapstructure:"cleanup-spec"`
}

type CacheConfig struct {
	MaxSize   int           `mapstructure:"max-size"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis-addr"`
	RedisPass string        `mapstructure:"redis-pass"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type RateLimitConfig struct {
	Enable bool    `mapstructure:"enable"`
	RPS    float64 `mapstructure:"rps"`
	Burst  int     `mapstructure:"burst"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Session   SessionConfig   `mapstructure:"session"`
	Cron      CronConfig      `mapstructure:"cron"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

var defaults = map[string]any{
	"server.port":              8080,
	"server.site-url":          "http://localhost:8080",
	"server.cors-origins":      []string{"http://localhost:3000"},
	"server.graceful-shutdown": "15s",
	"server.read-timeout":      "5m",
	"server.write-timeout":     "5m",

	"db.url":         "",
	"db.sqlite-path": "shifter.db",
	"db.log-level":   "warn",

	"storage.driver":      "local",
	"storage.local-dir":   "media/uploads",
	"storage.s3-bucket":   "",
	"storage.s3-region":   "",
	"storage.s3-endpoint": "",
	"storage.presign-ttl": "15m",

	"jwt.secret":       "",
	"jwt.session-time": "720h",

	"session.secret": "",
	"session.secure": false,

	"cron.enable":       true,
	"cron.cleanup-spec": "@hourly",

	"cache.max-size":   1024 * 1024,
	"cache.ttl":        "1m",
	"cache.redis-addr": "",
	"cache.redis-pass": "",

	"log.level": zapcore.InfoLevel.String(),
	"log.file":  "",

	"ratelimit.enable": true,
	"ratelimit.rps":    10,
	"ratelimit.burst":  20,
}

// Environment names the original deployment used, kept as aliases.
var legacyEnv = map[string]string{
	"server.port":       "PORT",
	"db.url":            "DB_URL",
	"jwt.secret":        "JWT_SECRET",
	"session.secret":    "SESSION_SECRET",
	"storage.s3-bucket": "AWS_BUCKET_NAME",
	"storage.s3-region": "AWS_REGION",
}

type ConfigLoader struct {
	v *viper.Viper
}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{v: viper.New()}
}

func (cl *ConfigLoader) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "Config file path (default ./shifter.toml)")
	flags.Int("port", 8080, "HTTP server port")
	flags.String("log-level", zapcore.InfoLevel.String(), "Logging level")
	flags.String("log-file", "", "Logging file path")
	flags.String("db-url", "", "Postgres connection string, SQLite is used when empty")
}

var flagKeys = map[string]string{
	"port":      "server.port",
	"log-level": "log.level",
	"log-file":  "log.file",
	"db-url":    "db.url",
}

// Load resolves the configuration from .env, the config file, SHIFTER_*
// environment variables and command line flags, in increasing precedence.
func (cl *ConfigLoader) Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	for key, value := range defaults {
		cl.v.SetDefault(key, value)
	}

	cl.v.SetEnvPrefix("shifter")
	cl.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	cl.v.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := cl.v.BindEnv(key, "SHIFTER_"+strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key)), env); err != nil {
			return nil, fmt.Errorf("error binding env %s: %w", env, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := cl.v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	cfgFile := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			cfgFile = f.Value.String()
		}
	}
	if cfgFile != "" {
		cl.v.SetConfigFile(cfgFile)
	} else {
		cl.v.SetConfigName("shifter")
		cl.v.SetConfigType("toml")
		cl.v.AddConfigPath(".")
	}

	if err := cl.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := cl.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret (JWT_SECRET) is required")
	}
	if c.Session.Secret == "" {
		c.Session.Secret = c.JWT.Secret
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local-dir is required for the local driver")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("storage.s3-bucket (AWS_BUCKET_NAME) is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
