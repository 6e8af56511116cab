package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	Driver     string
	Namespace  string
	MaxRetries int
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	BucketDossiers string
	UseSSL         bool
	Region         string
}

type SecurityConfig struct {
	SessionTTL   time.Duration
	CookieName   string
	CookieSecure bool
	StateSecret  string
	StateTTL     time.Duration
}

type GoogleOAuthConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	UserInfoURL  string
	AuthURL      string
	TokenURL     string
}

type OAuthConfig struct {
	Google GoogleOAuthConfig
}

type NotifyConfig struct {
	LawmakerAddress string
	From            string
	PlatformName    string
}

type JobsConfig struct {
	ReapSchedule     string
	ForwardSchedule  string
	ForwardThreshold int
}

type QueueConfig struct {
	ClaimInterval time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Store            StoreConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	OAuth            OAuthConfig
	Notify           NotifyConfig
	Jobs             JobsConfig
	Queues           QueueConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("CIVIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
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

func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case StoreDriverRedis:
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres store driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Security.SessionTTL <= 0 {
		return errors.New("security.sessionttl must be positive")
	}
	if c.OAuth.Google.Enabled {
		if c.OAuth.Google.ClientID == "" || c.OAuth.Google.RedirectURL == "" {
			return errors.New("oauth.google requires clientid and redirecturl")
		}
		if c.Security.StateSecret == "" {
			return errors.New("security.statesecret is required when google login is enabled")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("store.driver", StoreDriverRedis)
	v.SetDefault("store.namespace", "civic:")
	v.SetDefault("store.maxretries", 32)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "civic:notifications")
	v.SetDefault("redis.group", "notifiers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketdossiers", "civic-dossiers")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.sessionttl", "168h") // 7 days
	v.SetDefault("security.cookiename", "session_id")
	v.SetDefault("security.cookiesecure", false)
	v.SetDefault("security.statesecret", "")
	v.SetDefault("security.statettl", "10m")

	v.SetDefault("oauth.google.enabled", false)
	v.SetDefault("oauth.google.clientid", "")
	v.SetDefault("oauth.google.clientsecret", "")
	v.SetDefault("oauth.google.redirecturl", "")
	v.SetDefault("oauth.google.scopes", "email,profile")
	v.SetDefault("oauth.google.userinfourl", "https://www.googleapis.com/oauth2/v2/userinfo")
	v.SetDefault("oauth.google.authurl", "")
	v.SetDefault("oauth.google.tokenurl", "")

	v.SetDefault("notify.lawmakeraddress", "lawmakers@congress.gov.ph")
	v.SetDefault("notify.from", "no-reply@civicportal.local")
	v.SetDefault("notify.platformname", "Philippines Citizen Suggestion Platform")

	v.SetDefault("jobs.reapschedule", "@hourly")
	v.SetDefault("jobs.forwardschedule", "@daily")
	v.SetDefault("jobs.forwardthreshold", 0)

	v.SetDefault("queues.claiminterval", "30s")

	v.SetDefault("allowcorsorigins", "")
}
