package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

/* Config is read from a .env file (TOML) in the working directory and from the environment
 * The file is optional; getters supply defaults for anything left unset
 */

const (
	defaultPort             = "8080"
	defaultRedisAddr        = "localhost:6379"
	defaultStoreKey         = "chat:webhooks"
	defaultTimeoutMS        = 10000
	defaultRetries          = 2
	defaultRetryDelayMS     = 1000
	defaultWebhooksFile     = "webhooks.yaml"
	defaultAppName          = "chat-webhooks"
	defaultLogLevel         = "info"
	defaultShutdownTimeoutS = 30
)

type Config struct {
	Port                string `mapstructure:"PORT"`
	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	RedisPassword       string `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int    `mapstructure:"REDIS_DB"`
	StoreKey            string `mapstructure:"STORE_KEY"`
	WebhookTimeoutMS    int    `mapstructure:"WEBHOOK_TIMEOUT_MS"`
	WebhookRetries      *int   `mapstructure:"WEBHOOK_RETRIES"`
	WebhookRetryDelayMS *int   `mapstructure:"WEBHOOK_RETRY_DELAY_MS"`
	WebhooksFile        string `mapstructure:"WEBHOOKS_FILE"`
	AppName             string `mapstructure:"APP_NAME"`
	LogLevel            string `mapstructure:"LOG_LEVEL"`
	ShutdownTimeoutS    int    `mapstructure:"SHUTDOWN_TIMEOUT_S"`
}

// keys lists every setting so AutomaticEnv can resolve them during Unmarshal
var keys = []string{
	"PORT", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "STORE_KEY",
	"WEBHOOK_TIMEOUT_MS", "WEBHOOK_RETRIES", "WEBHOOK_RETRY_DELAY_MS",
	"WEBHOOKS_FILE", "APP_NAME", "LOG_LEVEL", "SHUTDOWN_TIMEOUT_S",
}

func GetConfig() (*Config, error) {
	return Load(".")
}

// Load reads the .env file from dir, if present, and the environment
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	err = v.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

func (c *Config) GetPort() string {
	if c.Port == "" {
		return defaultPort
	}
	return c.Port
}

func (c *Config) GetRedisAddr() string {
	if c.RedisAddr == "" {
		return defaultRedisAddr
	}
	return c.RedisAddr
}

// UseRedis reports whether the store should be backed by Redis; REDIS_ADDR=memory disables it
func (c *Config) UseRedis() bool {
	return !strings.EqualFold(c.RedisAddr, "memory")
}

func (c *Config) GetStoreKey() string {
	if c.StoreKey == "" {
		return defaultStoreKey
	}
	return c.StoreKey
}

func (c *Config) GetWebhookTimeoutMS() int {
	if c.WebhookTimeoutMS <= 0 {
		return defaultTimeoutMS
	}
	return c.WebhookTimeoutMS
}

// GetWebhookRetries returns the default retry count; an explicit 0 disables retries
func (c *Config) GetWebhookRetries() int {
	if c.WebhookRetries == nil || *c.WebhookRetries < 0 {
		return defaultRetries
	}
	return *c.WebhookRetries
}

func (c *Config) GetWebhookRetryDelayMS() int {
	if c.WebhookRetryDelayMS == nil || *c.WebhookRetryDelayMS < 0 {
		return defaultRetryDelayMS
	}
	return *c.WebhookRetryDelayMS
}

func (c *Config) GetWebhooksFile() string {
	if c.WebhooksFile == "" {
		return defaultWebhooksFile
	}
	return c.WebhooksFile
}

func (c *Config) GetAppName() string {
	if c.AppName == "" {
		return defaultAppName
	}
	return c.AppName
}

// GetLogLevel parses LOG_LEVEL, falling back to info on unknown values
func (c *Config) GetLogLevel() zerolog.Level {
	name := c.LogLevel
	if name == "" {
		name = defaultLogLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func (c *Config) GetShutdownTimeoutS() int {
	if c.ShutdownTimeoutS <= 0 {
		return defaultShutdownTimeoutS
	}
	return c.ShutdownTimeoutS
}
