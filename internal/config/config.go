package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "GOCHAT"

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	RedisAddr      string
	RedisPassword  string
	LogLevel       string
	Migrate        bool
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, errors.New("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		LogLevel:       "info",
	}, nil
}

// Load builds a Config from defaults, the optional file at path and
// GOCHAT_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("migrate", false)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for _, key := range []string{"dsn", "signing_key", "allowed_origins", "redis_addr", "redis_password"} {
		v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg, err := NewConfig(
		v.GetString("addr"),
		v.GetString("dsn"),
		v.GetString("signing_key"),
		stringList(v.Get("allowed_origins")),
	)
	if err != nil {
		return nil, err
	}

	cfg.RedisAddr = v.GetString("redis_addr")
	cfg.RedisPassword = v.GetString("redis_password")
	cfg.LogLevel = v.GetString("log_level")
	cfg.Migrate = v.GetBool("migrate")

	return cfg, nil
}

// stringList accepts a YAML list or a comma separated string.
func stringList(raw any) []string {
	var items []string
	switch val := raw.(type) {
	case string:
		items = strings.Split(val, ",")
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	}

	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
