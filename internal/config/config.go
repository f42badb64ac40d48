package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	AdminID string `mapstructure:"admin_id"`

	Chat struct {
		URL               string        `mapstructure:"url"`
		ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
		ReconnectBackoff  time.Duration `mapstructure:"reconnect_backoff"`
		AckTimeout        time.Duration `mapstructure:"ack_timeout"`
		DedupWindow       time.Duration `mapstructure:"dedup_window"`
	} `mapstructure:"chat"`

	Call struct {
		AppID     string `mapstructure:"app_id"`
		Region    string `mapstructure:"region"`
		AuthKey   string `mapstructure:"auth_key"`
		SignalURL string `mapstructure:"signal_url"`
	} `mapstructure:"call"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8090)
	v.SetDefault("chat.url", "ws://localhost:8080/ws/chat")
	v.SetDefault("chat.reconnect_attempts", 5)
	v.SetDefault("chat.reconnect_backoff", "2s")
	v.SetDefault("chat.ack_timeout", "10s")
	v.SetDefault("chat.dedup_window", "3s")
	v.SetDefault("call.region", "ap-southeast")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
